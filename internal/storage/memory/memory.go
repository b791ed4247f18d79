// Package memory is an in-process implementation of storage.Store used by the
// memory backend and by service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/core"
	"budget/internal/storage"
)

// table keeps records of one kind in insertion order.
type table[T any] struct {
	kind  string
	ids   []string
	items map[string]T
}

func newTable[T any](kind string) *table[T] {
	return &table[T]{kind: kind, items: make(map[string]T)}
}

func (t *table[T]) insert(id string, v T) {
	t.ids = append(t.ids, id)
	t.items[id] = v
}

func (t *table[T]) get(id string) (T, error) {
	v, ok := t.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", t.kind, id, core.ErrNotFound)
	}
	return v, nil
}

func (t *table[T]) update(id string, v T) error {
	if _, ok := t.items[id]; !ok {
		return fmt.Errorf("%s %s: %w", t.kind, id, core.ErrNotFound)
	}
	t.items[id] = v
	return nil
}

func (t *table[T]) remove(id string) error {
	if _, ok := t.items[id]; !ok {
		return fmt.Errorf("%s %s: %w", t.kind, id, core.ErrNotFound)
	}
	delete(t.items, id)
	t.ids = slices.DeleteFunc(t.ids, func(s string) bool { return s == id })
	return nil
}

func (t *table[T]) filter(keep func(T) bool) []T {
	var out []T
	for _, id := range t.ids {
		if v := t.items[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

type Store struct {
	mu             sync.RWMutex
	now            func() time.Time
	credits        *table[core.Credit]
	charges        *table[core.RecurringCharge]
	savings        *table[core.SavingsContribution]
	incomes        *table[core.Income]
	collaborations *table[core.Collaboration]
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:            time.Now,
		credits:        newTable[core.Credit]("credit"),
		charges:        newTable[core.RecurringCharge]("recurring charge"),
		savings:        newTable[core.SavingsContribution]("savings contribution"),
		incomes:        newTable[core.Income]("income"),
		collaborations: newTable[core.Collaboration]("collaboration"),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func ownedBy(ownerIDs []string) func(string) bool {
	return func(owner string) bool { return slices.Contains(ownerIDs, owner) }
}

func (s *Store) CreateCredit(_ context.Context, c core.Credit) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID, c.CreatedAt = uuid.NewString(), s.now().UTC()
	s.credits.insert(c.ID, c)
	return c, nil
}

func (s *Store) GetCredit(_ context.Context, id string) (core.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credits.get(id)
}

func (s *Store) UpdateCredit(_ context.Context, c core.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.credits.get(c.ID)
	if err != nil {
		return err
	}
	c.OwnerID, c.CreatedAt = prev.OwnerID, prev.CreatedAt
	return s.credits.update(c.ID, c)
}

func (s *Store) DeleteCredit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits.remove(id)
}

func (s *Store) ListCredits(_ context.Context, ownerIDs []string) ([]core.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := ownedBy(ownerIDs)
	return s.credits.filter(func(c core.Credit) bool { return owned(c.OwnerID) }), nil
}

func (s *Store) CreateCharge(_ context.Context, c core.RecurringCharge) (core.RecurringCharge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID, c.CreatedAt = uuid.NewString(), s.now().UTC()
	s.charges.insert(c.ID, c)
	return c, nil
}

func (s *Store) GetCharge(_ context.Context, id string) (core.RecurringCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.charges.get(id)
}

func (s *Store) UpdateCharge(_ context.Context, c core.RecurringCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.charges.get(c.ID)
	if err != nil {
		return err
	}
	c.OwnerID, c.CreatedAt = prev.OwnerID, prev.CreatedAt
	return s.charges.update(c.ID, c)
}

func (s *Store) DeleteCharge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charges.remove(id)
}

func (s *Store) ListCharges(_ context.Context, ownerIDs []string) ([]core.RecurringCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := ownedBy(ownerIDs)
	return s.charges.filter(func(c core.RecurringCharge) bool { return owned(c.OwnerID) }), nil
}

func (s *Store) CreateSavings(_ context.Context, sv core.SavingsContribution) (core.SavingsContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv.ID, sv.CreatedAt = uuid.NewString(), s.now().UTC()
	s.savings.insert(sv.ID, sv)
	return sv, nil
}

func (s *Store) GetSavings(_ context.Context, id string) (core.SavingsContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.savings.get(id)
}

func (s *Store) UpdateSavings(_ context.Context, sv core.SavingsContribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.savings.get(sv.ID)
	if err != nil {
		return err
	}
	sv.OwnerID, sv.CreatedAt = prev.OwnerID, prev.CreatedAt
	return s.savings.update(sv.ID, sv)
}

func (s *Store) DeleteSavings(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savings.remove(id)
}

func (s *Store) ListSavings(_ context.Context, ownerIDs []string) ([]core.SavingsContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := ownedBy(ownerIDs)
	return s.savings.filter(func(sv core.SavingsContribution) bool { return owned(sv.OwnerID) }), nil
}

func (s *Store) CreateIncome(_ context.Context, i core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID, i.CreatedAt = uuid.NewString(), s.now().UTC()
	s.incomes.insert(i.ID, i)
	return i, nil
}

func (s *Store) GetIncome(_ context.Context, id string) (core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incomes.get(id)
}

func (s *Store) UpdateIncome(_ context.Context, i core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.incomes.get(i.ID)
	if err != nil {
		return err
	}
	i.OwnerID, i.CreatedAt = prev.OwnerID, prev.CreatedAt
	return s.incomes.update(i.ID, i)
}

func (s *Store) DeleteIncome(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incomes.remove(id)
}

func (s *Store) ListIncomes(_ context.Context, ownerIDs []string) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := ownedBy(ownerIDs)
	return s.incomes.filter(func(i core.Income) bool { return owned(i.OwnerID) }), nil
}

// CreateCollaboration rejects a second edge between the same ordered pair, as
// the SQLite unique constraint does.
func (s *Store) CreateCollaboration(_ context.Context, c core.Collaboration) (core.Collaboration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := s.collaborations.filter(func(e core.Collaboration) bool {
		return e.InviterID == c.InviterID && e.InviteeID == c.InviteeID
	})
	if len(dup) > 0 {
		return core.Collaboration{}, fmt.Errorf("collaboration %s -> %s: %w", c.InviterID, c.InviteeID, core.ErrDuplicateInvite)
	}
	c.ID, c.CreatedAt = uuid.NewString(), s.now().UTC()
	s.collaborations.insert(c.ID, c)
	return c, nil
}

func (s *Store) GetCollaboration(_ context.Context, id string) (core.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collaborations.get(id)
}

func (s *Store) UpdateCollaborationStatus(_ context.Context, id string, status core.CollaborationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collaborations.get(id)
	if err != nil {
		return err
	}
	c.Status = status
	return s.collaborations.update(id, c)
}

func (s *Store) DeleteCollaboration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collaborations.remove(id)
}

func (s *Store) ListCollaborations(_ context.Context, userID string) ([]core.Collaboration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collaborations.filter(func(c core.Collaboration) bool { return c.Involves(userID) }), nil
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	add := func(id string) { seen[id] = struct{}{} }
	for _, c := range s.credits.items {
		add(c.OwnerID)
	}
	for _, c := range s.charges.items {
		add(c.OwnerID)
	}
	for _, sv := range s.savings.items {
		add(sv.OwnerID)
	}
	for _, i := range s.incomes.items {
		add(i.OwnerID)
	}
	for _, c := range s.collaborations.items {
		add(c.InviterID)
		add(c.InviteeID)
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}
