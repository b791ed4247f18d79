package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// LedgerStore is the part of storage the ledger service writes to.
type LedgerStore interface {
	storage.ChargeStore
	storage.SavingsStore
	storage.IncomeStore
}

// LedgerService manages recurring charges, savings contributions and incomes.
// Only owners may change a record; collaborators see shared ones.
type LedgerService struct {
	store         LedgerStore
	collaborators *CollaboratorResolver
	publisher     ChangePublisher
	now           func() time.Time
}

func NewLedgerService(store LedgerStore, collaborators *CollaboratorResolver, publisher ChangePublisher, now func() time.Time) *LedgerService {
	if now == nil {
		now = time.Now
	}
	return &LedgerService{store: store, collaborators: collaborators, publisher: publisher, now: now}
}

func requireOwner(kind, id, ownerID, userID string) error {
	if ownerID != userID {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrForbidden)
	}
	return nil
}

func (s *LedgerService) published(ctx context.Context, kind, action, id, ownerID string) {
	slog.InfoContext(ctx, "Ledger record changed", "record_kind", kind, "action", action, "record_id", id, "owner_id", ownerID)
	publishChange(ctx, s.publisher, amqp.NewChangeMessage(kind, action, id, ownerID))
}

// ---- recurring charges ----

func (s *LedgerService) CreateCharge(ctx context.Context, c core.RecurringCharge) (core.RecurringCharge, error) {
	c.Frequency = core.ParseFrequency(string(c.Frequency))
	if err := c.Validate(); err != nil {
		return core.RecurringCharge{}, fmt.Errorf("validate recurring charge: %w", err)
	}
	c, err := s.store.CreateCharge(ctx, c)
	if err != nil {
		return core.RecurringCharge{}, fmt.Errorf("save recurring charge: %w", err)
	}
	s.published(ctx, amqp.KindCharge, amqp.ActionCreated, c.ID, c.OwnerID)
	return c, nil
}

func (s *LedgerService) UpdateCharge(ctx context.Context, userID string, c core.RecurringCharge) (core.RecurringCharge, error) {
	prev, err := s.store.GetCharge(ctx, c.ID)
	if err != nil {
		return core.RecurringCharge{}, err
	}
	if err := requireOwner("recurring charge", c.ID, prev.OwnerID, userID); err != nil {
		return core.RecurringCharge{}, err
	}
	c.OwnerID, c.CreatedAt = prev.OwnerID, prev.CreatedAt
	c.Frequency = core.ParseFrequency(string(c.Frequency))
	if err := c.Validate(); err != nil {
		return core.RecurringCharge{}, fmt.Errorf("validate recurring charge: %w", err)
	}
	if err := s.store.UpdateCharge(ctx, c); err != nil {
		return core.RecurringCharge{}, fmt.Errorf("update recurring charge: %w", err)
	}
	s.published(ctx, amqp.KindCharge, amqp.ActionUpdated, c.ID, c.OwnerID)
	return c, nil
}

func (s *LedgerService) DeleteCharge(ctx context.Context, id, userID string) error {
	prev, err := s.store.GetCharge(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner("recurring charge", id, prev.OwnerID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteCharge(ctx, id); err != nil {
		return fmt.Errorf("delete recurring charge: %w", err)
	}
	s.published(ctx, amqp.KindCharge, amqp.ActionDeleted, id, userID)
	return nil
}

func (s *LedgerService) ListCharges(ctx context.Context, userID string) ([]core.RecurringCharge, error) {
	owners, collaborators, err := s.collaborators.Owners(ctx, userID)
	if err != nil {
		return nil, err
	}
	charges, err := s.store.ListCharges(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("list recurring charges: %w", err)
	}
	return VisibleCharges(userID, collaborators, Normalize(Snapshot{Charges: charges}).Charges), nil
}

// ---- savings contributions ----

func (s *LedgerService) CreateSavings(ctx context.Context, sv core.SavingsContribution) (core.SavingsContribution, error) {
	sv.Frequency = core.ParseFrequency(string(sv.Frequency))
	if err := sv.Validate(); err != nil {
		return core.SavingsContribution{}, fmt.Errorf("validate savings contribution: %w", err)
	}
	sv, err := s.store.CreateSavings(ctx, sv)
	if err != nil {
		return core.SavingsContribution{}, fmt.Errorf("save savings contribution: %w", err)
	}
	s.published(ctx, amqp.KindSavings, amqp.ActionCreated, sv.ID, sv.OwnerID)
	return sv, nil
}

func (s *LedgerService) UpdateSavings(ctx context.Context, userID string, sv core.SavingsContribution) (core.SavingsContribution, error) {
	prev, err := s.store.GetSavings(ctx, sv.ID)
	if err != nil {
		return core.SavingsContribution{}, err
	}
	if err := requireOwner("savings contribution", sv.ID, prev.OwnerID, userID); err != nil {
		return core.SavingsContribution{}, err
	}
	sv.OwnerID, sv.CreatedAt = prev.OwnerID, prev.CreatedAt
	sv.Frequency = core.ParseFrequency(string(sv.Frequency))
	if err := sv.Validate(); err != nil {
		return core.SavingsContribution{}, fmt.Errorf("validate savings contribution: %w", err)
	}
	if err := s.store.UpdateSavings(ctx, sv); err != nil {
		return core.SavingsContribution{}, fmt.Errorf("update savings contribution: %w", err)
	}
	s.published(ctx, amqp.KindSavings, amqp.ActionUpdated, sv.ID, sv.OwnerID)
	return sv, nil
}

func (s *LedgerService) DeleteSavings(ctx context.Context, id, userID string) error {
	prev, err := s.store.GetSavings(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner("savings contribution", id, prev.OwnerID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteSavings(ctx, id); err != nil {
		return fmt.Errorf("delete savings contribution: %w", err)
	}
	s.published(ctx, amqp.KindSavings, amqp.ActionDeleted, id, userID)
	return nil
}

// SavingsReport is the savings page: every visible contribution with its
// progress, and the totals.
type SavingsReport struct {
	AsOf         core.Date
	Progress     []core.SavingsProgress
	MonthlyTotal decimal.Decimal
	SavedTotal   decimal.Decimal
}

// ListSavings returns visible contributions with cumulative totals at asOf
// (today when asOf is zero).
func (s *LedgerService) ListSavings(ctx context.Context, userID string, asOf core.Date) (SavingsReport, error) {
	owners, collaborators, err := s.collaborators.Owners(ctx, userID)
	if err != nil {
		return SavingsReport{}, err
	}
	savings, err := s.store.ListSavings(ctx, owners)
	if err != nil {
		return SavingsReport{}, fmt.Errorf("list savings contributions: %w", err)
	}
	if asOf.IsZero() {
		asOf = core.DateOf(s.now())
	}
	visible := VisibleSavings(userID, collaborators, Normalize(Snapshot{Savings: savings}).Savings)
	progress, monthly, saved := SavingsView(visible, asOf)
	return SavingsReport{AsOf: asOf, Progress: progress, MonthlyTotal: monthly, SavedTotal: saved}, nil
}

// ---- incomes ----

func (s *LedgerService) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	i.Frequency = core.ParseFrequency(string(i.Frequency))
	if i.ContributorUserID == "" {
		i.ContributorUserID = i.OwnerID
	}
	if err := i.Validate(); err != nil {
		return core.Income{}, fmt.Errorf("validate income: %w", err)
	}
	i, err := s.store.CreateIncome(ctx, i)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}
	s.published(ctx, amqp.KindIncome, amqp.ActionCreated, i.ID, i.OwnerID)
	return i, nil
}

func (s *LedgerService) UpdateIncome(ctx context.Context, userID string, i core.Income) (core.Income, error) {
	prev, err := s.store.GetIncome(ctx, i.ID)
	if err != nil {
		return core.Income{}, err
	}
	if err := requireOwner("income", i.ID, prev.OwnerID, userID); err != nil {
		return core.Income{}, err
	}
	i.OwnerID, i.CreatedAt = prev.OwnerID, prev.CreatedAt
	if i.ContributorUserID == "" {
		i.ContributorUserID = prev.ContributorUserID
	}
	i.Frequency = core.ParseFrequency(string(i.Frequency))
	if err := i.Validate(); err != nil {
		return core.Income{}, fmt.Errorf("validate income: %w", err)
	}
	if err := s.store.UpdateIncome(ctx, i); err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.published(ctx, amqp.KindIncome, amqp.ActionUpdated, i.ID, i.OwnerID)
	return i, nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, id, userID string) error {
	prev, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner("income", id, prev.OwnerID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteIncome(ctx, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	s.published(ctx, amqp.KindIncome, amqp.ActionDeleted, id, userID)
	return nil
}

func (s *LedgerService) ListIncomes(ctx context.Context, userID string) ([]core.Income, error) {
	owners, collaborators, err := s.collaborators.Owners(ctx, userID)
	if err != nil {
		return nil, err
	}
	incomes, err := s.store.ListIncomes(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	return VisibleIncomes(userID, collaborators, Normalize(Snapshot{Incomes: incomes}).Incomes), nil
}
