package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/storage"
)

// DashboardStore is the read side the dashboard needs.
type DashboardStore interface {
	storage.CreditStore
	storage.ChargeStore
	storage.SavingsStore
	storage.IncomeStore
}

// Dashboard is everything the summary page shows for one user.
type Dashboard struct {
	Shares       core.ShareReport
	Credits      []EvaluatedCredit
	Savings      []core.SavingsProgress
	SavingsSaved decimal.Decimal
}

// DashboardService loads a user's snapshot and runs the engine over it.
type DashboardService struct {
	store         DashboardStore
	collaborators *CollaboratorResolver
	now           func() time.Time
}

func NewDashboardService(store DashboardStore, collaborators *CollaboratorResolver, now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{store: store, collaborators: collaborators, now: now}
}

// LoadSnapshot fetches every record owned by userID or a collaborator. The
// four record sets are fetched concurrently.
func (s *DashboardService) LoadSnapshot(ctx context.Context, userID string) (Snapshot, []string, error) {
	owners, collaborators, err := s.collaborators.Owners(ctx, userID)
	if err != nil {
		return Snapshot{}, nil, err
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		credits, err := s.store.ListCredits(gctx, owners)
		if err != nil {
			return fmt.Errorf("list credits: %w", err)
		}
		snap.Credits = credits
		return nil
	})
	g.Go(func() error {
		charges, err := s.store.ListCharges(gctx, owners)
		if err != nil {
			return fmt.Errorf("list recurring charges: %w", err)
		}
		snap.Charges = charges
		return nil
	})
	g.Go(func() error {
		savings, err := s.store.ListSavings(gctx, owners)
		if err != nil {
			return fmt.Errorf("list savings contributions: %w", err)
		}
		snap.Savings = savings
		return nil
	})
	g.Go(func() error {
		incomes, err := s.store.ListIncomes(gctx, owners)
		if err != nil {
			return fmt.Errorf("list incomes: %w", err)
		}
		snap.Incomes = incomes
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, nil, err
	}
	return snap, collaborators, nil
}

// Dashboard computes userID's shares at asOf (today when asOf is zero).
func (s *DashboardService) Dashboard(ctx context.Context, userID string, asOf core.Date) (Dashboard, error) {
	if asOf.IsZero() {
		asOf = core.DateOf(s.now())
	}
	raw, collaborators, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	d := BuildDashboard(userID, collaborators, raw, asOf)

	slog.DebugContext(ctx, "Dashboard computed",
		"user_id", userID,
		"as_of", asOf.String(),
		"collaborators", len(collaborators),
		"obligations", len(d.Shares.Obligations))
	return d, nil
}

// BuildDashboard runs the engine over an already loaded snapshot.
func BuildDashboard(userID string, collaborators []string, raw Snapshot, asOf core.Date) Dashboard {
	snap := Normalize(raw)
	credits := EvaluateAll(VisibleCredits(userID, collaborators, snap.Credits), asOf)
	charges := VisibleCharges(userID, collaborators, snap.Charges)
	savings := VisibleSavings(userID, collaborators, snap.Savings)
	incomes := VisibleIncomes(userID, collaborators, snap.Incomes)

	report := ComputeShares(userID, collaborators, incomes, BuildObligations(credits, charges, savings))
	report.AsOf = asOf
	progress, _, saved := SavingsView(savings, asOf)

	return Dashboard{
		Shares:       report,
		Credits:      credits,
		Savings:      progress,
		SavingsSaved: saved,
	}
}
