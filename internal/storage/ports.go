// Package storage defines the persistence ports of the budget service and
// their SQLite implementation. The in-memory implementation lives in
// storage/memory.
package storage

import (
	"context"

	"budget/internal/core"
)

// CreditStore persists credits. List methods return every record owned by
// one of ownerIDs; visibility rules are applied by the caller.
type CreditStore interface {
	CreateCredit(ctx context.Context, c core.Credit) (core.Credit, error)
	GetCredit(ctx context.Context, id string) (core.Credit, error)
	UpdateCredit(ctx context.Context, c core.Credit) error
	DeleteCredit(ctx context.Context, id string) error
	ListCredits(ctx context.Context, ownerIDs []string) ([]core.Credit, error)
}

type ChargeStore interface {
	CreateCharge(ctx context.Context, c core.RecurringCharge) (core.RecurringCharge, error)
	GetCharge(ctx context.Context, id string) (core.RecurringCharge, error)
	UpdateCharge(ctx context.Context, c core.RecurringCharge) error
	DeleteCharge(ctx context.Context, id string) error
	ListCharges(ctx context.Context, ownerIDs []string) ([]core.RecurringCharge, error)
}

type SavingsStore interface {
	CreateSavings(ctx context.Context, s core.SavingsContribution) (core.SavingsContribution, error)
	GetSavings(ctx context.Context, id string) (core.SavingsContribution, error)
	UpdateSavings(ctx context.Context, s core.SavingsContribution) error
	DeleteSavings(ctx context.Context, id string) error
	ListSavings(ctx context.Context, ownerIDs []string) ([]core.SavingsContribution, error)
}

type IncomeStore interface {
	CreateIncome(ctx context.Context, i core.Income) (core.Income, error)
	GetIncome(ctx context.Context, id string) (core.Income, error)
	UpdateIncome(ctx context.Context, i core.Income) error
	DeleteIncome(ctx context.Context, id string) error
	ListIncomes(ctx context.Context, ownerIDs []string) ([]core.Income, error)
}

// CollaborationStore persists collaboration edges in every status.
type CollaborationStore interface {
	CreateCollaboration(ctx context.Context, c core.Collaboration) (core.Collaboration, error)
	GetCollaboration(ctx context.Context, id string) (core.Collaboration, error)
	UpdateCollaborationStatus(ctx context.Context, id string, status core.CollaborationStatus) error
	DeleteCollaboration(ctx context.Context, id string) error
	// ListCollaborations returns every edge where userID is inviter or invitee.
	ListCollaborations(ctx context.Context, userID string) ([]core.Collaboration, error)
}

// UserLister enumerates every user owning at least one record.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Store is the full persistence port.
type Store interface {
	CreditStore
	ChargeStore
	SavingsStore
	IncomeStore
	CollaborationStore
	UserLister
	Ping(ctx context.Context) error
	Close() error
}
