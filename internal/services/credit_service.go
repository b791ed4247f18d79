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

// CreditRequest is a new credit as entered by its owner. PeriodicPayment is
// optional; when set it must cover the principal.
type CreditRequest struct {
	Name             string
	Principal        decimal.Decimal
	AnnualRate       decimal.Decimal
	StartDate        core.Date
	InstallmentCount int
	EndDate          core.Date
	PeriodicPayment  decimal.Decimal
	IsShared         bool
}

// CreditService orchestrates credit operations across storage and AMQP.
type CreditService struct {
	store         storage.CreditStore
	collaborators *CollaboratorResolver
	publisher     ChangePublisher
	now           func() time.Time
}

func NewCreditService(store storage.CreditStore, collaborators *CollaboratorResolver, publisher ChangePublisher, now func() time.Time) *CreditService {
	if now == nil {
		now = time.Now
	}
	return &CreditService{store: store, collaborators: collaborators, publisher: publisher, now: now}
}

func (s *CreditService) today() core.Date { return core.DateOf(s.now()) }

// CreateCredit resolves the terms of req, checks an explicit payment against
// the principal and stores the credit for ownerID.
func (s *CreditService) CreateCredit(ctx context.Context, ownerID string, req CreditRequest) (EvaluatedCredit, error) {
	terms, err := ResolveTerms(TermsInput{
		Principal:        req.Principal,
		AnnualRate:       req.AnnualRate,
		StartDate:        req.StartDate,
		InstallmentCount: req.InstallmentCount,
		EndDate:          req.EndDate,
	})
	if err != nil {
		return EvaluatedCredit{}, err
	}
	if req.PeriodicPayment.IsPositive() {
		if err := CheckPaymentCoversPrincipal(terms.Principal, req.PeriodicPayment, terms.InstallmentCount); err != nil {
			return EvaluatedCredit{}, err
		}
		terms.PeriodicPayment = req.PeriodicPayment
	}

	credit := core.Credit{
		OwnerID:   ownerID,
		Name:      req.Name,
		LoanTerms: terms,
		IsShared:  req.IsShared,
	}
	if err := credit.Validate(); err != nil {
		return EvaluatedCredit{}, fmt.Errorf("validate credit: %w", err)
	}

	credit, err = s.store.CreateCredit(ctx, credit)
	if err != nil {
		return EvaluatedCredit{}, fmt.Errorf("save credit: %w", err)
	}
	slog.InfoContext(ctx, "Credit created",
		"credit_id", credit.ID,
		"owner_id", ownerID,
		"installments", credit.InstallmentCount,
		"payment", core.FormatAmount(credit.PeriodicPayment))

	publishChange(ctx, s.publisher, amqp.NewChangeMessage(amqp.KindCredit, amqp.ActionCreated, credit.ID, ownerID))
	return EvaluatedCredit{Credit: credit, Evaluation: Evaluate(credit, s.today())}, nil
}

// SettleEarly marks the credit as repaid today. Settling twice is a no-op that
// returns the credit as first settled.
func (s *CreditService) SettleEarly(ctx context.Context, id, userID string) (EvaluatedCredit, error) {
	credit, err := s.ownedCredit(ctx, id, userID)
	if err != nil {
		return EvaluatedCredit{}, err
	}
	today := s.today()
	if credit.IsSettledEarly {
		return EvaluatedCredit{Credit: credit, Evaluation: Evaluate(credit, today)}, nil
	}

	credit = Settle(credit, today)
	if err := s.store.UpdateCredit(ctx, credit); err != nil {
		return EvaluatedCredit{}, fmt.Errorf("settle credit: %w", err)
	}
	slog.InfoContext(ctx, "Credit settled early",
		"credit_id", credit.ID,
		"owner_id", userID,
		"paid_installments", credit.SettledInstallmentCount)

	publishChange(ctx, s.publisher, amqp.NewChangeMessage(amqp.KindCredit, amqp.ActionSettled, credit.ID, userID))
	return EvaluatedCredit{Credit: credit, Evaluation: Evaluate(credit, today)}, nil
}

func (s *CreditService) DeleteCredit(ctx context.Context, id, userID string) error {
	if _, err := s.ownedCredit(ctx, id, userID); err != nil {
		return err
	}
	if err := s.store.DeleteCredit(ctx, id); err != nil {
		return fmt.Errorf("delete credit: %w", err)
	}
	publishChange(ctx, s.publisher, amqp.NewChangeMessage(amqp.KindCredit, amqp.ActionDeleted, id, userID))
	return nil
}

// ListCredits returns the user's credits and their collaborators' shared
// credits, evaluated at asOf (today when asOf is zero).
func (s *CreditService) ListCredits(ctx context.Context, userID string, asOf core.Date) ([]EvaluatedCredit, error) {
	owners, collaborators, err := s.collaborators.Owners(ctx, userID)
	if err != nil {
		return nil, err
	}
	credits, err := s.store.ListCredits(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	snap := Normalize(Snapshot{Credits: credits})
	return EvaluateAll(VisibleCredits(userID, collaborators, snap.Credits), asOf), nil
}

func (s *CreditService) ownedCredit(ctx context.Context, id, userID string) (core.Credit, error) {
	credit, err := s.store.GetCredit(ctx, id)
	if err != nil {
		return core.Credit{}, err
	}
	if credit.OwnerID != userID {
		return core.Credit{}, fmt.Errorf("credit %s: %w", id, core.ErrForbidden)
	}
	return credit, nil
}
