package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

const (
	CollaborationPending  CollaborationStatus = "pending"
	CollaborationAccepted CollaborationStatus = "accepted"
	CollaborationRejected CollaborationStatus = "rejected"
)

type (
	Frequency string

	CollaborationStatus string

	Date struct {
		time.Time
	}

	// LoanTerms are the fixed terms of a credit. Either InstallmentCount or
	// EndDate is enough to derive the other; PeriodicPayment is derivable.
	LoanTerms struct {
		Principal        decimal.Decimal
		AnnualRate       decimal.Decimal // 0.06 means 6%
		StartDate        Date
		InstallmentCount int
		EndDate          Date
		PeriodicPayment  decimal.Decimal
	}

	Credit struct {
		ID      string
		OwnerID string
		Name    string
		LoanTerms
		IsShared       bool
		IsSettledEarly bool
		// SettledInstallmentCount is the number of installments paid when the
		// credit was settled early.
		SettledInstallmentCount int
		SettledAt               Date
		CreatedAt               time.Time
	}

	RecurringCharge struct {
		ID            string
		OwnerID       string
		Name          string
		Amount        decimal.Decimal
		Frequency     Frequency
		BeneficiaryID string
		IsShared      bool
		CreatedAt     time.Time
	}

	SavingsContribution struct {
		ID            string
		OwnerID       string
		Name          string
		Amount        decimal.Decimal
		Frequency     Frequency
		StartDate     Date
		BeneficiaryID string
		IsShared      bool
		CreatedAt     time.Time
	}

	Income struct {
		ID                string
		OwnerID           string
		ContributorUserID string
		Description       string
		Amount            decimal.Decimal
		Frequency         Frequency
		IsShared          bool
		CreatedAt         time.Time
	}

	Collaboration struct {
		ID        string
		InviterID string
		InviteeID string
		Status    CollaborationStatus
		CreatedAt time.Time
	}
)

var (
	ErrInvalidTerms      = errors.New("invalid loan terms")
	ErrInconsistentTerms = errors.New("payment does not cover principal")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyOwner        = errors.New("empty owner")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSelfCollaboration = errors.New("cannot collaborate with yourself")
	ErrDuplicateInvite   = errors.New("collaboration already exists")
	ErrNameTooLong       = errors.New("name too long (max 200 characters)")
)

// ParseFrequency maps a stored frequency tag to its canonical value.
// Unknown tags are returned lower-cased so they can be logged; they never
// normalize to a non-zero amount.
func ParseFrequency(s string) Frequency {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "monthly", "mensuel", "mensuelle", "month":
		return Monthly
	case "quarterly", "trimestriel", "trimestrielle", "quarter":
		return Quarterly
	case "annually", "annual", "annuel", "annuelle", "yearly", "year":
		return Annually
	default:
		return Frequency(v)
	}
}

// IsKnown reports whether f is one of the canonical frequencies.
func (f Frequency) IsKnown() bool {
	switch f {
	case Monthly, Quarterly, Annually:
		return true
	default:
		return false
	}
}

func (s CollaborationStatus) IsValid() bool {
	switch s {
	case CollaborationPending, CollaborationAccepted, CollaborationRejected:
		return true
	default:
		return false
	}
}

// Involves returns true if userID is either side of the collaboration.
func (c Collaboration) Involves(userID string) bool {
	return c.InviterID == userID || c.InviteeID == userID
}

// Counterpart returns the other side of the collaboration for userID,
// or "" when userID is not part of it.
func (c Collaboration) Counterpart(userID string) string {
	switch userID {
	case c.InviterID:
		return c.InviteeID
	case c.InviteeID:
		return c.InviterID
	default:
		return ""
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	return nil
}

func validatePositive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Credit) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := validateName(c.Name); err != nil {
		return err
	}
	if err := c.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if err := validatePositive(c.Principal); err != nil {
		return err
	}
	if c.InstallmentCount <= 0 {
		return ErrInvalidTerms
	}
	if c.PeriodicPayment.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (rc RecurringCharge) Validate() error {
	if strings.TrimSpace(rc.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := validateName(rc.Name); err != nil {
		return err
	}
	if err := validatePositive(rc.Amount); err != nil {
		return err
	}
	if !rc.Frequency.IsKnown() {
		return ErrInvalidFrequency
	}
	return nil
}

func (s SavingsContribution) Validate() error {
	if strings.TrimSpace(s.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := validateName(s.Name); err != nil {
		return err
	}
	if err := validatePositive(s.Amount); err != nil {
		return err
	}
	if !s.Frequency.IsKnown() {
		return ErrInvalidFrequency
	}
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	return nil
}

func (i Income) Validate() error {
	if strings.TrimSpace(i.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(i.ContributorUserID) == "" {
		return fmt.Errorf("contributor: %w", ErrEmptyOwner)
	}
	if len(i.Description) > 200 {
		return ErrNameTooLong
	}
	if err := validatePositive(i.Amount); err != nil {
		return err
	}
	if !i.Frequency.IsKnown() {
		return ErrInvalidFrequency
	}
	return nil
}
