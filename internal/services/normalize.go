package services

import (
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Snapshot is everything the engine needs for one user at one point in time.
type Snapshot struct {
	Credits        []core.Credit
	Charges        []core.RecurringCharge
	Savings        []core.SavingsContribution
	Incomes        []core.Income
	Collaborations []core.Collaboration
}

// Normalize canonicalizes a snapshot read from storage so the engine can
// assume well-formed inputs: frequency aliases are mapped, negative amounts
// become zero, missing credit terms are derived where possible and nil slices
// become empty ones.
func Normalize(s Snapshot) Snapshot {
	out := Snapshot{
		Credits:        make([]core.Credit, 0, len(s.Credits)),
		Charges:        make([]core.RecurringCharge, 0, len(s.Charges)),
		Savings:        make([]core.SavingsContribution, 0, len(s.Savings)),
		Incomes:        make([]core.Income, 0, len(s.Incomes)),
		Collaborations: make([]core.Collaboration, 0, len(s.Collaborations)),
	}
	for _, c := range s.Credits {
		out.Credits = append(out.Credits, normalizeCredit(c))
	}
	for _, c := range s.Charges {
		c.Frequency = core.ParseFrequency(string(c.Frequency))
		c.Amount = nonNegative(c.Amount)
		out.Charges = append(out.Charges, c)
	}
	for _, sv := range s.Savings {
		sv.Frequency = core.ParseFrequency(string(sv.Frequency))
		sv.Amount = nonNegative(sv.Amount)
		out.Savings = append(out.Savings, sv)
	}
	for _, in := range s.Incomes {
		in.Frequency = core.ParseFrequency(string(in.Frequency))
		in.Amount = nonNegative(in.Amount)
		if in.ContributorUserID == "" {
			in.ContributorUserID = in.OwnerID
		}
		out.Incomes = append(out.Incomes, in)
	}
	for _, c := range s.Collaborations {
		if c.Status.IsValid() {
			out.Collaborations = append(out.Collaborations, c)
		}
	}
	return out
}

func normalizeCredit(c core.Credit) core.Credit {
	c.Principal = nonNegative(c.Principal)
	c.PeriodicPayment = nonNegative(c.PeriodicPayment)
	if c.InstallmentCount < 0 {
		c.InstallmentCount = 0
	}
	if c.SettledInstallmentCount < 0 {
		c.SettledInstallmentCount = 0
	}
	if c.StartDate.IsZero() {
		return c
	}
	if c.InstallmentCount == 0 && !c.EndDate.IsZero() && !c.EndDate.Before(c.StartDate.Time) {
		c.InstallmentCount = core.MonthsBetween(c.StartDate, c.EndDate) + 1
	}
	if c.PeriodicPayment.IsZero() && c.Principal.IsPositive() && c.InstallmentCount > 0 {
		c.PeriodicPayment = AnnuityPayment(c.Principal, c.AnnualRate, c.InstallmentCount)
	}
	return c
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
