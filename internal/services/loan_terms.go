// Package services holds the budgeting engine and the services that feed it.
//
// The engine functions in this package (ResolveTerms, Evaluate,
// ToMonthlyEquivalent, CumulativeToDate, ComputeShares) are pure: they take
// snapshots plus an explicit as-of date and never touch storage.
package services

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// TermsInput is the partial set of loan terms a user provides. Exactly one of
// InstallmentCount or EndDate is needed; when both are present a valid EndDate
// wins.
type TermsInput struct {
	Principal        decimal.Decimal
	AnnualRate       decimal.Decimal
	StartDate        core.Date
	InstallmentCount int
	EndDate          core.Date
}

// ResolveTerms derives the installment count, end date and periodic payment
// of a monthly annuity. It fails with core.ErrInvalidTerms when the inputs do
// not describe a loan.
func ResolveTerms(in TermsInput) (core.LoanTerms, error) {
	if !in.Principal.IsPositive() {
		return core.LoanTerms{}, fmt.Errorf("%w: principal must be positive", core.ErrInvalidTerms)
	}
	if in.AnnualRate.IsNegative() || in.AnnualRate.GreaterThan(decimal.NewFromInt(1)) {
		return core.LoanTerms{}, fmt.Errorf("%w: annual rate %s outside [0, 1]", core.ErrInvalidTerms, in.AnnualRate)
	}
	if in.StartDate.IsZero() {
		return core.LoanTerms{}, fmt.Errorf("%w: missing start date", core.ErrInvalidTerms)
	}

	terms := core.LoanTerms{
		Principal:  in.Principal,
		AnnualRate: in.AnnualRate,
		StartDate:  in.StartDate,
	}

	switch {
	case !in.EndDate.IsZero() && !in.EndDate.Before(in.StartDate.Time):
		terms.InstallmentCount = core.MonthsBetween(in.StartDate, in.EndDate) + 1
		terms.EndDate = in.EndDate
	case in.InstallmentCount > 0:
		terms.InstallmentCount = in.InstallmentCount
		terms.EndDate = in.StartDate.AddMonths(in.InstallmentCount - 1)
	default:
		return core.LoanTerms{}, fmt.Errorf("%w: need an installment count or an end date on or after the start date", core.ErrInvalidTerms)
	}

	terms.PeriodicPayment = AnnuityPayment(terms.Principal, terms.AnnualRate, terms.InstallmentCount)
	return terms, nil
}

// AnnuityPayment is the fixed monthly payment that amortizes principal over n
// months at annualRate/12 per month, rounded to cents. A zero rate splits the
// principal evenly.
func AnnuityPayment(principal, annualRate decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	if annualRate.IsZero() {
		return core.RoundCurrency(principal.Div(decimal.NewFromInt(int64(n))))
	}

	// The power is taken in float64; everything around it stays decimal.
	r := annualRate.Div(monthsPerYear).InexactFloat64()
	factor := 1 - math.Pow(1+r, -float64(n))
	return decimal.NewFromFloat(principal.InexactFloat64() * r / factor).Round(core.CurrencyPlaces)
}

// CheckPaymentCoversPrincipal rejects an explicitly supplied payment whose
// total over the installment count falls short of the principal by more than
// one cent.
func CheckPaymentCoversPrincipal(principal, payment decimal.Decimal, n int) error {
	total := payment.Mul(decimal.NewFromInt(int64(n)))
	if principal.Sub(total).GreaterThan(core.Cent) {
		return fmt.Errorf("%w: %d x %s < %s", core.ErrInconsistentTerms, n, core.FormatAmount(payment), core.FormatAmount(principal))
	}
	return nil
}
