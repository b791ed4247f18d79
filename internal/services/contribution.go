package services

import (
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// CumulativeToDate sums amount once per period from start up to and including
// asOf. It returns zero for a missing start, a start after asOf, or a frequency
// without a positive period.
func CumulativeToDate(start core.Date, frequency core.Frequency, amount decimal.Decimal, asOf core.Date) decimal.Decimal {
	if start.IsZero() || asOf.IsZero() || start.After(asOf.Time) {
		return decimal.Zero
	}
	step := periodMonths(frequency)
	if step <= 0 {
		return decimal.Zero
	}

	// Cursors are computed from start so day clamping in short months does
	// not drift later periods (Jan 31, Feb 29, Mar 31, ...).
	count := 0
	for cursor := start; !cursor.After(asOf.Time); cursor = start.AddMonths(count * step) {
		count++
	}
	return amount.Mul(decimal.NewFromInt(int64(count)))
}

// SavingsView computes the monthly equivalent and the cumulative saved amount
// of each contribution at asOf, plus the grand totals.
func SavingsView(contributions []core.SavingsContribution, asOf core.Date) (progress []core.SavingsProgress, monthlyTotal, savedTotal decimal.Decimal) {
	progress = make([]core.SavingsProgress, 0, len(contributions))
	for _, s := range contributions {
		p := core.SavingsProgress{
			Contribution:      s,
			MonthlyEquivalent: ToMonthlyEquivalent(s.Amount, s.Frequency),
			CumulativeSaved:   CumulativeToDate(s.StartDate, s.Frequency, s.Amount, asOf),
		}
		monthlyTotal = monthlyTotal.Add(p.MonthlyEquivalent)
		savedTotal = savedTotal.Add(p.CumulativeSaved)
		progress = append(progress, p)
	}
	return progress, monthlyTotal, savedTotal
}
