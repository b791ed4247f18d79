// This file implements the Strategy Pattern for billing frequencies.
// Each frequency (monthly, quarterly, annually) knows how many months one of
// its periods spans, which is all the normalizer and the accumulator need.

package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// PeriodStrategy describes one billing frequency.
type PeriodStrategy interface {
	// Months is the length of one billing period in months.
	Months() int
}

// MonthSpan is a PeriodStrategy with a fixed length.
type MonthSpan int

func (m MonthSpan) Months() int { return int(m) }

// periodStrategies maps canonical frequencies to their period lengths.
var periodStrategies = map[core.Frequency]PeriodStrategy{
	core.Monthly:   MonthSpan(1),
	core.Quarterly: MonthSpan(3),
	core.Annually:  MonthSpan(12),
}

// GetPeriodStrategy returns the strategy registered for frequency.
func GetPeriodStrategy(frequency core.Frequency) (PeriodStrategy, error) {
	s, ok := periodStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return s, nil
}

// registerPeriodStrategy adds or replaces the strategy for frequency.
// Registration is meant for init time; the registry is not guarded.
func registerPeriodStrategy(frequency core.Frequency, s PeriodStrategy) {
	periodStrategies[frequency] = s
}

// periodMonths returns the period length for frequency, or 0 when it is
// unknown or registered with a non-positive span.
func periodMonths(frequency core.Frequency) int {
	s, err := GetPeriodStrategy(frequency)
	if err != nil {
		return 0
	}
	return max(0, s.Months())
}

// ToMonthlyEquivalent converts amount billed at frequency to a per-month rate.
// Unknown frequencies contribute zero.
func ToMonthlyEquivalent(amount decimal.Decimal, frequency core.Frequency) decimal.Decimal {
	months := periodMonths(frequency)
	if months == 0 {
		return decimal.Zero
	}
	if months == 1 {
		return amount
	}
	return amount.Div(decimal.NewFromInt(int64(months)))
}
