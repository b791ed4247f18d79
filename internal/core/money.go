// Package core provides money parsing and handling utilities.
//
// Amounts are carried as decimal.Decimal end to end. Rounding to currency
// minor units happens only where a figure leaves the system (JSON, sheets).
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of minor-unit digits used when presenting money.
const CurrencyPlaces = 2

// Cent is the smallest presentable currency unit.
var Cent = decimal.New(1, -CurrencyPlaces)

// ParseAmount converts a decimal string to an exact decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. The value
// must be strictly positive. Unlike presentation rounding, no digits are
// dropped here.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil
//	ParseAmount("-1") -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate parses an annual interest rate given as a fraction ("0.06") or
// as a percentage with a % suffix ("6%"). The result must lie in [0, 1]; a
// bare "6" is rejected rather than guessed at.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidTerms
	}
	if percent {
		d = d.Div(decimal.NewFromInt(100))
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: rate %s above 1, use a %% suffix for percentages", ErrInvalidTerms, s)
	}
	return d, nil
}

// RoundCurrency rounds half away from zero to currency minor units.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// FormatAmount renders d with exactly two decimals ("1234.50").
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(CurrencyPlaces)
}
