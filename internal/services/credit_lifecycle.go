package services

import (
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// PaidInstallments counts the installments paid before asOf's month. The month
// of asOf itself is still due, so a credit starting this month has paid none.
func PaidInstallments(terms core.LoanTerms, asOf core.Date) int {
	if terms.StartDate.IsZero() || asOf.IsZero() {
		return terms.InstallmentCount
	}
	elapsed := core.MonthsBetween(terms.StartDate, asOf)
	return max(0, min(elapsed, terms.InstallmentCount))
}

// Evaluate derives the remaining installments, the amount still due and the
// status of credit as of asOf. It never fails: a credit without a usable start
// date is reported as exhausted.
func Evaluate(credit core.Credit, asOf core.Date) core.CreditEvaluation {
	if credit.IsSettledEarly {
		return core.CreditEvaluation{
			PaidInstallments: credit.SettledInstallmentCount,
			CurrentAmountDue: decimal.Zero,
			Status:           core.CreditSettled,
		}
	}
	if credit.StartDate.IsZero() || credit.InstallmentCount <= 0 {
		return core.CreditEvaluation{CurrentAmountDue: decimal.Zero, Status: core.CreditArchived}
	}

	paid := PaidInstallments(credit.LoanTerms, asOf)
	remaining := credit.InstallmentCount - paid
	ev := core.CreditEvaluation{
		PaidInstallments:      paid,
		RemainingInstallments: remaining,
		CurrentAmountDue:      credit.PeriodicPayment.Mul(decimal.NewFromInt(int64(remaining))),
		Status:                core.CreditActive,
	}
	if remaining == 0 {
		ev.Status = core.CreditArchived
	}
	return ev
}

// EvaluatedCredit pairs a credit with its evaluation at a given date.
type EvaluatedCredit struct {
	core.Credit
	Evaluation core.CreditEvaluation
}

// EvaluateAll evaluates every credit at asOf, preserving order.
func EvaluateAll(credits []core.Credit, asOf core.Date) []EvaluatedCredit {
	out := make([]EvaluatedCredit, 0, len(credits))
	for _, c := range credits {
		out = append(out, EvaluatedCredit{Credit: c, Evaluation: Evaluate(c, asOf)})
	}
	return out
}

// Settle marks credit as repaid early at asOf. The installment count paid so far
// is frozen; settling an already settled credit returns it unchanged.
func Settle(credit core.Credit, asOf core.Date) core.Credit {
	if credit.IsSettledEarly {
		return credit
	}
	credit.SettledInstallmentCount = PaidInstallments(credit.LoanTerms, asOf)
	credit.IsSettledEarly = true
	credit.SettledAt = asOf
	return credit
}
