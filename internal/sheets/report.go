package sheets

import (
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Header is the column order of an exported report row.
var Header = []string{
	"Period", "User", "As of", "Total income", "Your income", "Your %",
	"Credits", "Charges", "Savings", "Disposable", "Credit burden", "Collaborators",
}

// NewReportRow rounds r for presentation. Rounding happens here and nowhere
// earlier.
func NewReportRow(r core.ShareReport) ReportRow {
	return ReportRow{
		Period:        Period(r.AsOf),
		UserID:        r.UserID,
		AsOf:          r.AsOf.String(),
		TotalIncome:   core.FormatAmount(r.TotalMonthlyIncome),
		YourIncome:    core.FormatAmount(r.YourMonthlyIncome),
		YourPercent:   r.YourPercentage.StringFixed(2),
		CreditShare:   core.FormatAmount(r.CreditShare),
		ChargeShare:   core.FormatAmount(r.ChargeShare),
		SavingsShare:  core.FormatAmount(r.SavingsShare),
		Disposable:    core.FormatAmount(r.EstimatedDisposableIncome),
		CreditBurden:  r.CreditBurden.Mul(decimal.NewFromInt(100)).StringFixed(2),
		Collaborators: strings.Join(r.Collaborators, " "),
	}
}

// Values returns the row as cells in Header order.
func (r ReportRow) Values() []any {
	return []any{
		r.Period, r.UserID, r.AsOf, r.TotalIncome, r.YourIncome, r.YourPercent,
		r.CreditShare, r.ChargeShare, r.SavingsShare, r.Disposable, r.CreditBurden, r.Collaborators,
	}
}
