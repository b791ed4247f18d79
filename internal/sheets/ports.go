package sheets

import (
	"context"

	"budget/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter stores one user's share report. Writing the same user and
	// month twice replaces the earlier row.
	ReportWriter interface {
		WriteReport(ctx context.Context, r core.ShareReport) (rowRef string, err error)
	}

	// ReportLister returns the reports stored for a period (YYYY-MM).
	ReportLister interface {
		ListReports(ctx context.Context, period string) ([]ReportRow, error)
	}
)

// ReportRow is the flattened form of a share report as exported: amounts are
// rounded to cents and the percentage to two decimals.
type ReportRow struct {
	Period        string
	UserID        string
	AsOf          string
	TotalIncome   string
	YourIncome    string
	YourPercent   string
	CreditShare   string
	ChargeShare   string
	SavingsShare  string
	Disposable    string
	CreditBurden  string
	Collaborators string
}

// Period is the month key reports are grouped by.
func Period(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01")
}
