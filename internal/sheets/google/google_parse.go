package google

import (
	"fmt"
	"strings"

	ports "budget/internal/sheets"
)

// findReportRow returns the 1-based sheet row holding period and userID in
// columns A and B, or 0 when there is none.
func findReportRow(values [][]any, period, userID string) int {
	for i, row := range values {
		cols := toStrings(row)
		if safeGet(cols, 0) == period && safeGet(cols, 1) == userID {
			return i + 1
		}
	}
	return 0
}

// parseReportRows converts a values matrix into report rows, skipping the
// header and rows without a period or user.
func parseReportRows(values [][]any) []ports.ReportRow {
	var out []ports.ReportRow
	for i, row := range values {
		cols := toStrings(row)
		if i == 0 && strings.EqualFold(safeGet(cols, 0), ports.Header[0]) {
			continue
		}
		r := ports.ReportRow{
			Period:        safeGet(cols, 0),
			UserID:        safeGet(cols, 1),
			AsOf:          safeGet(cols, 2),
			TotalIncome:   safeGet(cols, 3),
			YourIncome:    safeGet(cols, 4),
			YourPercent:   safeGet(cols, 5),
			CreditShare:   safeGet(cols, 6),
			ChargeShare:   safeGet(cols, 7),
			SavingsShare:  safeGet(cols, 8),
			Disposable:    safeGet(cols, 9),
			CreditBurden:  safeGet(cols, 10),
			Collaborators: safeGet(cols, 11),
		}
		if r.Period == "" || r.UserID == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
