// Package memory keeps exported reports in process. It backs the worker when
// no spreadsheet is configured and serves as a test double.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budget/internal/core"
	"budget/internal/sheets"
)

var (
	_ sheets.ReportWriter = (*Store)(nil)
	_ sheets.ReportLister = (*Store)(nil)
)

type Store struct {
	mu     sync.Mutex
	rows   []sheets.ReportRow
	writes int
}

func New() *Store {
	return &Store{}
}

// WriteReport upserts the row for the report's user and period and returns a
// synthetic row reference.
func (s *Store) WriteReport(_ context.Context, r core.ShareReport) (string, error) {
	if r.UserID == "" {
		return "", core.ErrEmptyOwner
	}
	if r.AsOf.IsZero() {
		return "", core.ErrInvalidDate
	}
	row := sheets.NewReportRow(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	for i, existing := range s.rows {
		if existing.Period == row.Period && existing.UserID == row.UserID {
			s.rows[i] = row
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// ListReports returns the rows of period in write order.
func (s *Store) ListReports(_ context.Context, period string) ([]sheets.ReportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.ReportRow
	for _, r := range s.rows {
		if r.Period == period {
			out = append(out, r)
		}
	}
	return out, nil
}

// Writes counts WriteReport calls, including replacements.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
