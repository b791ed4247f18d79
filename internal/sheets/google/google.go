package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
	ports "budget/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the report spreadsheet. CredentialsJSON wins over
// CredentialsFile; with neither, GOOGLE_APPLICATION_CREDENTIALS is used.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Budget"); the report's year is prefixed.
	sheetBase string
}

// Ensure interface conformance
var (
	_ ports.ReportWriter = (*Client)(nil)
	_ ports.ReportLister = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Budget"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: strings.TrimSpace(sheetBase)}
}

func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteReport upserts the report's row in "<year> <base>": an existing row for
// the same period and user is overwritten, otherwise a row is appended.
func (c *Client) WriteReport(ctx context.Context, r core.ShareReport) (string, error) {
	if r.UserID == "" {
		return "", core.ErrEmptyOwner
	}
	if r.AsOf.IsZero() {
		return "", core.ErrInvalidDate
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row := ports.NewReportRow(r)
	sheet := yearPrefixedName(c.sheetBase, r.AsOf.Year())

	rng := fmt.Sprintf("%s!A:B", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}

	values := [][]any{row.Values()}
	rowNum := findReportRow(resp.Values, row.Period, row.UserID)
	if rowNum == 0 {
		if len(resp.Values) == 0 {
			values = [][]any{headerValues(), row.Values()}
		}
		appended, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A1", sheet), &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
		}
		ref := fmt.Sprintf("%s!A%d:L%d", sheet, len(resp.Values)+len(values), len(resp.Values)+len(values))
		if appended.Updates != nil && appended.Updates.UpdatedRange != "" {
			ref = appended.Updates.UpdatedRange
		}
		slog.InfoContext(ctx, "Report appended", "user_id", row.UserID, "period", row.Period, "ref", ref)
		return ref, nil
	}

	ref := fmt.Sprintf("%s!A%d:L%d", sheet, rowNum, rowNum)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", ref, err)
	}
	slog.InfoContext(ctx, "Report updated", "user_id", row.UserID, "period", row.Period, "ref", ref)
	return ref, nil
}

// ListReports reads every row of period from that year's sheet.
func (c *Client) ListReports(ctx context.Context, period string) ([]ports.ReportRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return nil, fmt.Errorf("invalid period %q: %w", period, err)
	}
	rng := fmt.Sprintf("%s!A:L", yearPrefixedName(c.sheetBase, t.Year()))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []ports.ReportRow
	for _, r := range parseReportRows(resp.Values) {
		if r.Period == period {
			out = append(out, r)
		}
	}
	return out, nil
}

func headerValues() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
