package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/core"
)

// fakeSheet emulates the values endpoints of one spreadsheet tab.
type fakeSheet struct {
	mu      sync.Mutex
	rows    [][]any
	ranges  []string
	appends int
	updates int
}

var rowInRange = regexp.MustCompile(`!A(\d+):L\d+$`)

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	f.ranges = append(f.ranges, rng)
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.rows})
	case http.MethodPost:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appends++
		first := len(f.rows) + 1
		f.rows = append(f.rows, vr.Values...)
		sheet, _, _ := strings.Cut(rng, "!")
		updated := fmt.Sprintf("%s!A%d:L%d", sheet, first, len(f.rows))
		_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRange": updated}})
	case http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m := rowInRange.FindStringSubmatch(rng)
		if m == nil {
			http.Error(w, "bad range "+rng, http.StatusBadRequest)
			return
		}
		n, _ := strconv.Atoi(m[1])
		f.updates++
		f.rows[n-1] = vr.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-id", "Budget")
}

func shareReport(user string, asOf core.Date, total string) core.ShareReport {
	return core.ShareReport{
		UserID:             user,
		AsOf:               asOf,
		TotalMonthlyIncome: decimal.RequireFromString(total),
		YourPercentage:     decimal.NewFromInt(50),
	}
}

func TestClient_WriteReportUpserts(t *testing.T) {
	fake := &fakeSheet{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	ref, err := c.WriteReport(ctx, shareReport("alice", core.NewDate(2024, 5, 3), "1000"))
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if ref != "2024 Budget!A1:L2" {
		t.Errorf("first ref = %q", ref)
	}
	if len(fake.rows) != 2 || fmt.Sprint(fake.rows[0][0]) != "Period" {
		t.Fatalf("expected header plus one row, got %v", fake.rows)
	}

	if _, err := c.WriteReport(ctx, shareReport("bob", core.NewDate(2024, 5, 3), "1000")); err != nil {
		t.Fatal(err)
	}
	ref, err = c.WriteReport(ctx, shareReport("alice", core.NewDate(2024, 5, 28), "1500"))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "2024 Budget!A2:L2" {
		t.Errorf("update ref = %q, want row 2", ref)
	}
	if fake.appends != 2 || fake.updates != 1 {
		t.Errorf("appends=%d updates=%d, want 2 and 1", fake.appends, fake.updates)
	}

	rows, err := c.ListReports(ctx, "2024-05")
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].UserID != "alice" || rows[0].TotalIncome != "1500.00" || rows[0].AsOf != "2024-05-28" {
		t.Errorf("alice row = %+v", rows[0])
	}
	if rows[1].YourPercent != "50.00" {
		t.Errorf("bob percent = %q", rows[1].YourPercent)
	}
}

func TestClient_WriteReportValidation(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.WriteReport(context.Background(), core.ShareReport{AsOf: core.NewDate(2024, 1, 1)}); !errors.Is(err, core.ErrEmptyOwner) {
		t.Errorf("missing user error = %v", err)
	}
	if _, err := c.WriteReport(context.Background(), core.ShareReport{UserID: "alice", AsOf: core.NewDate(2024, 1, 1)}); err == nil {
		t.Error("expected error without a service")
	}
}

func TestClient_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	if _, err := c.WriteReport(context.Background(), shareReport("alice", core.NewDate(2024, 1, 1), "1")); err == nil {
		t.Fatal("expected error from a failing API")
	}
	if _, err := c.ListReports(context.Background(), "not-a-period"); err == nil {
		t.Fatal("expected error for invalid period")
	}
}

func TestNew_MissingConfiguration(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	_, err := New(context.Background(), Options{SpreadsheetID: "id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	_, err = New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: t.TempDir() + "/missing.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Budget", 2024, "2024 Budget"},
		{"  Budget ", 2025, "2025 Budget"},
		{"2023 Budget", 2025, "2023 Budget"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestParseReportRows(t *testing.T) {
	values := [][]any{
		{"Period", "User", "As of"},
		{"2024-05", "alice", "2024-05-03", "1000.00", "500.00", "50.00"},
		{"", "ghost"},
		{"2024-05", "bob"},
	}
	rows := parseReportRows(values)
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].YourPercent != "50.00" || rows[1].TotalIncome != "" {
		t.Errorf("rows = %+v", rows)
	}
	if n := findReportRow(values, "2024-05", "bob"); n != 4 {
		t.Errorf("findReportRow() = %d, want 4", n)
	}
	if n := findReportRow(values, "2024-06", "bob"); n != 0 {
		t.Errorf("findReportRow() = %d, want 0", n)
	}
}
