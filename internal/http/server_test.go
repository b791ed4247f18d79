package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/cache"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage/memory"
)

type testAPI struct {
	t   *testing.T
	srv *Server
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	store := memory.New()
	today := time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return today }
	resolver := services.NewCollaboratorResolver(store, cache.NewLRUCache[[]string](16, time.Minute))

	if opts.Now == nil {
		opts.Now = now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Output: io.Discard})
	}
	if opts.Ready == nil {
		opts.Ready = store.Ping
	}
	srv := NewServer(":0", Services{
		Credits:        services.NewCreditService(store, resolver, nil, now),
		Ledger:         services.NewLedgerService(store, resolver, nil, now),
		Collaborations: services.NewCollaborationService(store, resolver, nil),
		Dashboards:     services.NewDashboardService(store, resolver, now),
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, srv: srv}
}

func (a *testAPI) do(method, path, user, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	switch {
	case strings.HasPrefix(body, "{"):
		req.Header.Set("Content-Type", "application/json")
	case body != "":
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// expect performs the request, checks the status and decodes the body into out.
func (a *testAPI) expect(code int, method, path, user, body string, out any) {
	a.t.Helper()
	rr := a.do(method, path, user, body)
	if rr.Code != code {
		a.t.Fatalf("%s %s as %q: status = %d, want %d, body = %s", method, path, user, rr.Code, code, rr.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rr.Body.String(), err)
		}
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	api := newTestAPI(t, Options{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := api.do(http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
	}
	if body := api.do(http.MethodGet, "/metrics", "", "").Body.String(); !strings.Contains(body, "# TYPE http_requests_total counter") {
		t.Errorf("metrics body = %s", body)
	}

	failing := newTestAPI(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rr := failing.do(http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "db down") {
		t.Errorf("failing readyz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_RequiresUserAndRoutes(t *testing.T) {
	api := newTestAPI(t, Options{})

	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/credits", "", "", nil)
	api.expect(http.StatusNotFound, http.MethodGet, "/api/unknown", "alice", "", nil)
	api.expect(http.StatusMethodNotAllowed, http.MethodPatch, "/api/credits", "alice", "", nil)
	api.expect(http.StatusBadRequest, http.MethodPost, "/api/credits", "alice", `{"name":`, nil)
	api.expect(http.StatusMethodNotAllowed, "TRACE", "/api/credits", "alice", "", nil)
}

func TestAPI_ResolveTerms(t *testing.T) {
	api := newTestAPI(t, Options{})

	tests := []struct {
		name    string
		body    string
		code    int
		payment string
		count   int
		endDate string
	}{
		{"annuity", `{"principal":"10000","annual_rate":"6%","start_date":"2024-01-15","installment_count":12}`, 200, "860.66", 12, "2024-12-15"},
		{"zero rate", `{"principal":1200,"start_date":"2024-01-01","installment_count":12}`, 200, "100.00", 12, "2024-12-01"},
		{"end date derives count", `{"principal":"2400","start_date":"2024-01-15","end_date":"2025-12-01"}`, 200, "100.00", 24, "2025-12-01"},
		{"explicit payment kept", `{"principal":"1200","start_date":"2024-01-01","installment_count":12,"periodic_payment":"105"}`, 200, "105.00", 12, "2024-12-01"},
		{"bare rate above one", `{"principal":"1200","annual_rate":"1.5","start_date":"2024-01-01","installment_count":12}`, 422, "", 0, ""},
		{"small percentage", `{"principal":"1200","annual_rate":"0.5%","start_date":"2024-01-01","installment_count":12}`, 200, "100.27", 12, "2024-12-01"},
		{"payment too small", `{"principal":"1200","start_date":"2024-01-01","installment_count":12,"periodic_payment":"50"}`, 422, "", 0, ""},
		{"missing principal", `{"start_date":"2024-01-01","installment_count":12}`, 422, "", 0, ""},
		{"missing start", `{"principal":"1200","installment_count":12}`, 422, "", 0, ""},
		{"no count or end", `{"principal":"1200","start_date":"2024-01-01"}`, 422, "", 0, ""},
		{"bad count", `{"principal":"1200","start_date":"2024-01-01","installment_count":"many"}`, 422, "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got termsResponse
			if tt.code != http.StatusOK {
				api.expect(tt.code, http.MethodPost, "/api/terms/resolve", "alice", tt.body, nil)
				return
			}
			api.expect(tt.code, http.MethodPost, "/api/terms/resolve", "alice", tt.body, &got)
			if got.PeriodicPayment != tt.payment || got.InstallmentCount != tt.count || got.EndDate != tt.endDate {
				t.Errorf("terms = %+v", got)
			}
		})
	}

	var got termsResponse
	api.expect(http.StatusOK, http.MethodPost, "/api/terms/resolve", "alice",
		`{"principal":"10000","annual_rate":"0.06","start_date":"2024-01-15","installment_count":12}`, &got)
	if got.TotalRepayment != "10327.92" {
		t.Errorf("TotalRepayment = %s, want 10327.92", got.TotalRepayment)
	}
}

func TestAPI_SharedBudgetFlow(t *testing.T) {
	api := newTestAPI(t, Options{})
	post := http.MethodPost

	// Collaboration between alice and bob.
	var invite collaborationResponse
	api.expect(http.StatusCreated, post, "/api/collaborations", "alice", `{"invitee_id":"bob"}`, &invite)
	api.expect(http.StatusUnprocessableEntity, post, "/api/collaborations", "alice", `{"invitee_id":"alice"}`, nil)
	api.expect(http.StatusConflict, post, "/api/collaborations", "bob", `{"invitee_id":"alice"}`, nil)
	api.expect(http.StatusForbidden, post, "/api/collaborations/"+invite.ID+"/respond", "alice", `{"accept":true}`, nil)
	api.expect(http.StatusUnprocessableEntity, post, "/api/collaborations/"+invite.ID+"/respond", "bob", `{"status":"maybe"}`, nil)
	var accepted collaborationResponse
	api.expect(http.StatusOK, post, "/api/collaborations/"+invite.ID+"/respond", "bob", `{"status":"accepted"}`, &accepted)
	if accepted.Status != "accepted" {
		t.Fatalf("status = %s", accepted.Status)
	}
	api.expect(http.StatusConflict, post, "/api/collaborations/"+invite.ID+"/respond", "bob", `{"accept":false}`, nil)

	// Incomes 3500 + 1500, a shared credit and a shared charge.
	api.expect(http.StatusCreated, post, "/api/incomes", "alice", `{"description":"salary","amount":"3500","frequency":"monthly","is_shared":true}`, nil)
	api.expect(http.StatusCreated, post, "/api/incomes", "bob", `{"description":"salary","amount":"1500","frequency":"mensuel","is_shared":true}`, nil)
	var bonus incomeResponse
	api.expect(http.StatusCreated, post, "/api/incomes", "bob", `{"description":"bonus","amount":"1200","frequency":"annually","is_shared":true}`, &bonus)
	if bonus.CountsTowardPool {
		t.Error("annual income must not count toward the pool")
	}

	var credit creditResponse
	api.expect(http.StatusCreated, post, "/api/credits", "alice",
		`{"name":"Car","principal":"1200","start_date":"2024-01-05","installment_count":12,"is_shared":true}`, &credit)
	if credit.Terms.PeriodicPayment != "100.00" || credit.Evaluation.RemainingInstallments != 6 || credit.Evaluation.CurrentAmountDue != "600.00" {
		t.Fatalf("credit = %+v", credit)
	}
	api.expect(http.StatusCreated, post, "/api/charges", "bob", `{"name":"Rent","amount":"1000","frequency":"monthly","is_shared":true}`, nil)

	var dash dashboardResponse
	api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", "alice", "", &dash)
	want := map[string][2]string{
		"total_monthly_income": {dash.TotalMonthlyIncome, "5000.00"},
		"your_percentage":      {dash.YourPercentage, "70.00"},
		"credit_share":         {dash.CreditShare, "70.00"},
		"charge_share":         {dash.ChargeShare, "700.00"},
		"savings_share":        {dash.SavingsShare, "0.00"},
		"disposable":           {dash.EstimatedDisposableIncome, "4230.00"},
		"credit_burden":        {dash.CreditBurden, "0.0200"},
	}
	for name, v := range want {
		if v[0] != v[1] {
			t.Errorf("alice %s = %s, want %s", name, v[0], v[1])
		}
	}
	if dash.AsOf != "2024-07-20" || len(dash.Collaborators) != 1 || dash.Collaborators[0] != "bob" {
		t.Errorf("dashboard header = %s %v", dash.AsOf, dash.Collaborators)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodGet, "/api/dashboard?date=20-07-2024", "alice", "", nil)

	// Private quarterly savings: 300 per quarter, three periods by July 20.
	api.expect(http.StatusCreated, post, "/api/savings", "alice", `{"name":"Holiday","amount":"300","frequency":"quarterly","start_date":"2024-01-01"}`, nil)
	var savings savingsListResponse
	api.expect(http.StatusOK, http.MethodGet, "/api/savings", "alice", "", &savings)
	if savings.MonthlyTotal != "100.00" || savings.SavedTotal != "900.00" || len(savings.Contributions) != 1 {
		t.Errorf("alice savings = %+v", savings)
	}
	api.expect(http.StatusOK, http.MethodGet, "/api/savings", "bob", "", &savings)
	if len(savings.Contributions) != 0 {
		t.Errorf("bob sees alice's private savings: %+v", savings)
	}

	// Bob sees the shared credit but cannot settle it.
	var bobCredits []creditResponse
	api.expect(http.StatusOK, http.MethodGet, "/api/credits", "bob", "", &bobCredits)
	if len(bobCredits) != 1 {
		t.Fatalf("bob credits = %+v", bobCredits)
	}
	api.expect(http.StatusForbidden, post, "/api/credits/"+credit.ID+"/settle", "bob", "", nil)

	var settled creditResponse
	api.expect(http.StatusOK, post, "/api/credits/"+credit.ID+"/settle", "alice", "", &settled)
	if !settled.IsSettledEarly || settled.SettledInstallmentCount != 6 || settled.Evaluation.Status != "settled" || settled.SettledAt != "2024-07-20" {
		t.Fatalf("settled = %+v", settled)
	}
	api.expect(http.StatusOK, post, "/api/credits/"+credit.ID+"/settle", "alice", "", &settled)
	if settled.SettledInstallmentCount != 6 {
		t.Errorf("second settle changed the count: %+v", settled)
	}

	api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", "alice", "", &dash)
	if dash.CreditShare != "0.00" || dash.SavingsShare != "100.00" || dash.EstimatedDisposableIncome != "4200.00" || dash.SavingsSaved != "900.00" {
		t.Errorf("alice after settle = credit %s savings %s disposable %s saved %s",
			dash.CreditShare, dash.SavingsShare, dash.EstimatedDisposableIncome, dash.SavingsSaved)
	}

	api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", "bob", "", &dash)
	if dash.YourPercentage != "30.00" || dash.ChargeShare != "300.00" || dash.SavingsShare != "0.00" || dash.EstimatedDisposableIncome != "4700.00" {
		t.Errorf("bob dashboard = %+v", dash)
	}

	// Removing the collaboration hides bob's shared records from alice.
	api.expect(http.StatusNoContent, http.MethodDelete, "/api/collaborations/"+invite.ID, "bob", "", nil)
	api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", "alice", "", &dash)
	if dash.TotalMonthlyIncome != "3500.00" || dash.ChargeShare != "0.00" || len(dash.Collaborators) != 0 {
		t.Errorf("alice alone = income %s charge %s collaborators %v", dash.TotalMonthlyIncome, dash.ChargeShare, dash.Collaborators)
	}
}

func TestAPI_LedgerEndpoints(t *testing.T) {
	api := newTestAPI(t, Options{})

	api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/charges", "alice", `{"name":"Gym","frequency":"monthly"}`, nil)
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/charges", "alice", `{"name":"Gym","amount":"30","frequency":"weekly"}`, nil)
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/charges", "alice", `{"name":"","amount":"30","frequency":"monthly"}`, nil)
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/savings", "alice", `{"name":"Fund","amount":"30","frequency":"monthly"}`, nil)

	var charge chargeResponse
	api.expect(http.StatusCreated, http.MethodPost, "/api/charges", "alice", `{"name":"Insurance","amount":"600","frequency":"annual"}`, &charge)
	if charge.Frequency != "annually" || charge.MonthlyEquivalent != "50.00" {
		t.Errorf("charge = %+v", charge)
	}

	api.expect(http.StatusForbidden, http.MethodPut, "/api/charges/"+charge.ID, "bob", `{"name":"Insurance","amount":"1","frequency":"monthly"}`, nil)
	api.expect(http.StatusOK, http.MethodPut, "/api/charges/"+charge.ID, "alice", `{"name":"Insurance","amount":"900","frequency":"quarterly"}`, &charge)
	if charge.MonthlyEquivalent != "300.00" || charge.OwnerID != "alice" {
		t.Errorf("updated charge = %+v", charge)
	}

	var charges []chargeResponse
	api.expect(http.StatusOK, http.MethodGet, "/api/charges", "bob", "", &charges)
	if len(charges) != 0 {
		t.Errorf("bob sees alice's private charge: %+v", charges)
	}

	api.expect(http.StatusNoContent, http.MethodDelete, "/api/charges/"+charge.ID, "alice", "", nil)
	api.expect(http.StatusNotFound, http.MethodDelete, "/api/charges/"+charge.ID, "alice", "", nil)

	var income incomeResponse
	api.expect(http.StatusCreated, http.MethodPost, "/api/incomes",
		"alice", "description=rent+received&amount=450%2C50&frequency=monthly", &income)
	if income.Amount != "450.50" || income.ContributorUserID != "alice" || !income.CountsTowardPool {
		t.Errorf("form income = %+v", income)
	}
	api.expect(http.StatusOK, http.MethodPut, "/api/incomes/"+income.ID, "alice", `{"description":"rent","amount":"500","frequency":"monthly"}`, &income)
	if income.Amount != "500.00" {
		t.Errorf("updated income = %+v", income)
	}
	api.expect(http.StatusNoContent, http.MethodDelete, "/api/incomes/"+income.ID, "alice", "", nil)

	var sv savingsResponse
	api.expect(http.StatusCreated, http.MethodPost, "/api/savings", "alice", `{"name":"Fund","amount":"1200","frequency":"yearly","start_date":"2024-02-29"}`, &sv)
	if sv.MonthlyEquivalent != "100.00" || sv.StartDate != "2024-02-29" {
		t.Errorf("savings = %+v", sv)
	}
	api.expect(http.StatusOK, http.MethodPut, "/api/savings/"+sv.ID, "alice", `{"name":"Fund","amount":"50","frequency":"monthly","start_date":"2024-03-01"}`, &sv)
	if sv.MonthlyEquivalent != "50.00" {
		t.Errorf("updated savings = %+v", sv)
	}
	api.expect(http.StatusNoContent, http.MethodDelete, "/api/savings/"+sv.ID, "alice", "", nil)
	api.expect(http.StatusNotFound, http.MethodDelete, "/api/credits/missing", "alice", "", nil)
}

func TestAPI_RateLimitsWrites(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitPerMinute: 2})
	body := `{"principal":"1200","start_date":"2024-01-01","installment_count":12}`

	api.expect(http.StatusOK, http.MethodPost, "/api/terms/resolve", "alice", body, nil)
	api.expect(http.StatusOK, http.MethodPost, "/api/terms/resolve", "alice", body, nil)
	rr := api.do(http.MethodPost, "/api/terms/resolve", "alice", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("third write = %d, want 429 with Retry-After", rr.Code)
	}
	api.expect(http.StatusOK, http.MethodPost, "/api/terms/resolve", "bob", body, nil)
	api.expect(http.StatusOK, http.MethodGet, "/api/credits", "alice", "", nil)
}
