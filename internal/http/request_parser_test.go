package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budget/internal/core"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser_JSONAndForm(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		isJSON      bool
	}{
		{"json", "application/json", `{"name":"Car","principal":10000.50,"annual_rate":"6%","installment_count":12,"is_shared":true}`, true},
		{"json without content type", "", `{"name":"Car","principal":"10000.50","annual_rate":0.06,"installment_count":"12","is_shared":"true"}`, true},
		{"form", "application/x-www-form-urlencoded", "name=Car&principal=10000%2C50&annual_rate=6%25&installment_count=12&is_shared=on", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.contentType, tt.body)
			if p.IsJSON() != tt.isJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.isJSON)
			}
			if p.Get("name") != "Car" {
				t.Errorf("name = %q", p.Get("name"))
			}
			amount, err := p.Amount("principal")
			if err != nil || amount.String() != "10000.5" {
				t.Errorf("Amount() = %s, %v", amount, err)
			}
			rate, err := p.Rate("annual_rate")
			if err != nil || rate.String() != "0.06" {
				t.Errorf("Rate() = %s, %v", rate, err)
			}
			n, err := p.Int("installment_count")
			if err != nil || n != 12 {
				t.Errorf("Int() = %d, %v", n, err)
			}
			if !p.Bool("is_shared") {
				t.Error("Bool(is_shared) = false")
			}
			if p.Bool("missing") {
				t.Error("Bool(missing) = true")
			}
		})
	}
}

func TestRequestBodyParser_FieldErrors(t *testing.T) {
	p := newParser(t, "application/json", `{"amount":"-5","count":"x","start_date":"2024-13-01","rate":"150"}`)

	var fe *FieldError
	if _, err := p.Amount("amount"); !errors.As(err, &fe) || fe.Field != "amount" || !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Amount() error = %v", err)
	}
	if _, err := p.Amount("absent"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Amount(absent) error = %v", err)
	}
	if d, err := p.OptionalAmount("absent"); err != nil || !d.IsZero() {
		t.Errorf("OptionalAmount(absent) = %s, %v", d, err)
	}
	if _, err := p.Int("count"); !errors.As(err, &fe) || fe.Field != "count" {
		t.Errorf("Int() error = %v", err)
	}
	if _, err := p.Date("start_date"); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("Date() error = %v", err)
	}
	if d, err := p.OptionalDate("end_date"); err != nil || !d.IsZero() {
		t.Errorf("OptionalDate(absent) = %v, %v", d, err)
	}
	if _, err := p.Rate("rate"); !errors.Is(err, core.ErrInvalidTerms) {
		t.Errorf("Rate() error = %v", err)
	}
	if _, err := p.Required("name"); !errors.As(err, &fe) || fe.Error() != "name: value is required" {
		t.Errorf("Required() error = %v", err)
	}
}

func TestRequestBodyParser_BadBodies(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Error("expected error for truncated JSON")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", maxBodyBytes+10)))
	if err := NewRequestBodyParser(req).Parse(); !errors.Is(err, errBodyTooLarge) {
		t.Errorf("Parse() error = %v, want errBodyTooLarge", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil || p.Get("x") != "" {
		t.Errorf("empty body: err=%v", err)
	}
}

func TestRequestBodyParser_SanitizesControlCharacters(t *testing.T) {
	p := newParser(t, "application/json", `{"name":"  Rent\u0000\u0007 "}`)
	if got := p.Get("name"); got != "Rent" {
		t.Errorf("Get() = %q, want %q", got, "Rent")
	}
}

func TestParseAsOf(t *testing.T) {
	today := core.NewDate(2024, 6, 15)
	tests := []struct {
		name    string
		query   url.Values
		want    core.Date
		wantErr bool
	}{
		{"default today", url.Values{}, today, false},
		{"explicit", url.Values{"date": {"2024-01-31"}}, core.NewDate(2024, 1, 31), false},
		{"invalid", url.Values{"date": {"31/01/2024"}}, core.Date{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAsOf(tt.query, today)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAsOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want.Time) {
				t.Errorf("ParseAsOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
