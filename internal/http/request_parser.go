// Package http provides the JSON API of the budget service.
//
// This file implements utilities for parsing and validating request bodies.
// Handlers accept either a JSON object or form-encoded fields and read them
// through the same typed accessors.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidValue = errors.New("invalid value")
	errMissingValue = errors.New("value is required")
)

// FieldError reports which request field failed to parse.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as a JSON object or as form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Has reports whether key is present with a non-empty value.
func (p *RequestBodyParser) Has(key string) bool {
	return p.Get(key) != ""
}

// Amount returns a required, strictly positive amount.
func (p *RequestBodyParser) Amount(key string) (decimal.Decimal, error) {
	v := p.Get(key)
	if v == "" {
		return decimal.Zero, &FieldError{Field: key, Err: core.ErrInvalidAmount}
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		return decimal.Zero, &FieldError{Field: key, Err: err}
	}
	return d, nil
}

// OptionalAmount is Amount that returns zero for an absent field.
func (p *RequestBodyParser) OptionalAmount(key string) (decimal.Decimal, error) {
	if !p.Has(key) {
		return decimal.Zero, nil
	}
	return p.Amount(key)
}

// Rate returns an annual rate; absent means zero.
func (p *RequestBodyParser) Rate(key string) (decimal.Decimal, error) {
	d, err := core.ParseRate(p.Get(key))
	if err != nil {
		return decimal.Zero, &FieldError{Field: key, Err: err}
	}
	return d, nil
}

// Int returns an integer field; absent means zero.
func (p *RequestBodyParser) Int(key string) (int, error) {
	v := p.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &FieldError{Field: key, Err: errInvalidValue}
	}
	return n, nil
}

// Date returns a required YYYY-MM-DD date.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	d, err := core.ParseDate(p.Get(key))
	if err != nil {
		return core.Date{}, &FieldError{Field: key, Err: err}
	}
	return d, nil
}

// OptionalDate is Date that returns the zero date for an absent field.
func (p *RequestBodyParser) OptionalDate(key string) (core.Date, error) {
	if !p.Has(key) {
		return core.Date{}, nil
	}
	return p.Date(key)
}

// Bool returns a boolean field; absent or unparsable means false. Form
// checkboxes send "on".
func (p *RequestBodyParser) Bool(key string) bool {
	v := strings.ToLower(p.Get(key))
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// Required returns a non-empty string field.
func (p *RequestBodyParser) Required(key string) (string, error) {
	v := p.Get(key)
	if v == "" {
		return "", &FieldError{Field: key, Err: errMissingValue}
	}
	return v, nil
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseAsOf reads the optional "date" query parameter, defaulting to today.
func ParseAsOf(query url.Values, today core.Date) (core.Date, error) {
	v := strings.TrimSpace(query.Get("date"))
	if v == "" {
		return today, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &FieldError{Field: "date", Err: err}
	}
	return d, nil
}
