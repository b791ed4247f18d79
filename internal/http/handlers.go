package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"budget/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"},
	}

	switch {
	case s.ready == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.ready(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheEntries := 0
	if s.cacheEntries != nil {
		cacheEntries = s.cacheEntries()
	}

	w.WriteHeader(http.StatusOK)
	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_requests_in_flight", "Requests currently being served", "gauge", traceMetrics.InFlight)
	metric("http_request_duration_avg_microseconds", "Average request duration", "gauge", traceMetrics.AverageResponseTime)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "Requests refused by method", "counter", securityMetrics.BlockedRequests)
	metric("collaborator_cache_entries", "Cached collaborator sets", "gauge", cacheEntries)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", s.now().Sub(s.startedAt).Seconds()))
}

// handleResolveTerms previews the derived terms of a loan without storing it.
func (s *Server) handleResolveTerms(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, payment, err := termsInput(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	terms, err := services.ResolveTerms(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if payment.IsPositive() {
		if err := services.CheckPaymentCoversPrincipal(terms.Principal, payment, terms.InstallmentCount); err != nil {
			writeError(w, r, err)
			return
		}
		terms.PeriodicPayment = payment
	}
	NewResponse().JSON(newTermsResponse(terms)).Write(w)
}

// handleDashboard returns the caller's share report and summaries.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	asOf, err := ParseAsOf(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Dashboards.Dashboard(r.Context(), userID(r), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newDashboardResponse(d)).Write(w)
}
