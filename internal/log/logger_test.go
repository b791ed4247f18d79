package log

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentCredit, Output: &buf})
	l.Info("credit settled", FieldRecordID, "c1")

	out := buf.String()
	if !strings.Contains(out, "component=credit") || !strings.Contains(out, "record_id=c1") {
		t.Fatalf("unexpected log line: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentShares).Warn("no income")
	if !strings.Contains(buf.String(), "component=shares") {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestMiddlewareAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Output: &buf})

	h := Middleware(base, func(*http.Request) string { return "req-1" })(
		AccessLog(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromContext(r.Context()).Component() != ComponentHTTP {
				t.Errorf("context logger has wrong component")
			}
			w.WriteHeader(http.StatusNotFound)
		})),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.Header.Set("X-User-ID", "alice")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"level=WARN", "request_id=req-1", "user_id=alice", "status_code=404"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %q: %s", want, out)
		}
	}
}
