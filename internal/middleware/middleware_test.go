package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"thumbsmith/internal/logging"
	"thumbsmith/internal/metrics"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "/metrics", want: "/metrics"},
		{name: "newline", input: "a\nb", want: "a b"},
		{name: "carriage return", input: "a\r\nb", want: "a  b"},
		{name: "null byte", input: "a\x00b", want: "ab"},
		{name: "ansi escape", input: "\x1b[31mred", want: "[31mred"},
		{name: "tab kept", input: "a\tb", want: "a\tb"},
		{name: "bell stripped", input: "a\x07b", want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{name: "metrics logged", path: "/metrics", config: DefaultLoggingConfig(), want: false},
		{name: "health skipped by default", path: "/healthz", config: DefaultLoggingConfig(), want: true},
		{name: "health logged when enabled", path: "/healthz", config: LoggingConfig{LogHealthChecks: true}, want: false},
		{name: "explicit skip prefix", path: "/debug/pprof", config: LoggingConfig{SkipPaths: []string{"/debug"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded chain", header: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, remote: "10.0.0.1:1", want: "1.2.3.4"},
		{name: "forwarded single", header: map[string]string{"X-Forwarded-For": " 5.6.7.8 "}, remote: "10.0.0.1:1", want: "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerWritesDebugLine(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	prev := logging.GetLevel()
	logging.SetLevel(logging.LevelDebug)
	t.Cleanup(func() {
		logging.SetOutput(os.Stderr)
		logging.SetLevel(prev)
	})

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("User-Agent", "Prometheus/2.0 (scraper)")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	out := buf.String()
	for _, want := range []string{"GET /metrics 418 15", `"Prometheus/2.0 (scraper)"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("health check was logged: %q", buf.String())
	}
}

func TestMetricsMiddleware(t *testing.T) {
	handler := Metrics()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	okCounter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	notFound := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "other", "404")
	okBefore, nfBefore := testutil.ToFloat64(okCounter), testutil.ToFloat64(notFound)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/some/random/path", nil))

	if got := testutil.ToFloat64(okCounter) - okBefore; got != 1 {
		t.Errorf("/metrics 200 counter grew by %v, want 1", got)
	}
	if got := testutil.ToFloat64(notFound) - nfBefore; got != 1 {
		t.Errorf("other 404 counter grew by %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsInFlight); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}
