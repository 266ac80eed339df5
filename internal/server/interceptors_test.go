package server_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lpaquette/bgptracer/internal/server"
)

// discardLogger returns a logger that writes nowhere, for tests that only
// assert on HTTP behavior.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// -------------------------------------------------------------------------
// TestRecoveryMiddleware
// -------------------------------------------------------------------------

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("intentional test panic")
	})

	handler := server.RecoveryMiddleware(discardLogger())(panicking)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "panic recovered") {
		t.Errorf("body = %q, want it to mention panic recovery", rec.Body.String())
	}
}

// -------------------------------------------------------------------------
// TestLoggingMiddleware
// -------------------------------------------------------------------------

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	handler := server.LoggingMiddleware(logger)(ok)

	req := httptest.NewRequest(http.MethodGet, "/v1/states", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}

	logged := buf.String()
	if !strings.Contains(logged, `"status":418`) {
		t.Errorf("log output = %q, want status=418 recorded", logged)
	}
	if !strings.Contains(logged, "level\":\"WARN\"") {
		t.Errorf("log output = %q, want WARN level for a 4xx+ status", logged)
	}
}

// -------------------------------------------------------------------------
// TestLoggingMiddlewareSuccess
// -------------------------------------------------------------------------

func TestLoggingMiddlewareSuccess(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := server.LoggingMiddleware(logger)(ok)

	req := httptest.NewRequest(http.MethodGet, "/v1/states", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if strings.Contains(buf.String(), "level\":\"WARN\"") {
		t.Errorf("log output = %q, want INFO level for a 2xx status", buf.String())
	}
}
