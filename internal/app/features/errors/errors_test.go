package errors

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNotFound_Returns404(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %q, want failure envelope", rec.Body.String())
	}
}

func TestMethodNotAllowed_Returns405(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().MethodNotAllowed(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestErrorLogger_Log(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	el := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "req-1"))
	el.Log(req, "registration failed", stderrors.New("boom"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/register" || fields["method"] != http.MethodPost {
		t.Errorf("fields = %v", fields)
	}
	if fields["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", fields["request_id"])
	}
	if fields["error"] != "boom" {
		t.Errorf("error = %v, want boom", fields["error"])
	}
}

func TestErrorLogger_LogWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	el := NewErrorLogger(zap.New(core))

	el.LogWithFields(httptest.NewRequest(http.MethodPost, "/login", nil), "login failed",
		stderrors.New("boom"), zap.String("email", "ada@example.com"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["request_id"]; ok {
		t.Error("request_id should be omitted when absent")
	}
	if entries[0].ContextMap()["email"] != "ada@example.com" {
		t.Errorf("email field missing: %v", entries[0].ContextMap())
	}
}
