package jsonutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantBody   string
	}{
		{
			name:       "200 OK with envelope",
			status:     http.StatusOK,
			data:       Envelope{Success: true, Message: "Login successful"},
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"message":"Login successful"}`,
		},
		{
			name:       "201 Created with data",
			status:     http.StatusCreated,
			data:       map[string]int{"id": 123},
			wantStatus: http.StatusCreated,
			wantBody:   `{"id":123}`,
		},
		{
			name:       "nil data",
			status:     http.StatusOK,
			data:       nil,
			wantStatus: http.StatusOK,
			wantBody:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			JSON(rec, tt.status, tt.data)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}
			body := strings.TrimSpace(rec.Body.String())
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestJSON_EmbeddedEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	best := 0.97
	OK(rec, struct {
		Envelope
		Similarity *float64 `json:"similarity,omitempty"`
		Spoken     *string  `json:"spoken,omitempty"`
	}{
		Envelope:   Envelope{Success: false, Message: "Passphrase mismatch"},
		Similarity: &best,
	})

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if got["success"] != false {
		t.Errorf("success = %v, want false", got["success"])
	}
	if got["message"] != "Passphrase mismatch" {
		t.Errorf("message = %v", got["message"])
	}
	if got["similarity"].(float64) != 0.97 {
		t.Errorf("similarity = %v, want 0.97", got["similarity"])
	}
	if _, ok := got["spoken"]; ok {
		t.Error("spoken should be omitted when nil")
	}
}

func TestCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]any{"id": 456})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body should be empty, got %q", rec.Body.String())
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(http.ResponseWriter, string)
		wantStatus int
	}{
		{"bad request", BadRequest, http.StatusBadRequest},
		{"unauthorized", Unauthorized, http.StatusUnauthorized},
		{"not found", NotFound, http.StatusNotFound},
		{"conflict", Conflict, http.StatusConflict},
		{"too large", TooLarge, http.StatusRequestEntityTooLarge},
		{"internal error", InternalError, http.StatusInternalServerError},
		{"error", func(w http.ResponseWriter, m string) { Error(w, http.StatusTeapot, m) }, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, "something happened")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var got Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("json unmarshal error: %v", err)
			}
			if got.Success {
				t.Error("success should be false")
			}
			if got.Message != "something happened" {
				t.Errorf("message = %q, want %q", got.Message, "something happened")
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationError(rec, "Email is required.", map[string]string{
		"email": "Email is required.",
		"name":  "Name is required.",
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	var got struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}

	if got.Success {
		t.Error("success should be false")
	}
	if got.Message != "Email is required." {
		t.Errorf("message = %q", got.Message)
	}
	if got.Fields["name"] != "Name is required." {
		t.Errorf("fields.name = %q", got.Fields["name"])
	}
}
