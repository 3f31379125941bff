// Package jsonutil provides helper functions for JSON API responses.
//
// Every voice endpoint answers with the same envelope, {"success", "message"}
// plus endpoint-specific fields, so clients can branch on "success" without
// inspecting the status code. Use these helpers in handlers to keep the
// envelope and Content-Type consistent.
package jsonutil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the common response shape. Handlers embed it in their own
// response structs.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSON writes a JSON response with the given status code.
//
// Usage:
//
//	jsonutil.JSON(w, http.StatusOK, loginResponse{
//	    Envelope:   jsonutil.Envelope{Success: true, Message: "Login successful"},
//	    Similarity: &best,
//	})
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 OK JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created JSON response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response (no body).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a failure envelope with the given status code.
// The response body is {"success": false, "message": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// BadRequest writes a 400 Bad Request failure envelope.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized failure envelope.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// NotFound writes a 404 Not Found failure envelope.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// Conflict writes a 409 Conflict failure envelope.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, message)
}

// TooLarge writes a 413 Request Entity Too Large failure envelope.
func TooLarge(w http.ResponseWriter, message string) {
	Error(w, http.StatusRequestEntityTooLarge, message)
}

// InternalError writes a 500 Internal Server Error failure envelope.
// Do not expose internal details to clients - log the actual error separately.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

// ValidationError writes a 400 Bad Request envelope with field-level errors.
//
// Usage:
//
//	jsonutil.ValidationError(w, "Email is required.", map[string]string{
//	    "email": "Email is required.",
//	})
func ValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	JSON(w, http.StatusBadRequest, struct {
		Envelope
		Fields map[string]string `json:"fields,omitempty"`
	}{
		Envelope: Envelope{Success: false, Message: message},
		Fields:   fields,
	})
}
