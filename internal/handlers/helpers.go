package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/usage-gov/internal/ratelimit"
	"github.com/benvon/usage-gov/internal/validation"
	"github.com/benvon/usage-gov/internal/vault"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	sanitized := message
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondDomainError maps the core error taxonomy onto HTTP statuses:
// invalid input is 400, missing credentials 404, unreachable backends
// 503, anything else 500.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrInvalidKeyFormat):
		respondJSONError(w, http.StatusBadRequest, "Invalid Key Format", err.Error())
	case errors.Is(err, validation.ErrValidationFailed), errors.Is(err, ratelimit.ErrValidationFailed):
		respondJSONError(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, vault.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, vault.ErrBackendUnavailable), errors.Is(err, ratelimit.ErrBackendUnavailable):
		respondJSONError(w, http.StatusServiceUnavailable, "Backend Unavailable", err.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}
