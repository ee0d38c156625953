package request

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithUserID returns a context with the authenticated user id attached.
// Authentication itself is an upstream collaborator's concern; this
// package only carries the identity for identifier derivation.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request is anonymous.
func UserIDFromContext(r *http.Request) string {
	id, _ := r.Context().Value(userIDContextKey).(string)
	return id
}

// Identifier derives the rate-limit identifier for a request. An
// authenticated user id is preferred over the client IP, so users
// behind a shared NAT do not trip each other's limits.
func Identifier(r *http.Request) string {
	if userID := UserIDFromContext(r); userID != "" {
		return "user:" + userID
	}
	return "ip:" + ClientIP(r)
}
