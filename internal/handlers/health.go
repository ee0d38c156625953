package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/usage-gov/internal/database"
	"github.com/benvon/usage-gov/internal/ratelimit"
)

// HealthChecker handles health check requests
type HealthChecker struct {
	db      *database.DB
	limiter *ratelimit.Limiter
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(db *database.DB, limiter *ratelimit.Limiter) *HealthChecker {
	return &HealthChecker{db: db, limiter: limiter}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Degraded  bool              `json:"rate_limit_degraded"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. The rate-limit degraded
// flag is always present so operators can tell when admission control
// has lost its global counter scope.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Degraded:  h.limiter.Degraded(),
	}

	if r.URL.Query().Get("mode") == "extended" {
		checks := make(map[string]string)

		if err := h.checkDatabase(r.Context()); err != nil {
			response.Status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}

		if err := h.limiter.Ping(r.Context()); err != nil {
			// Counter backend failure degrades service but does not
			// make it unhealthy: the limiter fails open.
			checks["counter_store"] = "unhealthy: " + err.Error()
		} else {
			checks["counter_store"] = "healthy"
		}

		response.Checks = checks

		statusCode := http.StatusOK
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			_ = err
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		_ = err
	}
}

// checkDatabase verifies the database connection
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.db.PingContext(ctx)
}
