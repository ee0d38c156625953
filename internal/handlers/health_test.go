package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/ratelimit"
)

func TestHealthCheckReportsDegradedMode(t *testing.T) {
	t.Parallel()

	policies := map[string]ratelimit.Policy{
		"api": {Name: "api", Max: 5, Window: time.Minute},
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore(), policies, zap.NewNop())

	// Basic mode never touches the database.
	checker := NewHealthChecker(nil, limiter)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	checker.HealthCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rr.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", response.Status)
	}
	if !response.Degraded {
		t.Error("Expected the in-process counter store to surface as degraded")
	}
	if response.Checks != nil {
		t.Error("Expected no extended checks in basic mode")
	}
}
