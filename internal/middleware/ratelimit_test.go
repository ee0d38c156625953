package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/ratelimit"
)

func newTestLimiter(max int64) *ratelimit.Limiter {
	policies := map[string]ratelimit.Policy{
		"api": {Name: "api", Max: max, Window: time.Minute},
	}
	return ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore(), policies, zap.NewNop())
}

func TestRateLimitSetsHeaders(t *testing.T) {
	t.Parallel()

	handler := RateLimit(newTestLimiter(5), "api", zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest("GET", "/api/v1/usage", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, "5")
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "4")
	}
	if rr.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("Expected X-RateLimit-Reset to be set")
	}
}

func TestRateLimitDeniesOverBudget(t *testing.T) {
	t.Parallel()

	var handled int
	handler := RateLimit(newTestLimiter(2), "api", zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handled++
			w.WriteHeader(http.StatusOK)
		}),
	)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/usage", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if handled != 2 {
		t.Errorf("Expected 2 requests to reach the handler, got %d", handled)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After on a denied response")
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "0")
	}
	if !strings.Contains(last.Body.String(), "Too Many Requests") {
		t.Errorf("Expected a structured denial body, got %q", last.Body.String())
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	t.Parallel()

	handler := RateLimit(newTestLimiter(1), "api", zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	first := httptest.NewRequest("GET", "/api/v1/usage", nil)
	first.RemoteAddr = "10.0.0.1:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected first client to be allowed, got %d", rr.Code)
	}

	// A different client IP has an independent budget.
	second := httptest.NewRequest("GET", "/api/v1/usage", nil)
	second.RemoteAddr = "10.0.0.2:54321"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, second)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected second client to be allowed, got %d", rr.Code)
	}
}

func TestRateLimitUnknownPolicy(t *testing.T) {
	t.Parallel()

	handler := RateLimit(newTestLimiter(5), "nonexistent", zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not run for an unknown policy")
		}),
	)

	req := httptest.NewRequest("GET", "/api/v1/usage", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}
