package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// failingStore simulates a counter backend outage.
type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Time, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}
func (failingStore) Degraded() bool             { return false }
func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func testPolicies() map[string]Policy {
	return map[string]Policy{
		"api": {Name: "api", Max: 5, Window: 60 * time.Second},
	}
}

func TestLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advanceTo := func(offset time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = base.Add(offset)
	}

	limiter := NewLimiter(NewMemoryCounterStore(), testPolicies(), nil, WithClock(clock))
	ctx := context.Background()

	// Five requests in quick succession consume the whole budget.
	offsets := []time.Duration{0, 20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond, 80 * time.Millisecond}
	wantRemaining := []int64{4, 3, 2, 1, 0}
	for i, offset := range offsets {
		advanceTo(offset)
		result, err := limiter.Check(ctx, "user:42", "api")
		if err != nil {
			t.Fatalf("Check %d failed: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		if result.Remaining != wantRemaining[i] {
			t.Errorf("Request %d: remaining = %d, want %d", i+1, result.Remaining, wantRemaining[i])
		}
	}

	// The sixth request inside the window is denied, and still counted.
	advanceTo(100 * time.Millisecond)
	result, err := limiter.Check(ctx, "user:42", "api")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected the sixth request inside the window to be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("Denied request: remaining = %d, want 0", result.Remaining)
	}
	if result.TotalHits != 6 {
		t.Errorf("Denied request: total hits = %d, want 6", result.TotalHits)
	}
	if result.RetryAfter(clock()) < 1 {
		t.Error("Expected RetryAfter to report at least one second")
	}

	// After the window expires the same identifier is admitted again.
	advanceTo(61 * time.Second)
	result, err = limiter.Check(ctx, "user:42", "api")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Allowed {
		t.Error("Expected a request after the window expired to be allowed")
	}
	if result.TotalHits != 1 {
		t.Errorf("Post-expiry request: total hits = %d, want 1", result.TotalHits)
	}
}

func TestLimiterIsolatesIdentifiersAndPolicies(t *testing.T) {
	t.Parallel()

	policies := map[string]Policy{
		"api":  {Name: "api", Max: 1, Window: time.Minute},
		"chat": {Name: "chat", Max: 1, Window: time.Minute},
	}
	limiter := NewLimiter(NewMemoryCounterStore(), policies, nil)
	ctx := context.Background()

	if result, _ := limiter.Check(ctx, "user:a", "api"); !result.Allowed {
		t.Fatal("Expected first request for user:a to be allowed")
	}
	if result, _ := limiter.Check(ctx, "user:a", "api"); result.Allowed {
		t.Error("Expected second request for user:a under api to be denied")
	}

	// A different identifier under the same policy has its own budget.
	if result, _ := limiter.Check(ctx, "user:b", "api"); !result.Allowed {
		t.Error("Expected user:b to have an independent quota")
	}

	// The same identifier under a different policy has its own budget.
	if result, _ := limiter.Check(ctx, "user:a", "chat"); !result.Allowed {
		t.Error("Expected user:a to have an independent quota under chat")
	}
}

func TestLimiterUnknownPolicy(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(NewMemoryCounterStore(), testPolicies(), nil)

	_, err := limiter.Check(context.Background(), "user:42", "nonexistent")
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Expected ErrValidationFailed, got %v", err)
	}
}

func TestLimiterFailsOpenOnBackendError(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(failingStore{}, testPolicies(), nil)

	result, err := limiter.Check(context.Background(), "user:42", "api")
	if err != nil {
		t.Fatalf("Expected fail-open, got error: %v", err)
	}
	if !result.Allowed {
		t.Error("Expected the request to be allowed when the backend is down")
	}
	if !result.Degraded {
		t.Error("Expected the fail-open result to be flagged degraded")
	}
	if result.Remaining != 5 {
		t.Errorf("Fail-open remaining = %d, want the policy max", result.Remaining)
	}
}

func TestLimiterConcurrentSingleAdmission(t *testing.T) {
	t.Parallel()

	policies := map[string]Policy{
		"single": {Name: "single", Max: 1, Window: time.Minute},
	}
	limiter := NewLimiter(NewMemoryCounterStore(), policies, nil)
	ctx := context.Background()

	const callers = 32
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.Check(ctx, "user:contended", "single")
			if err != nil {
				t.Errorf("Check failed: %v", err)
				return
			}
			if result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 1 {
		t.Errorf("Expected exactly 1 of %d concurrent requests to be allowed, got %d", callers, got)
	}
}

func TestLimiterDegradedReflectsStore(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(NewMemoryCounterStore(), testPolicies(), nil)
	if !limiter.Degraded() {
		t.Error("Expected the in-process store to report degraded mode")
	}

	result, err := limiter.Check(context.Background(), "user:42", "api")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Degraded {
		t.Error("Expected decisions from the in-process store to be flagged degraded")
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		want      string
		expectErr bool
	}{
		{name: "plain identifier", input: "user:42", want: "user:42"},
		{name: "uuid style", input: "user:2f1c9e7a-1b2c-4d5e", want: "user:2f1c9e7a-1b2c-4d5e"},
		{name: "strips shell metacharacters", input: "user:42;rm *", want: "user:42rm"},
		{name: "strips whitespace", input: "user 42", want: "user42"},
		{name: "strips dots from addresses", input: "ip:10.0.0.1", want: "ip:10001"},
		{name: "empty input", input: "", expectErr: true},
		{name: "only stripped characters", input: "!!!...%%%", expectErr: true},
		{name: "over length cap", input: strings.Repeat("a", MaxIdentifierLength+1), expectErr: true},
		{name: "at length cap", input: strings.Repeat("a", MaxIdentifierLength), want: strings.Repeat("a", MaxIdentifierLength)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SanitizeIdentifier(tt.input)
			if tt.expectErr {
				if !errors.Is(err, ErrValidationFailed) {
					t.Fatalf("Expected ErrValidationFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeIdentifier failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
