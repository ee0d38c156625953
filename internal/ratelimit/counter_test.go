package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCounterStoreIncrement(t *testing.T) {
	t.Parallel()

	store := NewMemoryCounterStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	for want := int64(1); want <= 3; want++ {
		count, resetAt, err := store.Increment(ctx, "ratelimit:api:user:1", now, window)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if count != want {
			t.Errorf("count = %d, want %d", count, want)
		}
		if !resetAt.Equal(now.Add(window)) {
			t.Errorf("resetAt = %v, want %v", resetAt, now.Add(window))
		}
	}
}

func TestMemoryCounterStoreWindowReset(t *testing.T) {
	t.Parallel()

	store := NewMemoryCounterStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	if _, _, err := store.Increment(ctx, "k", now, window); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	// A call at exactly the reset boundary starts a fresh window.
	count, resetAt, err := store.Increment(ctx, "k", now.Add(window), window)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reset = %d, want 1", count)
	}
	if !resetAt.Equal(now.Add(2 * window)) {
		t.Errorf("resetAt after reset = %v, want %v", resetAt, now.Add(2*window))
	}
}

func TestMemoryCounterStoreSweep(t *testing.T) {
	t.Parallel()

	store := NewMemoryCounterStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for _, key := range []string{"a", "b", "c"} {
		if _, _, err := store.Increment(ctx, key, now, time.Second); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
	if got := store.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}

	// Touching a new key well past expiry sweeps the abandoned ones.
	if _, _, err := store.Increment(ctx, "d", now.Add(2*time.Minute), time.Second); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got := store.Len(); got != 1 {
		t.Errorf("Len after sweep = %d, want 1", got)
	}
}

func TestMemoryCounterStoreDegraded(t *testing.T) {
	t.Parallel()

	store := NewMemoryCounterStore()
	if !store.Degraded() {
		t.Error("Expected the in-process store to report degraded")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
