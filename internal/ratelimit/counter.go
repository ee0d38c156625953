package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore is the pluggable sliding-window counter backend.
//
// Increment must atomically discard entries older than now-window, record
// a hit at now, and return the post-increment count together with the time
// the caller should report as the window reset. Implementations must be
// safe for concurrent callers on the same key.
type CounterStore interface {
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (count int64, resetAt time.Time, err error)

	// Degraded reports whether the store only provides single-process
	// isolation, so horizontally scaled deployments lose the global count.
	Degraded() bool

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryCounterStore is the in-process fallback used when no Redis URL is
// configured. It approximates the sliding window with a per-key count that
// resets once the window elapses, and prunes abandoned keys lazily.
type MemoryCounterStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	lastSweep time.Time
}

// NewMemoryCounterStore creates an empty in-process counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*memoryEntry),
	}
}

// Increment implements CounterStore.
func (s *MemoryCounterStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &memoryEntry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
		return e.count, e.resetAt, nil
	}

	e.count++
	return e.count, e.resetAt, nil
}

// sweepLocked drops expired keys. Runs at most once per minute so hot
// paths do not pay for a full map scan on every call.
func (s *MemoryCounterStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.lastSweep = now
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
		}
	}
}

// Degraded always reports true: counts are not shared across instances.
func (s *MemoryCounterStore) Degraded() bool { return true }

// Ping never fails for the in-process store.
func (s *MemoryCounterStore) Ping(_ context.Context) error { return nil }

// Len returns the number of live keys. Used by tests and health output.
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
