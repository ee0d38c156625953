package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxIdentifierLength caps storage keys so callers cannot bloat the
// backend key namespace with unbounded input.
const MaxIdentifierLength = 256

// Result is one admission decision.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	TotalHits int64     `json:"total_hits"`
	Policy    string    `json:"policy"`

	// Degraded is set when the decision came from the in-process
	// fallback store or from a fail-open on backend failure.
	Degraded bool `json:"degraded,omitempty"`
}

// RetryAfter returns the seconds a denied caller should wait, never
// below one second.
func (r Result) RetryAfter(now time.Time) int64 {
	secs := int64(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter enforces per-identifier quotas over sliding windows.
type Limiter struct {
	store    CounterStore
	policies map[string]Policy
	log      *zap.Logger
	metrics  *Metrics
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Tests use this to drive the
// window deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// NewLimiter builds a limiter over the given store and policy table.
func NewLimiter(store CounterStore, policies map[string]Policy, log *zap.Logger, opts ...Option) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{
		store:    store,
		policies: policies,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.metrics.SetDegraded(store.Degraded())
	return l
}

// Degraded reports whether decisions only have single-process scope.
func (l *Limiter) Degraded() bool { return l.store.Degraded() }

// Ping verifies the counter backend is reachable.
func (l *Limiter) Ping(ctx context.Context) error { return l.store.Ping(ctx) }

// Policy returns the named policy.
func (l *Limiter) Policy(name string) (Policy, bool) {
	p, ok := l.policies[name]
	return p, ok
}

// Check records a hit for identifier under the named policy and decides
// admission. Every call mutates counter state, denied calls included, so
// the overflowing request itself is counted.
//
// A backend failure fails open: the request is allowed, the result is
// flagged degraded, and the failure is logged and counted rather than
// swallowed.
func (l *Limiter) Check(ctx context.Context, identifier, policyName string) (Result, error) {
	policy, ok := l.policies[policyName]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown policy %q", ErrValidationFailed, policyName)
	}

	id, err := SanitizeIdentifier(identifier)
	if err != nil {
		return Result{}, err
	}

	now := l.now()
	key := fmt.Sprintf("ratelimit:%s:%s", policy.Name, id)

	count, resetAt, err := l.store.Increment(ctx, key, now, policy.Window)
	if err != nil {
		l.metrics.recordBackendError()
		l.metrics.recordDecision(policy.Name, "fail_open")
		l.log.Warn("ratelimit_backend_unavailable_failing_open",
			zap.String("policy", policy.Name),
			zap.Error(err),
		)
		return Result{
			Allowed:   true,
			Remaining: policy.Max,
			ResetAt:   now.Add(policy.Window),
			Policy:    policy.Name,
			Degraded:  true,
		}, nil
	}

	remaining := policy.Max - count
	if remaining < 0 {
		remaining = 0
	}

	result := Result{
		Allowed:   count <= policy.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
		TotalHits: count,
		Policy:    policy.Name,
		Degraded:  l.store.Degraded(),
	}

	if result.Allowed {
		l.metrics.recordDecision(policy.Name, "allowed")
	} else {
		l.metrics.recordDecision(policy.Name, "denied")
		l.log.Debug("ratelimit_denied",
			zap.String("policy", policy.Name),
			zap.Int64("total_hits", count),
			zap.Int64("max", policy.Max),
		)
	}

	return result, nil
}

// SanitizeIdentifier whitelists [A-Za-z0-9:_-] in the identifier so it
// cannot inject into the backing store's key namespace. Identifiers that
// sanitize to empty, or exceed MaxIdentifierLength, are rejected.
func SanitizeIdentifier(identifier string) (string, error) {
	if len(identifier) > MaxIdentifierLength {
		return "", fmt.Errorf("%w: identifier exceeds %d bytes", ErrValidationFailed, MaxIdentifierLength)
	}

	var b strings.Builder
	b.Grow(len(identifier))
	for _, r := range identifier {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ':' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}

	id := b.String()
	if id == "" {
		return "", fmt.Errorf("%w: identifier is empty after sanitization", ErrValidationFailed)
	}
	return id, nil
}
