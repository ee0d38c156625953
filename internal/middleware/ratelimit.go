package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/ratelimit"
	"github.com/benvon/usage-gov/internal/request"
)

// RateLimit enforces the named policy on every request passing through.
//
// Headers are set on allowed and denied responses alike so clients can
// pace themselves; denials get a structured 429 with Retry-After. Every
// checked request consumes quota, denied ones included.
func RateLimit(limiter *ratelimit.Limiter, policyName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Check(r.Context(), request.Identifier(r), policyName)
			if err != nil {
				// Malformed identifier or unknown policy: reject
				// before any handler state is touched.
				logger.Warn("rate_limit_check_rejected",
					zap.String("policy", policyName),
					zap.Error(err),
				)
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}

			policy, _ := limiter.Policy(policyName)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(policy.Max, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(result.RetryAfter(time.Now()), 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := fmt.Fprintf(w, `{"success":false,"error":"Too Many Requests","message":"rate limit exceeded for policy %s"}`, policy.Name); err != nil {
					_ = err
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
