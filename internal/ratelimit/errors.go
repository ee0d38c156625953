package ratelimit

import "errors"

var (
	// ErrValidationFailed indicates a malformed identifier or unknown
	// policy; rejected before any counter state is touched.
	ErrValidationFailed = errors.New("rate limit validation failed")

	// ErrBackendUnavailable indicates the counter store could not be
	// reached. The limiter converts this into a fail-open decision.
	ErrBackendUnavailable = errors.New("counter store unavailable")
)
