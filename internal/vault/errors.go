package vault

import "errors"

var (
	// ErrInvalidKeyFormat indicates the plaintext key did not match the
	// provider's expected shape; nothing was stored.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrNotFound indicates no active key exists for the provider, so
	// callers can distinguish "not configured" from a transient failure.
	ErrNotFound = errors.New("no active key for provider")

	// ErrBackendUnavailable indicates the key store could not be
	// reached. The vault fails closed: a missing credential surfaces as
	// an error instead of silently returning nothing.
	ErrBackendUnavailable = errors.New("key store unavailable")
)
