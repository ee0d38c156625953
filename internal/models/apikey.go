package models

import (
	"time"

	"github.com/google/uuid"
)

// KeyStatus is the lifecycle state of a stored provider key.
// Records are never deleted; rotation moves them to deactivated.
type KeyStatus string

const (
	// KeyStatusActive marks the record GetKey resolves to
	KeyStatusActive KeyStatus = "active"
	// KeyStatusDeactivated marks records retired by rotation
	KeyStatusDeactivated KeyStatus = "deactivated"
)

// APIKeyRecord represents an encrypted provider credential.
// EncryptedKey carries its own nonce and scheme version, so decryption
// needs nothing beyond the record and the process secret.
type APIKeyRecord struct {
	ID            uuid.UUID  `json:"id"`
	Provider      string     `json:"provider"`
	EncryptedKey  string     `json:"-"` // Never expose ciphertext in JSON
	Status        KeyStatus  `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// IsActive reports whether the record is the provider's live credential.
func (r *APIKeyRecord) IsActive() bool {
	return r.Status == KeyStatusActive
}

// APIKeyView is the masked representation safe for listings and logs.
type APIKeyView struct {
	ID         uuid.UUID  `json:"id"`
	Provider   string     `json:"provider"`
	MaskedKey  string     `json:"masked_key,omitempty"`
	Status     KeyStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
