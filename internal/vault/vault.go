package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/models"
)

// KeyRepository is the persistence surface the vault depends on.
// Implemented by database.APIKeyRepository; tests use in-memory fakes.
type KeyRepository interface {
	Insert(ctx context.Context, rec *models.APIKeyRecord) error

	// GetActive returns the most recently created active record for
	// provider, or nil when none exists.
	GetActive(ctx context.Context, provider string) (*models.APIKeyRecord, error)

	TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error

	// Rotate must deactivate every active record for the provider and
	// insert the replacement in one transaction.
	Rotate(ctx context.Context, provider string, rec *models.APIKeyRecord) error

	List(ctx context.Context) ([]*models.APIKeyRecord, error)
}

// Vault encrypts, stores, rotates, and serves provider credentials.
// It is an explicitly constructed dependency, not a process singleton,
// so tests and multi-tenant setups can run isolated instances.
type Vault struct {
	repo   KeyRepository
	cipher *Cipher
	log    *zap.Logger
	now    func() time.Time

	// mu guards providerLocks; each provider gets its own mutex so
	// concurrent rotations of the same provider serialize without
	// blocking unrelated providers.
	mu            sync.Mutex
	providerLocks map[string]*sync.Mutex
}

// New builds a vault over the given repository, deriving the encryption
// key from secret.
func New(repo KeyRepository, secret string, log *zap.Logger) (*Vault, error) {
	cipher, err := NewCipher(secret)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Vault{
		repo:          repo,
		cipher:        cipher,
		log:           log,
		now:           time.Now,
		providerLocks: make(map[string]*sync.Mutex),
	}, nil
}

// SetClock overrides the time source for tests.
func (v *Vault) SetClock(now func() time.Time) { v.now = now }

func (v *Vault) providerLock(provider string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.providerLocks[provider]
	if !ok {
		l = &sync.Mutex{}
		v.providerLocks[provider] = l
	}
	return l
}

// StoreKey validates, encrypts, and persists a new active key for
// provider. Existing records are left untouched; use RotateKey to
// replace a live credential.
func (v *Vault) StoreKey(ctx context.Context, provider, plaintextKey string) (uuid.UUID, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return uuid.Nil, fmt.Errorf("%w: provider must not be empty", ErrInvalidKeyFormat)
	}
	if !ValidateFormat(provider, plaintextKey) {
		return uuid.Nil, fmt.Errorf("%w: key for provider %q does not match expected format", ErrInvalidKeyFormat, provider)
	}

	encrypted, err := v.cipher.Encrypt(strings.TrimSpace(plaintextKey))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encrypt key: %w", err)
	}

	rec := &models.APIKeyRecord{
		ID:           uuid.New(),
		Provider:     provider,
		EncryptedKey: encrypted,
		Status:       models.KeyStatusActive,
		CreatedAt:    v.now(),
	}
	if err := v.repo.Insert(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	v.log.Info("stored_provider_key",
		zap.String("provider", provider),
		zap.String("key_id", rec.ID.String()),
		zap.String("masked_key", MaskKey(plaintextKey)),
	)
	return rec.ID, nil
}

// GetKey decrypts and returns the most recent active key for provider,
// stamping lastUsedAt. Returns ErrNotFound when the provider has no
// active key.
func (v *Vault) GetKey(ctx context.Context, provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	rec, err := v.repo.GetActive(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if rec == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, provider)
	}

	plaintext, err := v.cipher.Decrypt(rec.EncryptedKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt key for provider %s: %w", provider, err)
	}

	if err := v.repo.TouchLastUsed(ctx, rec.ID, v.now()); err != nil {
		// Usage still succeeds when bookkeeping fails; the stamp is
		// audit metadata, not part of the credential contract.
		v.log.Warn("failed_to_update_key_last_used",
			zap.String("provider", provider),
			zap.String("key_id", rec.ID.String()),
			zap.Error(err),
		)
	}

	return plaintext, nil
}

// RotateKey atomically deactivates all active records for provider and
// installs newPlaintextKey as the single active one. Concurrent
// rotations for the same provider serialize on a per-provider lock, so
// exactly one record ends up active.
func (v *Vault) RotateKey(ctx context.Context, provider, newPlaintextKey string) (uuid.UUID, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return uuid.Nil, fmt.Errorf("%w: provider must not be empty", ErrInvalidKeyFormat)
	}
	if !ValidateFormat(provider, newPlaintextKey) {
		return uuid.Nil, fmt.Errorf("%w: key for provider %q does not match expected format", ErrInvalidKeyFormat, provider)
	}

	lock := v.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	encrypted, err := v.cipher.Encrypt(strings.TrimSpace(newPlaintextKey))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encrypt key: %w", err)
	}

	rec := &models.APIKeyRecord{
		ID:           uuid.New(),
		Provider:     provider,
		EncryptedKey: encrypted,
		Status:       models.KeyStatusActive,
		CreatedAt:    v.now(),
	}
	if err := v.repo.Rotate(ctx, provider, rec); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	v.log.Info("rotated_provider_key",
		zap.String("provider", provider),
		zap.String("key_id", rec.ID.String()),
		zap.String("masked_key", MaskKey(newPlaintextKey)),
	)
	return rec.ID, nil
}

// HealthCheck reports, per known provider, whether an active key exists,
// decrypts, and still matches its expected format. It never returns an
// error; failures show up as false entries.
func (v *Vault) HealthCheck(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(providerKeyPatterns))
	for _, provider := range KnownProviders() {
		key, err := v.GetKey(ctx, provider)
		status[provider] = err == nil && ValidateFormat(provider, key)
	}
	return status
}

// ListKeys returns masked views of every stored record, newest first
// per repository ordering. Deactivated records stay visible for audit.
func (v *Vault) ListKeys(ctx context.Context) ([]models.APIKeyView, error) {
	recs, err := v.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	views := make([]models.APIKeyView, 0, len(recs))
	for _, rec := range recs {
		view := models.APIKeyView{
			ID:         rec.ID,
			Provider:   rec.Provider,
			Status:     rec.Status,
			CreatedAt:  rec.CreatedAt,
			LastUsedAt: rec.LastUsedAt,
		}
		if plaintext, err := v.cipher.Decrypt(rec.EncryptedKey); err == nil {
			view.MaskedKey = MaskKey(plaintext)
		}
		views = append(views, view)
	}
	return views, nil
}
