package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/usage-gov/internal/models"
)

// fakeKeyRepository is an in-memory KeyRepository with the same
// atomicity contract as the SQL implementation.
type fakeKeyRepository struct {
	mu      sync.Mutex
	records []*models.APIKeyRecord
	failAll bool
}

func (f *fakeKeyRepository) Insert(_ context.Context, rec *models.APIKeyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("connection refused")
	}
	clone := *rec
	f.records = append(f.records, &clone)
	return nil
}

func (f *fakeKeyRepository) GetActive(_ context.Context, provider string) (*models.APIKeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("connection refused")
	}
	var newest *models.APIKeyRecord
	for _, rec := range f.records {
		if rec.Provider != provider || !rec.IsActive() {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}
	if newest == nil {
		return nil, nil
	}
	clone := *newest
	return &clone, nil
}

func (f *fakeKeyRepository) TouchLastUsed(_ context.Context, id uuid.UUID, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id {
			stamp := when
			rec.LastUsedAt = &stamp
			return nil
		}
	}
	return fmt.Errorf("key %s not found", id)
}

func (f *fakeKeyRepository) Rotate(_ context.Context, provider string, rec *models.APIKeyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("connection refused")
	}
	now := rec.CreatedAt
	for _, existing := range f.records {
		if existing.Provider == provider && existing.IsActive() {
			existing.Status = models.KeyStatusDeactivated
			stamp := now
			existing.DeactivatedAt = &stamp
		}
	}
	clone := *rec
	f.records = append(f.records, &clone)
	return nil
}

func (f *fakeKeyRepository) List(_ context.Context) ([]*models.APIKeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("connection refused")
	}
	out := make([]*models.APIKeyRecord, 0, len(f.records))
	for _, rec := range f.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeKeyRepository) activeCount(provider string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.records {
		if rec.Provider == provider && rec.IsActive() {
			count++
		}
	}
	return count
}

func newTestVault(t *testing.T) (*Vault, *fakeKeyRepository) {
	t.Helper()
	repo := &fakeKeyRepository{}
	v, err := New(repo, "test-secret", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v, repo
}

func validOpenAIKey() string {
	return "sk-" + strings.Repeat("a", 48)
}

func TestVaultStoreKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		provider  string
		key       string
		expectErr error
	}{
		{
			name:     "valid openai key",
			provider: "openai",
			key:      validOpenAIKey(),
		},
		{
			name:      "malformed openai key",
			provider:  "openai",
			key:       "short",
			expectErr: ErrInvalidKeyFormat,
		},
		{
			name:      "empty provider",
			provider:  "",
			key:       validOpenAIKey(),
			expectErr: ErrInvalidKeyFormat,
		},
		{
			name:     "provider normalized to lowercase",
			provider: "  OpenAI ",
			key:      validOpenAIKey(),
		},
		{
			name:     "unknown provider with plausible key",
			provider: "mistral",
			key:      "mst-0123456789abcdef",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, repo := newTestVault(t)
			id, err := v.StoreKey(context.Background(), tt.provider, tt.key)

			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Fatalf("Expected error %v, got %v", tt.expectErr, err)
				}
				if len(repo.records) != 0 {
					t.Error("Expected no record to be stored on validation failure")
				}
				return
			}

			if err != nil {
				t.Fatalf("StoreKey failed: %v", err)
			}
			if id == uuid.Nil {
				t.Error("Expected a non-nil key id")
			}
			if len(repo.records) != 1 {
				t.Fatalf("Expected 1 stored record, got %d", len(repo.records))
			}

			rec := repo.records[0]
			if !rec.IsActive() {
				t.Errorf("Expected stored record to be active, got %s", rec.Status)
			}
			if strings.Contains(rec.EncryptedKey, strings.TrimSpace(tt.key)) {
				t.Error("Stored record contains the plaintext key")
			}
			if !strings.HasPrefix(rec.EncryptedKey, "v1:") {
				t.Errorf("Expected versioned ciphertext framing, got %q", rec.EncryptedKey)
			}
		})
	}
}

func TestVaultGetKey(t *testing.T) {
	t.Parallel()

	v, repo := newTestVault(t)
	key := validOpenAIKey()

	if _, err := v.StoreKey(context.Background(), "openai", key); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	got, err := v.GetKey(context.Background(), "openai")
	if err != nil {
		t.Fatalf("GetKey failed: %v", err)
	}
	if got != key {
		t.Errorf("GetKey returned %q, want %q", got, key)
	}

	// Retrieval stamps last-used for auditability.
	if repo.records[0].LastUsedAt == nil {
		t.Error("Expected GetKey to stamp last_used_at")
	}
}

func TestVaultGetKeyNotFound(t *testing.T) {
	t.Parallel()

	v, _ := newTestVault(t)

	_, err := v.GetKey(context.Background(), "anthropic")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestVaultGetKeyBackendFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeKeyRepository{failAll: true}
	v, err := New(repo, "test-secret", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := v.GetKey(context.Background(), "openai"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
	}
	if _, err := v.StoreKey(context.Background(), "openai", validOpenAIKey()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
	}
}

func TestVaultRotateKey(t *testing.T) {
	t.Parallel()

	v, repo := newTestVault(t)
	ctx := context.Background()

	oldKey := validOpenAIKey()
	newKey := "sk-" + strings.Repeat("b", 48)

	oldID, err := v.StoreKey(ctx, "openai", oldKey)
	if err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	newID, err := v.RotateKey(ctx, "openai", newKey)
	if err != nil {
		t.Fatalf("RotateKey failed: %v", err)
	}
	if newID == oldID {
		t.Error("Rotation reused the old key id")
	}

	// Exactly one active record remains, and it resolves to the new key.
	if got := repo.activeCount("openai"); got != 1 {
		t.Fatalf("Expected exactly 1 active record after rotation, got %d", got)
	}
	got, err := v.GetKey(ctx, "openai")
	if err != nil {
		t.Fatalf("GetKey failed: %v", err)
	}
	if got != newKey {
		t.Errorf("GetKey returned the wrong key after rotation")
	}

	// The old record is retained, deactivated, with a deactivation stamp.
	for _, rec := range repo.records {
		if rec.ID != oldID {
			continue
		}
		if rec.Status != models.KeyStatusDeactivated {
			t.Errorf("Expected old record to be deactivated, got %s", rec.Status)
		}
		if rec.DeactivatedAt == nil {
			t.Error("Expected old record to carry a deactivation timestamp")
		}
	}
}

func TestVaultRotateKeyRejectsInvalidFormat(t *testing.T) {
	t.Parallel()

	v, repo := newTestVault(t)
	ctx := context.Background()

	if _, err := v.StoreKey(ctx, "openai", validOpenAIKey()); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	if _, err := v.RotateKey(ctx, "openai", "bogus"); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("Expected ErrInvalidKeyFormat, got %v", err)
	}

	// The live credential must be untouched by the failed rotation.
	if got := repo.activeCount("openai"); got != 1 {
		t.Errorf("Expected the active record to survive a failed rotation, got %d active", got)
	}
}

func TestVaultConcurrentRotations(t *testing.T) {
	t.Parallel()

	v, repo := newTestVault(t)
	ctx := context.Background()

	if _, err := v.StoreKey(ctx, "openai", validOpenAIKey()); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	const rotations = 16
	var wg sync.WaitGroup
	for i := 0; i < rotations; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("sk-%02d%s", i, strings.Repeat("c", 46))
			if _, err := v.RotateKey(ctx, "openai", key); err != nil {
				t.Errorf("RotateKey failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := repo.activeCount("openai"); got != 1 {
		t.Errorf("Expected exactly 1 active record after concurrent rotations, got %d", got)
	}
	if len(repo.records) != rotations+1 {
		t.Errorf("Expected %d total records, got %d", rotations+1, len(repo.records))
	}
}

func TestVaultHealthCheck(t *testing.T) {
	t.Parallel()

	v, _ := newTestVault(t)
	ctx := context.Background()

	if _, err := v.StoreKey(ctx, "openai", validOpenAIKey()); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	status := v.HealthCheck(ctx)
	if !status["openai"] {
		t.Error("Expected openai to report healthy")
	}
	if status["anthropic"] || status["google"] {
		t.Error("Expected providers without keys to report unhealthy")
	}
}

func TestVaultListKeysMasksMaterial(t *testing.T) {
	t.Parallel()

	v, _ := newTestVault(t)
	ctx := context.Background()

	key := validOpenAIKey()
	if _, err := v.StoreKey(ctx, "openai", key); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}
	if _, err := v.RotateKey(ctx, "openai", "sk-"+strings.Repeat("d", 48)); err != nil {
		t.Fatalf("RotateKey failed: %v", err)
	}

	views, err := v.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 views including the deactivated record, got %d", len(views))
	}

	for _, view := range views {
		if view.MaskedKey == "" {
			t.Error("Expected a masked key in the listing")
		}
		if len(view.MaskedKey) >= len(key) {
			t.Errorf("Masked key %q leaks too much material", view.MaskedKey)
		}
		if strings.Contains(view.MaskedKey, key[4:len(key)-4]) {
			t.Error("Masked key contains the key body")
		}
	}
}
