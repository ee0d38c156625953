package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/usage-gov/internal/models"
)

// APIKeyRepository handles encrypted provider key records. Records are
// soft-deactivated, never deleted, to preserve the audit trail.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Insert persists a new key record.
func (r *APIKeyRepository) Insert(ctx context.Context, rec *models.APIKeyRecord) error {
	query := `
		INSERT INTO api_keys (id, provider, encrypted_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Provider,
		rec.EncryptedKey,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}

	return nil
}

// GetActive returns the most recently created active record for the
// provider, or nil when the provider has no active key.
func (r *APIKeyRepository) GetActive(ctx context.Context, provider string) (*models.APIKeyRecord, error) {
	rec := &models.APIKeyRecord{}
	query := `
		SELECT id, provider, encrypted_key, status, created_at, last_used_at, deactivated_at
		FROM api_keys
		WHERE provider = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, provider, models.KeyStatusActive).Scan(
		&rec.ID,
		&rec.Provider,
		&rec.EncryptedKey,
		&rec.Status,
		&rec.CreatedAt,
		&rec.LastUsedAt,
		&rec.DeactivatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active api key: %w", err)
	}

	return rec, nil
}

// TouchLastUsed stamps the record's last-used time.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = $2 WHERE id = $1
	`, id, when)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", err)
	}
	return nil
}

// Rotate deactivates every active record for the provider and inserts
// the replacement in one transaction, so no observer sees zero or two
// active keys once the call returns.
func (r *APIKeyRepository) Rotate(ctx context.Context, provider string, rec *models.APIKeyRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			_ = rollbackErr
		}
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE api_keys
		SET status = $2, deactivated_at = $3
		WHERE provider = $1 AND status = $4
	`, provider, models.KeyStatusDeactivated, rec.CreatedAt, models.KeyStatusActive)
	if err != nil {
		return fmt.Errorf("failed to deactivate prior keys: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO api_keys (id, provider, encrypted_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.Provider, rec.EncryptedKey, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert replacement key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}
	return nil
}

// List returns every record, newest first.
func (r *APIKeyRepository) List(ctx context.Context) ([]*models.APIKeyRecord, error) {
	query := `
		SELECT id, provider, encrypted_key, status, created_at, last_used_at, deactivated_at
		FROM api_keys
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var recs []*models.APIKeyRecord
	for rows.Next() {
		rec := &models.APIKeyRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.Provider,
			&rec.EncryptedKey,
			&rec.Status,
			&rec.CreatedAt,
			&rec.LastUsedAt,
			&rec.DeactivatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return recs, nil
}

// CountActive returns the number of active records for the provider.
// The rotation invariant keeps this at most one.
func (r *APIKeyRepository) CountActive(ctx context.Context, provider string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM api_keys WHERE provider = $1 AND status = $2
	`, provider, models.KeyStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active keys: %w", err)
	}
	return count, nil
}
