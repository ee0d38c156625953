package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/usage-gov/internal/models"
)

// AlertConfigRepository handles alert threshold configuration rows,
// unique per (feature, alert_type).
type AlertConfigRepository struct {
	db *DB
}

// NewAlertConfigRepository creates a new alert config repository.
func NewAlertConfigRepository(db *DB) *AlertConfigRepository {
	return &AlertConfigRepository{db: db}
}

// Upsert creates or updates the config keyed by (feature, alert_type).
// On conflict the threshold is replaced and the row re-enabled; the
// existing id and last_triggered_at survive.
func (r *AlertConfigRepository) Upsert(ctx context.Context, cfg *models.AlertConfig) error {
	query := `
		INSERT INTO alert_configs (id, feature, alert_type, threshold_value, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (feature, alert_type) DO UPDATE SET
			threshold_value = EXCLUDED.threshold_value,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, last_triggered_at
	`

	err := r.db.QueryRowContext(ctx, query,
		cfg.ID,
		cfg.Feature,
		cfg.AlertType,
		cfg.ThresholdValue,
		cfg.Enabled,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.LastTriggeredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert alert config: %w", err)
	}

	return nil
}

// List returns every alert config.
func (r *AlertConfigRepository) List(ctx context.Context) ([]*models.AlertConfig, error) {
	return r.list(ctx, false)
}

// ListEnabled returns only enabled alert configs.
func (r *AlertConfigRepository) ListEnabled(ctx context.Context) ([]*models.AlertConfig, error) {
	return r.list(ctx, true)
}

func (r *AlertConfigRepository) list(ctx context.Context, enabledOnly bool) ([]*models.AlertConfig, error) {
	query := `
		SELECT id, feature, alert_type, threshold_value, enabled, last_triggered_at, created_at, updated_at
		FROM alert_configs
	`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY feature, alert_type`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert configs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var configs []*models.AlertConfig
	for rows.Next() {
		cfg := &models.AlertConfig{}
		if err := rows.Scan(
			&cfg.ID,
			&cfg.Feature,
			&cfg.AlertType,
			&cfg.ThresholdValue,
			&cfg.Enabled,
			&cfg.LastTriggeredAt,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert configs: %w", err)
	}

	return configs, nil
}

// SetEnabled toggles one alert config.
func (r *AlertConfigRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alert_configs SET enabled = $2, updated_at = $3 WHERE id = $1
	`, id, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to toggle alert config: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("alert config not found: %s", id)
	}
	return nil
}

// Delete removes one alert config.
func (r *AlertConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM alert_configs WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert config: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("alert config not found: %s", id)
	}
	return nil
}

// MarkTriggered stamps last_triggered_at only while the row still holds
// prev, turning the threshold comparison plus stamp into one atomic
// read-modify-write. Returns false when a concurrent run won the race.
func (r *AlertConfigRepository) MarkTriggered(ctx context.Context, id uuid.UUID, prev *time.Time, when time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alert_configs
		SET last_triggered_at = $2, updated_at = $2
		WHERE id = $1 AND last_triggered_at IS NOT DISTINCT FROM $3
	`, id, when, prev)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}
