package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/usage-gov/internal/models"
)

// UsageRepository handles the append-only usage ledger. The evaluator
// only reads aggregates; events are appended by calling handlers.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert appends one usage event.
func (r *UsageRepository) Insert(ctx context.Context, event *models.UsageEvent) error {
	query := `
		INSERT INTO usage_events (id, feature, provider, user_id, model, tokens_input, tokens_output, cost_usd, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Feature,
		event.Provider,
		event.UserID,
		event.Model,
		event.TokensInput,
		event.TokensOutput,
		event.CostUSD,
		event.Success,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}

	return nil
}

// Sums aggregates cost and tokens for a feature since the given lower
// bound. The bound is exclusive, matching the sliding-window cutoff.
func (r *UsageRepository) Sums(ctx context.Context, feature string, since time.Time) (models.UsageSums, error) {
	var sums models.UsageSums
	query := `
		SELECT COALESCE(SUM(cost_usd), 0), COALESCE(SUM(tokens_input + tokens_output), 0)
		FROM usage_events
		WHERE feature = $1 AND created_at > $2
	`

	err := r.db.QueryRowContext(ctx, query, feature, since).Scan(&sums.TotalCostUSD, &sums.TotalTokens)
	if err != nil {
		return models.UsageSums{}, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	return sums, nil
}

// Query returns raw events for a feature since the lower bound, newest
// first, capped at limit.
func (r *UsageRepository) Query(ctx context.Context, feature string, since time.Time, limit int) ([]*models.UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, feature, provider, user_id, model, tokens_input, tokens_output, cost_usd, success, created_at
		FROM usage_events
		WHERE ($1 = '' OR feature = $1) AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, feature, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var events []*models.UsageEvent
	for rows.Next() {
		event := &models.UsageEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.Feature,
			&event.Provider,
			&event.UserID,
			&event.Model,
			&event.TokensInput,
			&event.TokensOutput,
			&event.CostUSD,
			&event.Success,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage events: %w", err)
	}

	return events, nil
}
