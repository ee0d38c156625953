package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/models"
	"github.com/benvon/usage-gov/internal/validation"
)

// DefaultCriticalOverageRatio classifies an alert as critical when the
// overage exceeds half the threshold. Policy default, overridable via
// configuration pending product confirmation.
const DefaultCriticalOverageRatio = 0.5

// ConfigRepository is the persistence surface for alert thresholds.
type ConfigRepository interface {
	// Upsert creates or updates the config keyed by (feature, alert_type).
	Upsert(ctx context.Context, cfg *models.AlertConfig) error

	List(ctx context.Context) ([]*models.AlertConfig, error)
	ListEnabled(ctx context.Context) ([]*models.AlertConfig, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkTriggered stamps last_triggered_at only while it still holds
	// prev, and reports whether the stamp landed. Overlapping evaluation
	// runs race on this; exactly one wins per config row.
	MarkTriggered(ctx context.Context, id uuid.UUID, prev *time.Time, when time.Time) (bool, error)
}

// Ledger is the read-only usage aggregate the evaluator consumes.
type Ledger interface {
	Sums(ctx context.Context, feature string, since time.Time) (models.UsageSums, error)
}

// EvaluationResult is the outcome of one EvaluateThresholds run.
type EvaluationResult struct {
	Alerts  []models.Alert `json:"alerts"`
	Summary Summary        `json:"summary"`
}

// Summary counts alerts produced by an evaluation run.
type Summary struct {
	TotalAlerts    int `json:"total_alerts"`
	CriticalAlerts int `json:"critical_alerts"`
}

// Evaluator aggregates the usage ledger against configured thresholds.
type Evaluator struct {
	configs       ConfigRepository
	ledger        Ledger
	notifier      Notifier
	log           *zap.Logger
	criticalRatio float64
	now           func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCriticalOverageRatio overrides the critical-alert classification
// ratio.
func WithCriticalOverageRatio(ratio float64) Option {
	return func(e *Evaluator) {
		if ratio > 0 {
			e.criticalRatio = ratio
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator builds a threshold evaluator.
func NewEvaluator(configs ConfigRepository, ledger Ledger, notifier Notifier, log *zap.Logger, opts ...Option) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	e := &Evaluator{
		configs:       configs,
		ledger:        ledger,
		notifier:      notifier,
		log:           log,
		criticalRatio: DefaultCriticalOverageRatio,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConfigureAlerts upserts one config row per non-nil limit, keyed by
// (feature, alert_type). Nil limits leave existing configs untouched.
func (e *Evaluator) ConfigureAlerts(ctx context.Context, feature string, limits *models.AlertLimits) ([]*models.AlertConfig, error) {
	if err := validation.ValidateFeature(feature); err != nil {
		return nil, err
	}
	if limits == nil {
		return nil, fmt.Errorf("%w: no limits provided", validation.ErrValidationFailed)
	}
	if err := validation.Validate.Struct(limits); err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrValidationFailed, err)
	}

	now := e.now()
	var updated []*models.AlertConfig
	for _, alertType := range models.AllAlertTypes {
		limit := limits.ByType(alertType)
		if limit == nil {
			continue
		}
		cfg := &models.AlertConfig{
			ID:             uuid.New(),
			Feature:        feature,
			AlertType:      alertType,
			ThresholdValue: *limit,
			Enabled:        true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := e.configs.Upsert(ctx, cfg); err != nil {
			return nil, fmt.Errorf("upsert alert config %s/%s: %w", feature, alertType, err)
		}
		updated = append(updated, cfg)
	}

	e.log.Info("configured_alerts",
		zap.String("feature", feature),
		zap.Int("configs", len(updated)),
	)
	return updated, nil
}

// EvaluateThresholds aggregates the ledger over each enabled config's
// trailing window and emits an alert for every breached threshold.
//
// The run is idempotent: with no new usage, re-running produces the same
// alert set. lastTriggeredAt is bookkeeping, not notification dedup; a
// concurrent run that loses the conditional stamp skips the alert so
// overlapping scheduler ticks cannot double-alert.
func (e *Evaluator) EvaluateThresholds(ctx context.Context) (*EvaluationResult, error) {
	configs, err := e.configs.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled alert configs: %w", err)
	}

	now := e.now()
	result := &EvaluationResult{Alerts: []models.Alert{}}

	for _, cfg := range configs {
		windowStart, err := cfg.AlertType.WindowStart(now)
		if err != nil {
			e.log.Warn("skipping_alert_config_with_unknown_type",
				zap.String("feature", cfg.Feature),
				zap.String("alert_type", string(cfg.AlertType)),
			)
			continue
		}

		sums, err := e.ledger.Sums(ctx, cfg.Feature, windowStart)
		if err != nil {
			e.log.Error("failed_to_aggregate_usage",
				zap.String("feature", cfg.Feature),
				zap.String("alert_type", string(cfg.AlertType)),
				zap.Error(err),
			)
			continue
		}

		current := float64(sums.TotalTokens)
		if cfg.AlertType.IsCost() {
			current = sums.TotalCostUSD
		}
		if current <= cfg.ThresholdValue {
			continue
		}

		stamped, err := e.configs.MarkTriggered(ctx, cfg.ID, cfg.LastTriggeredAt, now)
		if err != nil {
			e.log.Error("failed_to_mark_alert_triggered",
				zap.String("feature", cfg.Feature),
				zap.String("alert_type", string(cfg.AlertType)),
				zap.Error(err),
			)
			continue
		}
		if !stamped {
			// A concurrent run already claimed this breach.
			continue
		}

		exceededBy := current - cfg.ThresholdValue
		alert := models.Alert{
			Feature:      cfg.Feature,
			AlertType:    cfg.AlertType,
			CurrentValue: current,
			Threshold:    cfg.ThresholdValue,
			ExceededBy:   exceededBy,
			Critical:     exceededBy > e.criticalRatio*cfg.ThresholdValue,
			TriggeredAt:  now,
		}
		result.Alerts = append(result.Alerts, alert)
		result.Summary.TotalAlerts++
		if alert.Critical {
			result.Summary.CriticalAlerts++
		}

		if err := e.notifier.Notify(ctx, alert); err != nil {
			e.log.Error("failed_to_notify_alert_sink",
				zap.String("feature", cfg.Feature),
				zap.String("alert_type", string(cfg.AlertType)),
				zap.Error(err),
			)
		}
	}

	e.log.Info("threshold_evaluation_complete",
		zap.Int("configs_evaluated", len(configs)),
		zap.Int("alerts", result.Summary.TotalAlerts),
		zap.Int("critical", result.Summary.CriticalAlerts),
	)
	return result, nil
}

// ListAlerts returns every configured threshold.
func (e *Evaluator) ListAlerts(ctx context.Context) ([]*models.AlertConfig, error) {
	return e.configs.List(ctx)
}

// ToggleAlert enables or disables one alert config.
func (e *Evaluator) ToggleAlert(ctx context.Context, id uuid.UUID, enabled bool) error {
	return e.configs.SetEnabled(ctx, id, enabled)
}

// DeleteAlert removes one alert config. Operator action; usage history
// is untouched.
func (e *Evaluator) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	return e.configs.Delete(ctx, id)
}
