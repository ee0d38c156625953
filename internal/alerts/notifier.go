package alerts

import (
	"context"

	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/models"
)

// Notifier delivers alert payloads to the outside world. This package
// only constructs the payload; delivery, retries, and suppression of
// repeat notifications for a sustained breach belong to the sink.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// LogNotifier writes alerts to the structured log. Used when no
// message-broker sink is configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-only alert sink.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, alert models.Alert) error {
	n.log.Warn("usage_threshold_exceeded",
		zap.String("feature", alert.Feature),
		zap.String("alert_type", string(alert.AlertType)),
		zap.Float64("current_value", alert.CurrentValue),
		zap.Float64("threshold", alert.Threshold),
		zap.Float64("exceeded_by", alert.ExceededBy),
		zap.Bool("critical", alert.Critical),
	)
	return nil
}
