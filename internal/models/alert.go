package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertType identifies a (window, metric) pair for a usage threshold.
type AlertType string

const (
	AlertTypeDailyCost     AlertType = "daily_cost"
	AlertTypeWeeklyCost    AlertType = "weekly_cost"
	AlertTypeMonthlyCost   AlertType = "monthly_cost"
	AlertTypeDailyTokens   AlertType = "daily_tokens"
	AlertTypeWeeklyTokens  AlertType = "weekly_tokens"
	AlertTypeMonthlyTokens AlertType = "monthly_tokens"
)

// AllAlertTypes lists every valid alert type, in window-then-metric order.
var AllAlertTypes = []AlertType{
	AlertTypeDailyCost, AlertTypeWeeklyCost, AlertTypeMonthlyCost,
	AlertTypeDailyTokens, AlertTypeWeeklyTokens, AlertTypeMonthlyTokens,
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeDailyCost, AlertTypeWeeklyCost, AlertTypeMonthlyCost,
		AlertTypeDailyTokens, AlertTypeWeeklyTokens, AlertTypeMonthlyTokens:
		return true
	default:
		return false
	}
}

// IsCost reports whether the alert compares against summed cost
// rather than summed tokens.
func (t AlertType) IsCost() bool {
	switch t {
	case AlertTypeDailyCost, AlertTypeWeeklyCost, AlertTypeMonthlyCost:
		return true
	default:
		return false
	}
}

// WindowStart returns the lower bound of the trailing window for an
// evaluation at now. Monthly subtracts a calendar month, not 30 days.
func (t AlertType) WindowStart(now time.Time) (time.Time, error) {
	switch t {
	case AlertTypeDailyCost, AlertTypeDailyTokens:
		return now.Add(-24 * time.Hour), nil
	case AlertTypeWeeklyCost, AlertTypeWeeklyTokens:
		return now.AddDate(0, 0, -7), nil
	case AlertTypeMonthlyCost, AlertTypeMonthlyTokens:
		return now.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown alert type: %s", t)
	}
}

// AlertConfig is one configured usage threshold, unique per
// (feature, alert_type).
type AlertConfig struct {
	ID              uuid.UUID  `json:"id"`
	Feature         string     `json:"feature"`
	AlertType       AlertType  `json:"alert_type"`
	ThresholdValue  float64    `json:"threshold_value"`
	Enabled         bool       `json:"enabled"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Alert is one threshold breach produced by an evaluation run.
type Alert struct {
	Feature      string    `json:"feature"`
	AlertType    AlertType `json:"alert_type"`
	CurrentValue float64   `json:"current_value"`
	Threshold    float64   `json:"threshold"`
	ExceededBy   float64   `json:"exceeded_by"`
	Critical     bool      `json:"critical"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// AlertLimits carries the optional thresholds accepted by ConfigureAlerts.
// Nil fields leave the corresponding config untouched.
type AlertLimits struct {
	DailyCost      *float64 `json:"daily_cost,omitempty" validate:"omitempty,gt=0"`
	WeeklyCost     *float64 `json:"weekly_cost,omitempty" validate:"omitempty,gt=0"`
	MonthlyCost    *float64 `json:"monthly_cost,omitempty" validate:"omitempty,gt=0"`
	DailyTokens    *float64 `json:"daily_tokens,omitempty" validate:"omitempty,gt=0"`
	WeeklyTokens   *float64 `json:"weekly_tokens,omitempty" validate:"omitempty,gt=0"`
	MonthlyTokens  *float64 `json:"monthly_tokens,omitempty" validate:"omitempty,gt=0"`
}

// ByType returns the limit for an alert type, nil when unset.
func (l *AlertLimits) ByType(t AlertType) *float64 {
	switch t {
	case AlertTypeDailyCost:
		return l.DailyCost
	case AlertTypeWeeklyCost:
		return l.WeeklyCost
	case AlertTypeMonthlyCost:
		return l.MonthlyCost
	case AlertTypeDailyTokens:
		return l.DailyTokens
	case AlertTypeWeeklyTokens:
		return l.WeeklyTokens
	case AlertTypeMonthlyTokens:
		return l.MonthlyTokens
	default:
		return nil
	}
}
