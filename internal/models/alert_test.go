package models

import (
	"testing"
	"time"
)

func TestAlertTypeValid(t *testing.T) {
	t.Parallel()

	for _, alertType := range AllAlertTypes {
		if !alertType.Valid() {
			t.Errorf("Expected %s to be valid", alertType)
		}
	}
	for _, bad := range []AlertType{"", "hourly_cost", "daily"} {
		if bad.Valid() {
			t.Errorf("Expected %q to be invalid", bad)
		}
	}
}

func TestAlertTypeIsCost(t *testing.T) {
	t.Parallel()

	costTypes := map[AlertType]bool{
		AlertTypeDailyCost:     true,
		AlertTypeWeeklyCost:    true,
		AlertTypeMonthlyCost:   true,
		AlertTypeDailyTokens:   false,
		AlertTypeWeeklyTokens:  false,
		AlertTypeMonthlyTokens: false,
	}
	for alertType, want := range costTypes {
		if got := alertType.IsCost(); got != want {
			t.Errorf("%s.IsCost() = %v, want %v", alertType, got, want)
		}
	}
}

func TestAlertTypeWindowStart(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		alertType AlertType
		want      time.Time
	}{
		{
			name:      "daily is trailing 24h",
			alertType: AlertTypeDailyCost,
			want:      time.Date(2026, 3, 30, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "weekly is trailing 7 days",
			alertType: AlertTypeWeeklyTokens,
			want:      time.Date(2026, 3, 24, 10, 0, 0, 0, time.UTC),
		},
		{
			// Subtracting a calendar month from March 31 normalizes past
			// February's end rather than using a fixed 30-day offset.
			name:      "monthly subtracts a calendar month",
			alertType: AlertTypeMonthlyCost,
			want:      now.AddDate(0, -1, 0),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.alertType.WindowStart(now)
			if err != nil {
				t.Fatalf("WindowStart failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("WindowStart = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := AlertType("bogus").WindowStart(now); err == nil {
		t.Error("Expected WindowStart to fail for an unknown type")
	}
}

func TestAlertTypeWindowStartMidMonth(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 15, 12, 30, 0, 0, time.UTC)
	got, err := AlertTypeMonthlyTokens.WindowStart(now)
	if err != nil {
		t.Fatalf("WindowStart failed: %v", err)
	}
	want := time.Date(2026, 7, 15, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("WindowStart = %v, want %v", got, want)
	}
}

func TestAlertLimitsByType(t *testing.T) {
	t.Parallel()

	daily := 10.0
	monthlyTokens := 50000.0
	limits := &AlertLimits{
		DailyCost:     &daily,
		MonthlyTokens: &monthlyTokens,
	}

	if got := limits.ByType(AlertTypeDailyCost); got == nil || *got != daily {
		t.Errorf("ByType(daily_cost) = %v, want %v", got, daily)
	}
	if got := limits.ByType(AlertTypeMonthlyTokens); got == nil || *got != monthlyTokens {
		t.Errorf("ByType(monthly_tokens) = %v, want %v", got, monthlyTokens)
	}
	for _, unset := range []AlertType{AlertTypeWeeklyCost, AlertTypeMonthlyCost, AlertTypeDailyTokens, AlertTypeWeeklyTokens} {
		if got := limits.ByType(unset); got != nil {
			t.Errorf("ByType(%s) = %v, want nil", unset, got)
		}
	}
	if got := limits.ByType("bogus"); got != nil {
		t.Errorf("ByType(bogus) = %v, want nil", got)
	}
}

func TestUsageEventTotalTokens(t *testing.T) {
	t.Parallel()

	event := &UsageEvent{TokensInput: 120, TokensOutput: 380}
	if got := event.TotalTokens(); got != 500 {
		t.Errorf("TotalTokens = %d, want 500", got)
	}
}

func TestAPIKeyRecordIsActive(t *testing.T) {
	t.Parallel()

	active := &APIKeyRecord{Status: KeyStatusActive}
	if !active.IsActive() {
		t.Error("Expected active record to report active")
	}
	retired := &APIKeyRecord{Status: KeyStatusDeactivated}
	if retired.IsActive() {
		t.Error("Expected deactivated record to report inactive")
	}
}
