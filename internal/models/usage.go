package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent is one appended ledger entry for an upstream call.
// The governance core reads these; callers append them.
type UsageEvent struct {
	ID           uuid.UUID  `json:"id"`
	Feature      string     `json:"feature" validate:"required,max=64"`
	Provider     string     `json:"provider" validate:"required,max=64"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Model        string     `json:"model" validate:"max=128"`
	TokensInput  int64      `json:"tokens_input" validate:"gte=0"`
	TokensOutput int64      `json:"tokens_output" validate:"gte=0"`
	CostUSD      float64    `json:"cost_usd" validate:"gte=0"`
	Success      bool       `json:"success"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TotalTokens returns input plus output tokens.
func (e *UsageEvent) TotalTokens() int64 {
	return e.TokensInput + e.TokensOutput
}

// UsageSums aggregates the ledger over a trailing window.
type UsageSums struct {
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int64   `json:"total_tokens"`
}
