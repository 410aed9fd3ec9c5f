package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an append-only ledger entry. Records are never updated or
// deleted; a user's total usage is the sum of their records.
type UsageRecord struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	SourceID   *uuid.UUID `json:"source_id"`
	TokensUsed int        `json:"tokens_used"`
	Action     string     `json:"action"` // "generation" | "analysis"
	CreatedAt  time.Time  `json:"created_at"`
}

type UsageBalance struct {
	Plan      string `json:"plan"`
	Allowance int    `json:"allowance"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

type SubscriptionPlan struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	PriceCents     int       `json:"price_cents"`
	TokensPerMonth int       `json:"tokens_per_month"`
}
