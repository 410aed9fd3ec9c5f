package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"repurpose-backend/internal/models"
	"repurpose-backend/internal/repository"
)

// usageLedger is the ledger surface UsageService works against.
type usageLedger interface {
	Insert(ctx context.Context, u *models.UsageRecord) error
	ChargeWithCap(ctx context.Context, u *models.UsageRecord, allowance int) error
	SumForUser(ctx context.Context, userID uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.UsageRecord, error)
}

// planResolver maps a user to their subscription plan.
type planResolver interface {
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.SubscriptionPlan, error)
}

// UsageService meters token consumption against the user's plan allowance.
// Charges are ledger appends; the balance is always derived by summing.
type UsageService struct {
	ledger usageLedger
	plans  planResolver
}

func NewUsageService(ledger usageLedger, plans planResolver) *UsageService {
	return &UsageService{ledger: ledger, plans: plans}
}

// Record appends a usage entry without checking the allowance. Extraction
// charges use this path: the work is already done by the time we meter it.
func (s *UsageService) Record(ctx context.Context, userID uuid.UUID, sourceID *uuid.UUID, tokens int, action string) error {
	if tokens <= 0 {
		return nil
	}
	return s.ledger.Insert(ctx, &models.UsageRecord{
		UserID:     userID,
		SourceID:   sourceID,
		TokensUsed: tokens,
		Action:     action,
	})
}

// Charge appends a usage entry only if it fits within the user's remaining
// allowance. The over-cap case surfaces as OutOfTokensError.
func (s *UsageService) Charge(ctx context.Context, userID uuid.UUID, sourceID *uuid.UUID, tokens int, action string) error {
	if tokens <= 0 {
		return nil
	}

	plan, err := s.plans.GetForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve subscription plan: %w", err)
	}

	record := &models.UsageRecord{
		UserID:     userID,
		SourceID:   sourceID,
		TokensUsed: tokens,
		Action:     action,
	}
	err = s.ledger.ChargeWithCap(ctx, record, plan.TokensPerMonth)
	if errors.Is(err, repository.ErrInsufficientTokens) {
		used, sumErr := s.ledger.SumForUser(ctx, userID)
		if sumErr != nil {
			used = plan.TokensPerMonth
		}
		remaining := plan.TokensPerMonth - used
		if remaining < 0 {
			remaining = 0
		}
		return &OutOfTokensError{Required: tokens, Remaining: remaining}
	}
	return err
}

// Balance reports the user's plan, total usage, and remaining allowance.
func (s *UsageService) Balance(ctx context.Context, userID uuid.UUID) (*models.UsageBalance, error) {
	plan, err := s.plans.GetForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subscription plan: %w", err)
	}

	used, err := s.ledger.SumForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum usage: %w", err)
	}

	remaining := plan.TokensPerMonth - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.UsageBalance{
		Plan:      plan.Name,
		Allowance: plan.TokensPerMonth,
		Used:      used,
		Remaining: remaining,
	}, nil
}

// History returns the user's most recent ledger entries.
func (s *UsageService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	return s.ledger.ListByUser(ctx, userID, limit)
}
