package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repurpose-backend/internal/models"
)

type PlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// GetForUser resolves the user's active subscription plan, falling back to
// the free tier when no subscription row exists.
func (r *PlanRepo) GetForUser(ctx context.Context, userID uuid.UUID) (*models.SubscriptionPlan, error) {
	p := &models.SubscriptionPlan{}

	query := `SELECT sp.id, sp.name, sp.price_cents, sp.tokens_per_month
		FROM user_subscriptions us
		JOIN subscription_plans sp ON sp.id = us.plan_id
		WHERE us.user_id = $1 AND us.status = 'active'`

	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.ID, &p.Name, &p.PriceCents, &p.TokensPerMonth)
	if err == pgx.ErrNoRows {
		return r.GetByName(ctx, "free")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PlanRepo) GetByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	p := &models.SubscriptionPlan{}

	query := `SELECT id, name, price_cents, tokens_per_month FROM subscription_plans WHERE name = $1`

	err := r.pool.QueryRow(ctx, query, name).Scan(&p.ID, &p.Name, &p.PriceCents, &p.TokensPerMonth)
	if err != nil {
		return nil, err
	}
	return p, nil
}
