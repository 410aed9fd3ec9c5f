package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"repurpose-backend/internal/models"
)

// ErrInsufficientTokens is returned by ChargeWithCap when the charge would
// push a user past their plan allowance.
var ErrInsufficientTokens = errors.New("insufficient tokens")

type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

// Insert appends a ledger record without an allowance check. Used for
// extraction charges and other advisory metering.
func (r *UsageRepo) Insert(ctx context.Context, u *models.UsageRecord) error {
	u.ID = uuid.New()

	query := `INSERT INTO content_tokens (id, user_id, source_id, tokens_used, action)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		u.ID, u.UserID, u.SourceID, u.TokensUsed, u.Action,
	).Scan(&u.CreatedAt)
}

// ChargeWithCap appends a ledger record only if current usage plus the charge
// stays within allowance. The sum and insert run in one transaction under a
// per-user advisory lock, so two concurrent charges cannot both read a stale
// balance.
func (r *UsageRepo) ChargeWithCap(ctx context.Context, u *models.UsageRecord, allowance int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1::text))", u.UserID); err != nil {
		return err
	}

	var used int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(tokens_used), 0) FROM content_tokens WHERE user_id = $1",
		u.UserID,
	).Scan(&used)
	if err != nil {
		return err
	}

	if used+u.TokensUsed > allowance {
		return ErrInsufficientTokens
	}

	u.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO content_tokens (id, user_id, source_id, tokens_used, action)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		u.ID, u.UserID, u.SourceID, u.TokensUsed, u.Action,
	).Scan(&u.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *UsageRepo) SumForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(tokens_used), 0) FROM content_tokens WHERE user_id = $1",
		userID,
	).Scan(&total)
	return total, err
}

func (r *UsageRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, source_id, tokens_used, action, created_at
		FROM content_tokens WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		u := &models.UsageRecord{}
		if err := rows.Scan(&u.ID, &u.UserID, &u.SourceID, &u.TokensUsed, &u.Action, &u.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, u)
	}
	return records, rows.Err()
}
