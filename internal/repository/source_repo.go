package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"repurpose-backend/internal/models"
)

type SourceRepo struct {
	pool *pgxpool.Pool
}

func NewSourceRepo(pool *pgxpool.Pool) *SourceRepo {
	return &SourceRepo{pool: pool}
}

func (r *SourceRepo) Create(ctx context.Context, s *models.ContentSource) error {
	s.ID = uuid.New()
	if s.Status == "" {
		s.Status = "pending"
	}

	metaBytes := s.Metadata
	if len(metaBytes) == 0 {
		metaBytes = json.RawMessage("{}")
	}

	query := `INSERT INTO content_sources (id, user_id, type, status, metadata)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.Type, s.Status, metaBytes,
	).Scan(&s.CreatedAt)
}

func (r *SourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ContentSource, error) {
	s := &models.ContentSource{}
	query := `SELECT id, user_id, type, status, metadata, created_at
		FROM content_sources WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Type, &s.Status, &s.Metadata, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SourceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ContentSource, error) {
	query := `SELECT id, user_id, type, status, metadata, created_at
		FROM content_sources WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*models.ContentSource
	for rows.Next() {
		s := &models.ContentSource{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Type, &s.Status, &s.Metadata, &s.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *SourceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE content_sources SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *SourceRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error {
	_, err := r.pool.Exec(ctx, "UPDATE content_sources SET metadata = $1 WHERE id = $2", metadata, id)
	return err
}

// Delete removes a source owned by userID. Sources are only ever hard-deleted
// by explicit user removal.
func (r *SourceRepo) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM content_sources WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
