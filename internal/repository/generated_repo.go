package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repurpose-backend/internal/models"
)

type GeneratedRepo struct {
	pool *pgxpool.Pool
}

func NewGeneratedRepo(pool *pgxpool.Pool) *GeneratedRepo {
	return &GeneratedRepo{pool: pool}
}

func (r *GeneratedRepo) Create(ctx context.Context, g *models.GeneratedContent) error {
	g.ID = uuid.New()

	contentBytes, err := json.Marshal(g.Content)
	if err != nil {
		return err
	}
	metaBytes, err := json.Marshal(g.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO generated_content (id, source_id, content, metadata)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, g.ID, g.SourceID, contentBytes, metaBytes).Scan(&g.CreatedAt)
}

// GetLatestBySource returns the newest generation for a source. Later
// generations supersede earlier ones; rows are never merged.
func (r *GeneratedRepo) GetLatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.GeneratedContent, error) {
	g := &models.GeneratedContent{}
	var contentBytes, metaBytes []byte

	query := `SELECT id, source_id, content, metadata, created_at
		FROM generated_content WHERE source_id = $1
		ORDER BY created_at DESC LIMIT 1`

	err := r.pool.QueryRow(ctx, query, sourceID).Scan(
		&g.ID, &g.SourceID, &contentBytes, &metaBytes, &g.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(contentBytes, &g.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metaBytes, &g.Metadata); err != nil {
		return nil, err
	}
	return g, nil
}
