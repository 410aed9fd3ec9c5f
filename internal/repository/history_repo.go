package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"repurpose-backend/internal/models"
)

type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Append writes an audit entry. History is append-only; there are no update
// or delete paths.
func (r *HistoryRepo) Append(ctx context.Context, e *models.ProcessingHistoryEntry) error {
	e.ID = uuid.New()

	metaBytes := e.Metadata
	if len(metaBytes) == 0 {
		metaBytes = json.RawMessage("{}")
	}

	query := `INSERT INTO processing_history (id, source_id, action, status, details, metadata)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		e.ID, e.SourceID, e.Action, e.Status, e.Details, metaBytes,
	).Scan(&e.CreatedAt)
}

func (r *HistoryRepo) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]*models.ProcessingHistoryEntry, error) {
	query := `SELECT id, source_id, action, status, details, metadata, created_at
		FROM processing_history WHERE source_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ProcessingHistoryEntry
	for rows.Next() {
		e := &models.ProcessingHistoryEntry{}
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Action, &e.Status, &e.Details, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
