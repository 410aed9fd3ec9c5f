package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repurpose-backend/internal/models"
)

type TranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

// GetByVideoID is the idempotency check for transcript acquisition: a hit
// means the job runner must not be invoked again for this video.
func (r *TranscriptRepo) GetByVideoID(ctx context.Context, videoID string) (*models.Transcript, error) {
	t := &models.Transcript{}
	var body []byte

	query := `SELECT content_id, source_id, video_id, transcript, updated_at
		FROM content_transcriptions WHERE video_id = $1`

	err := r.pool.QueryRow(ctx, query, videoID).Scan(
		&t.ContentID, &t.SourceID, &t.VideoID, &body, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &t.Body); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TranscriptRepo) GetBySourceID(ctx context.Context, sourceID uuid.UUID) (*models.Transcript, error) {
	t := &models.Transcript{}
	var body []byte

	query := `SELECT content_id, source_id, video_id, transcript, updated_at
		FROM content_transcriptions WHERE source_id = $1
		ORDER BY updated_at DESC LIMIT 1`

	err := r.pool.QueryRow(ctx, query, sourceID).Scan(
		&t.ContentID, &t.SourceID, &t.VideoID, &body, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &t.Body); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TranscriptRepo) Create(ctx context.Context, t *models.Transcript) error {
	if t.ContentID == uuid.Nil {
		t.ContentID = uuid.New()
	}

	body, err := json.Marshal(t.Body)
	if err != nil {
		return err
	}

	query := `INSERT INTO content_transcriptions (content_id, source_id, video_id, transcript, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (video_id) DO NOTHING
		RETURNING updated_at`

	err = r.pool.QueryRow(ctx, query, t.ContentID, t.SourceID, t.VideoID, body).Scan(&t.UpdatedAt)
	if err == pgx.ErrNoRows {
		// Lost a race with a concurrent insert for the same video; the
		// existing row wins and this write is a no-op.
		return nil
	}
	return err
}
