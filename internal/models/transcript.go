package models

import (
	"time"

	"github.com/google/uuid"
)

// Transcript holds both renderings of a video's transcription. Rows are
// immutable once written; video_id is the idempotency key.
type Transcript struct {
	ContentID uuid.UUID      `json:"content_id"`
	SourceID  uuid.UUID      `json:"source_id"`
	VideoID   string         `json:"video_id"`
	Body      TranscriptBody `json:"transcript"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type TranscriptBody struct {
	Raw  string `json:"raw"`
	HTML string `json:"html"`
}
