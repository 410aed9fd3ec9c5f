package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProcessingHistoryEntry is an append-only audit record for a source.
type ProcessingHistoryEntry struct {
	ID        uuid.UUID       `json:"id"`
	SourceID  uuid.UUID       `json:"source_id"`
	Action    string          `json:"action"` // "analysis" | "generation" | "transcription"
	Status    string          `json:"status"` // "success" | "error"
	Details   string          `json:"details"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
