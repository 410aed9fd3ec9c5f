package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ContentSource struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`   // "youtube"
	Status    string          `json:"status"` // "pending" | "processing" | "completed" | "error"
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`

	// Populated on list reads
	History []*ProcessingHistoryEntry `json:"processing_history,omitempty"`
}

type CreateSourceRequest struct {
	Type     string          `json:"type"`
	Metadata json.RawMessage `json:"metadata"`
}

type ExtractRequest struct {
	ContentType string `json:"content_type"` // "video" | "playlist"
	ContentID   string `json:"content_id"`   // video id or playlist id
}

// SourceMetadata is the denormalized view the gateway writes onto a source
// after extraction. Statistics may be empty when secondary calls fail.
type SourceMetadata struct {
	Title        string          `json:"title,omitempty"`
	Description  string          `json:"description,omitempty"`
	ChannelID    string          `json:"channelId,omitempty"`
	ChannelTitle string          `json:"channelTitle,omitempty"`
	Thumbnail    string          `json:"thumbnail,omitempty"`
	Duration     int             `json:"duration,omitempty"`
	PublishedAt  string          `json:"publishedAt,omitempty"`
	Statistics   VideoStatistics `json:"statistics,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
}
