package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Output formats the orchestrator can produce.
const (
	FormatBlog       = "blog"
	FormatSocial     = "social"
	FormatNewsletter = "newsletter"
)

type GeneratedContent struct {
	ID        uuid.UUID          `json:"id"`
	SourceID  uuid.UUID          `json:"source_id"`
	Content   map[string]any     `json:"content"` // format -> string or []SocialPost
	Metadata  GenerationMetadata `json:"metadata"`
	CreatedAt time.Time          `json:"created_at"`
}

type GenerationMetadata struct {
	Formats     []string                   `json:"formats"`
	Options     map[string]json.RawMessage `json:"options,omitempty"`
	TokensUsed  int                        `json:"tokensUsed"`
	GeneratedAt time.Time                  `json:"generatedAt"`
}

type SocialPost struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

type GenerateRequest struct {
	Formats []string                   `json:"formats"`
	Options map[string]json.RawMessage `json:"options"`
}

type GenerationResult struct {
	Saved          *GeneratedContent `json:"savedContent"`
	TokensUsed     int               `json:"tokensUsed"`
	TranscriptHTML string            `json:"html,omitempty"`
}

// ChatMessage is one turn of the content assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}
