package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repurpose-backend/internal/models"
)

// contentGenerator is the AI surface the orchestrator dispatches to.
type contentGenerator interface {
	GenerateBlog(ctx context.Context, transcript string) (string, error)
	GenerateSocialPosts(ctx context.Context, description string) ([]models.SocialPost, error)
	GenerateNewsletter(ctx context.Context, description, title, sourceType, channelTitle string) (string, error)
	ChatCompletion(ctx context.Context, messages []models.ChatMessage, sourceType, title string) (string, error)
}

type generatorSourceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ContentSource, error)
}

type generatedStore interface {
	Create(ctx context.Context, g *models.GeneratedContent) error
	GetLatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.GeneratedContent, error)
}

type transcriptReader interface {
	GetBySourceID(ctx context.Context, sourceID uuid.UUID) (*models.Transcript, error)
}

type historyAppender interface {
	Append(ctx context.Context, e *models.ProcessingHistoryEntry) error
}

type usageCharger interface {
	Charge(ctx context.Context, userID uuid.UUID, sourceID *uuid.UUID, tokens int, action string) error
}

// GeneratorService runs the full repurposing batch for a source: AI calls per
// requested format, persistence, metering, and audit history. Repeat requests
// for the same source+formats within the process lifetime are served from an
// in-memory result cache with no further AI calls or charges.
type GeneratorService struct {
	sources     generatorSourceStore
	generated   generatedStore
	transcripts transcriptReader
	history     historyAppender
	usage       usageCharger
	ai          contentGenerator

	mu    sync.Mutex
	cache map[string]*models.GenerationResult
}

func NewGeneratorService(
	sources generatorSourceStore,
	generated generatedStore,
	transcripts transcriptReader,
	history historyAppender,
	usage usageCharger,
	ai contentGenerator,
) *GeneratorService {
	return &GeneratorService{
		sources:     sources,
		generated:   generated,
		transcripts: transcripts,
		history:     history,
		usage:       usage,
		ai:          ai,
		cache:       make(map[string]*models.GenerationResult),
	}
}

var knownFormats = map[string]bool{
	models.FormatBlog:       true,
	models.FormatSocial:     true,
	models.FormatNewsletter: true,
}

// approxTokens estimates token cost as one token per four characters.
func approxTokens(n int) int {
	return n / 4
}

func resultCacheKey(sourceID uuid.UUID, formats []string) string {
	sorted := make([]string, len(formats))
	copy(sorted, formats)
	sort.Strings(sorted)
	return "generated:" + sourceID.String() + ":" + strings.Join(sorted, ",")
}

// Generate produces content in every requested format for the source. Any AI
// failure aborts the whole batch; nothing partial is saved or charged.
func (s *GeneratorService) Generate(ctx context.Context, userID, sourceID uuid.UUID, req models.GenerateRequest) (*models.GenerationResult, error) {
	if sourceID == uuid.Nil {
		return nil, &ValidationError{Fields: map[string]string{"sourceId": "source id is required"}}
	}
	if len(req.Formats) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"formats": "at least one format is required"}}
	}
	for _, f := range req.Formats {
		if !knownFormats[f] {
			return nil, &ValidationError{Fields: map[string]string{"formats": fmt.Sprintf("unknown format %q", f)}}
		}
	}

	source, err := s.sources.GetByID(ctx, sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "source not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	if source.UserID != userID {
		return nil, &NotFoundError{Message: "source not found"}
	}

	key := resultCacheKey(sourceID, req.Formats)
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	transcript, err := s.transcripts.GetBySourceID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if transcript == nil {
		return nil, &NotFoundError{Message: "transcript not available for this source"}
	}

	optionsJSON, _ := json.Marshal(req.Options)
	s.appendHistory(ctx, sourceID, "generation", "success",
		"Started generating content for formats: "+strings.Join(req.Formats, ", "),
		json.RawMessage(fmt.Sprintf(`{"formats":%s,"options":%s}`, mustJSON(req.Formats), optionsJSON)))

	var meta models.SourceMetadata
	if len(source.Metadata) > 0 {
		json.Unmarshal(source.Metadata, &meta)
	}

	results := make(map[string]any, len(req.Formats))
	tokensUsed := 0

	for _, format := range req.Formats {
		switch format {
		case models.FormatBlog:
			content, err := s.ai.GenerateBlog(ctx, transcript.Body.Raw)
			if err != nil {
				return nil, s.failGeneration(ctx, sourceID, format, err)
			}
			results[format] = content
			tokensUsed += approxTokens(len(content))

		case models.FormatSocial:
			posts, err := s.ai.GenerateSocialPosts(ctx, meta.Description)
			if err != nil {
				return nil, s.failGeneration(ctx, sourceID, format, err)
			}
			results[format] = posts
			serialized, _ := json.Marshal(posts)
			tokensUsed += approxTokens(len(serialized))

		case models.FormatNewsletter:
			content, err := s.ai.GenerateNewsletter(ctx, meta.Description, meta.Title, source.Type, meta.ChannelTitle)
			if err != nil {
				return nil, s.failGeneration(ctx, sourceID, format, err)
			}
			results[format] = content
			tokensUsed += approxTokens(len(content))
		}
	}

	saved := &models.GeneratedContent{
		SourceID: sourceID,
		Content:  results,
		Metadata: models.GenerationMetadata{
			Formats:     req.Formats,
			Options:     req.Options,
			TokensUsed:  tokensUsed,
			GeneratedAt: time.Now(),
		},
	}
	if err := s.generated.Create(ctx, saved); err != nil {
		return nil, fmt.Errorf("failed to save generated content: %w", err)
	}

	if err := s.usage.Charge(ctx, userID, &sourceID, tokensUsed, "generation"); err != nil {
		s.appendHistory(ctx, sourceID, "generation", "error",
			"Generation aborted: token allowance exhausted", nil)
		return nil, err
	}

	s.appendHistory(ctx, sourceID, "generation", "success",
		"Generated content for formats: "+strings.Join(req.Formats, ", "),
		json.RawMessage(fmt.Sprintf(`{"tokensUsed":%d}`, tokensUsed)))

	result := &models.GenerationResult{
		Saved:          saved,
		TokensUsed:     tokensUsed,
		TranscriptHTML: transcript.Body.HTML,
	}

	s.mu.Lock()
	s.cache[key] = result
	s.mu.Unlock()

	return result, nil
}

// GetLatest returns the newest generated content for a source owned by userID.
func (s *GeneratorService) GetLatest(ctx context.Context, userID, sourceID uuid.UUID) (*models.GeneratedContent, error) {
	source, err := s.sources.GetByID(ctx, sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "source not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	if source.UserID != userID {
		return nil, &NotFoundError{Message: "source not found"}
	}

	latest, err := s.generated.GetLatestBySource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generated content: %w", err)
	}
	if latest == nil {
		return nil, &NotFoundError{Message: "no generated content for this source"}
	}
	return latest, nil
}

// Chat answers a follow-up question about a source's content. The assistant is
// grounded on the source's type and title; conversations are not persisted and
// replies are not metered.
func (s *GeneratorService) Chat(ctx context.Context, userID, sourceID uuid.UUID, req models.ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", &ValidationError{Fields: map[string]string{"messages": "at least one message is required"}}
	}

	source, err := s.sources.GetByID(ctx, sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &NotFoundError{Message: "source not found"}
	}
	if err != nil {
		return "", fmt.Errorf("failed to load source: %w", err)
	}
	if source.UserID != userID {
		return "", &NotFoundError{Message: "source not found"}
	}

	var meta models.SourceMetadata
	if len(source.Metadata) > 0 {
		json.Unmarshal(source.Metadata, &meta)
	}
	return s.ai.ChatCompletion(ctx, req.Messages, source.Type, meta.Title)
}

// failGeneration records the failure and normalizes the error. Partial results
// are discarded by the caller.
func (s *GeneratorService) failGeneration(ctx context.Context, sourceID uuid.UUID, format string, err error) error {
	s.appendHistory(ctx, sourceID, "generation", "error",
		"Failed to generate "+format+" content", nil)

	var genErr *GenerationFailedError
	if errors.As(err, &genErr) {
		return err
	}
	return &GenerationFailedError{Message: fmt.Sprintf("%s generation failed: %v", format, err)}
}

// appendHistory is best effort; audit writes never fail the request.
func (s *GeneratorService) appendHistory(ctx context.Context, sourceID uuid.UUID, action, status, details string, metadata json.RawMessage) {
	err := s.history.Append(ctx, &models.ProcessingHistoryEntry{
		SourceID: sourceID,
		Action:   action,
		Status:   status,
		Details:  details,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("Failed to append processing history for %s: %v", sourceID, err)
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
