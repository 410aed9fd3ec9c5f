package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"repurpose-backend/internal/models"
)

// TranscriptQueue is the Redis list the worker pool drains.
const TranscriptQueue = "queue:transcript-fetch"

// tokens charged per started minute of extracted video
const extractTokensPerMinute = 10

// videoGateway is the metadata surface extraction needs from the YouTube
// gateway.
type videoGateway interface {
	GetVideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error)
	GetPlaylistItems(ctx context.Context, playlistID, pageToken string) (*models.PlaylistItemsPage, error)
}

type usageRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, sourceID *uuid.UUID, tokens int, action string) error
}

type sourceStore interface {
	Create(ctx context.Context, s *models.ContentSource) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ContentSource, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ContentSource, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type sourceHistoryStore interface {
	Append(ctx context.Context, e *models.ProcessingHistoryEntry) error
	ListBySource(ctx context.Context, sourceID uuid.UUID) ([]*models.ProcessingHistoryEntry, error)
}

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
}

// jobQueue is the slice of the Redis client extraction uses to enqueue
// transcript jobs.
type jobQueue interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// SourceService manages content sources and the extraction step that turns a
// bare source into one with metadata, a metered charge, and a queued
// transcript job.
type SourceService struct {
	sources sourceStore
	history sourceHistoryStore
	jobs    jobStore
	youtube videoGateway
	usage   usageRecorder
	queue   jobQueue
}

func NewSourceService(
	sources sourceStore,
	history sourceHistoryStore,
	jobs jobStore,
	youtube videoGateway,
	usage usageRecorder,
	queue jobQueue,
) *SourceService {
	return &SourceService{
		sources: sources,
		history: history,
		jobs:    jobs,
		youtube: youtube,
		usage:   usage,
		queue:   queue,
	}
}

// Create registers a new source in pending status.
func (s *SourceService) Create(ctx context.Context, userID uuid.UUID, req models.CreateSourceRequest) (*models.ContentSource, error) {
	if req.Type != "youtube" {
		return nil, &ValidationError{Fields: map[string]string{"type": "only youtube sources are supported"}}
	}

	source := &models.ContentSource{
		UserID:   userID,
		Type:     req.Type,
		Status:   "pending",
		Metadata: req.Metadata,
	}
	if err := s.sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	return source, nil
}

// List returns the user's sources with their processing history attached.
func (s *SourceService) List(ctx context.Context, userID uuid.UUID) ([]*models.ContentSource, error) {
	sources, err := s.sources.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	for _, src := range sources {
		history, err := s.history.ListBySource(ctx, src.ID)
		if err != nil {
			log.Printf("Failed to load history for source %s: %v", src.ID, err)
			continue
		}
		src.History = history
	}
	return sources, nil
}

// Get returns a single source owned by userID.
func (s *SourceService) Get(ctx context.Context, userID, sourceID uuid.UUID) (*models.ContentSource, error) {
	source, err := s.ownedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}

	history, err := s.history.ListBySource(ctx, sourceID)
	if err == nil {
		source.History = history
	}
	return source, nil
}

// Delete removes a source owned by userID.
func (s *SourceService) Delete(ctx context.Context, userID, sourceID uuid.UUID) error {
	deleted, err := s.sources.Delete(ctx, sourceID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if !deleted {
		return &NotFoundError{Message: "source not found"}
	}
	return nil
}

// Extract pulls metadata for the source's video or playlist, charges the
// duration-based extraction cost, and for videos queues a transcript job. The
// returned job is nil for playlists.
func (s *SourceService) Extract(ctx context.Context, userID, sourceID uuid.UUID, req models.ExtractRequest) (*models.ContentSource, *models.Job, error) {
	fields := map[string]string{}
	if req.ContentType != "video" && req.ContentType != "playlist" {
		fields["content_type"] = "must be video or playlist"
	}
	if req.ContentID == "" {
		fields["content_id"] = "content id is required"
	}
	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}

	source, err := s.ownedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.sources.UpdateStatus(ctx, sourceID, "processing"); err != nil {
		return nil, nil, fmt.Errorf("failed to update source status: %w", err)
	}

	var job *models.Job
	switch req.ContentType {
	case "video":
		job, err = s.extractVideo(ctx, source, req.ContentID)
	case "playlist":
		err = s.extractPlaylist(ctx, source, req.ContentID)
	}
	if err != nil {
		s.sources.UpdateStatus(ctx, sourceID, "error")
		s.appendHistory(ctx, sourceID, "analysis", "error", "Failed to extract content",
			json.RawMessage(fmt.Sprintf(`{"error":%s}`, mustJSON(err.Error()))))
		return nil, nil, err
	}

	refreshed, getErr := s.sources.GetByID(ctx, sourceID)
	if getErr != nil {
		return source, job, nil
	}
	return refreshed, job, nil
}

func (s *SourceService) extractVideo(ctx context.Context, source *models.ContentSource, videoID string) (*models.Job, error) {
	details, err := s.youtube.GetVideoDetails(ctx, videoID)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video metadata: %w", err)
	}
	if err := s.sources.UpdateMetadata(ctx, source.ID, metadata); err != nil {
		return nil, fmt.Errorf("failed to save video metadata: %w", err)
	}

	// 10 tokens per started minute of video
	minutes := (details.Duration + 59) / 60
	charge := minutes * extractTokensPerMinute
	if err := s.usage.Record(ctx, source.UserID, &source.ID, charge, "analysis"); err != nil {
		log.Printf("Failed to record extraction charge for source %s: %v", source.ID, err)
	}

	s.appendHistory(ctx, source.ID, "analysis", "success", "Analyzed video content and metadata",
		json.RawMessage(fmt.Sprintf(`{"contentType":"video","contentId":%s}`, mustJSON(videoID))))

	job := &models.Job{
		UserID:      source.UserID,
		Type:        "transcript-fetch",
		ReferenceID: source.ID,
		ConfigJSON:  json.RawMessage(fmt.Sprintf(`{"video_id":%s}`, mustJSON(videoID))),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create transcript job: %w", err)
	}

	jobBytes, _ := json.Marshal(job)
	if err := s.queue.LPush(ctx, TranscriptQueue, string(jobBytes)).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue transcript job: %w", err)
	}
	return job, nil
}

func (s *SourceService) extractPlaylist(ctx context.Context, source *models.ContentSource, playlistID string) error {
	page, err := s.youtube.GetPlaylistItems(ctx, playlistID, "")
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal playlist metadata: %w", err)
	}
	if err := s.sources.UpdateMetadata(ctx, source.ID, metadata); err != nil {
		return fmt.Errorf("failed to save playlist metadata: %w", err)
	}

	s.appendHistory(ctx, source.ID, "analysis", "success", "Analyzed playlist content and metadata",
		json.RawMessage(fmt.Sprintf(`{"contentType":"playlist","contentId":%s}`, mustJSON(playlistID))))

	// Playlists have no transcript pipeline; extraction completes here.
	return s.sources.UpdateStatus(ctx, source.ID, "completed")
}

// History returns the processing audit trail for a source owned by userID.
func (s *SourceService) History(ctx context.Context, userID, sourceID uuid.UUID) ([]*models.ProcessingHistoryEntry, error) {
	if _, err := s.ownedSource(ctx, userID, sourceID); err != nil {
		return nil, err
	}
	return s.history.ListBySource(ctx, sourceID)
}

func (s *SourceService) ownedSource(ctx context.Context, userID, sourceID uuid.UUID) (*models.ContentSource, error) {
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
	return source, nil
}

func (s *SourceService) appendHistory(ctx context.Context, sourceID uuid.UUID, action, status, details string, metadata json.RawMessage) {
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
