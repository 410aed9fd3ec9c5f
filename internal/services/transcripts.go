package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	ytapi "github.com/hightemp/youtube-transcript-api-go/api"

	"repurpose-backend/internal/models"
)

// transcriptStore is the persistence surface the transcript pipeline needs.
type transcriptStore interface {
	GetByVideoID(ctx context.Context, videoID string) (*models.Transcript, error)
	Create(ctx context.Context, t *models.Transcript) error
}

// transcriptFetcher is the scraper actor (Apify in production).
type transcriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

// captionFetcher pulls published caption tracks directly from YouTube. Used
// when the scraper comes back empty.
type captionFetcher interface {
	Captions(videoID string) (string, error)
}

// transcriptStructurer turns a raw transcript into the HTML reader rendering.
type transcriptStructurer interface {
	StructureTranscript(ctx context.Context, transcript string) (string, error)
}

// TranscriptService acquires transcripts for videos: check for an existing
// row first, then the scraper actor, then published captions. A video with no
// transcript from any path is not an error.
type TranscriptService struct {
	store      transcriptStore
	fetcher    transcriptFetcher
	captions   captionFetcher
	structurer transcriptStructurer
}

func NewTranscriptService(store transcriptStore, fetcher transcriptFetcher, captions captionFetcher, structurer transcriptStructurer) *TranscriptService {
	return &TranscriptService{
		store:      store,
		fetcher:    fetcher,
		captions:   captions,
		structurer: structurer,
	}
}

// Fetch returns the transcript for videoID, acquiring and persisting it if no
// row exists yet. Returns (nil, nil) when the video simply has no transcript.
func (s *TranscriptService) Fetch(ctx context.Context, sourceID uuid.UUID, videoID string) (*models.Transcript, error) {
	if videoID == "" {
		return nil, &ValidationError{Fields: map[string]string{"videoId": "video id is required"}}
	}

	existing, err := s.store.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing transcript: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	raw, err := s.fetcher.FetchTranscript(ctx, videoID)
	if err != nil {
		log.Printf("Transcript scraper failed for %s: %v", videoID, err)
		raw = ""
	}

	if raw == "" && s.captions != nil {
		captions, err := s.captions.Captions(videoID)
		if err != nil {
			log.Printf("Caption fallback failed for %s: %v", videoID, err)
		} else {
			raw = captions
		}
	}

	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	// Structuring is best effort: a transcript without the HTML rendering is
	// still worth keeping.
	html := ""
	if s.structurer != nil {
		html, err = s.structurer.StructureTranscript(ctx, raw)
		if err != nil {
			log.Printf("Transcript structuring failed for %s: %v", videoID, err)
			html = ""
		}
	}

	transcript := &models.Transcript{
		ContentID: uuid.New(),
		SourceID:  sourceID,
		VideoID:   videoID,
		Body: models.TranscriptBody{
			Raw:  raw,
			HTML: html,
		},
		UpdatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, transcript); err != nil {
		return nil, fmt.Errorf("failed to save transcript: %w", err)
	}
	return transcript, nil
}

// CaptionService reads published caption tracks through the transcript API,
// preferring English variants before falling back to any language.
type CaptionService struct {
	api *ytapi.YouTubeTranscriptApi
}

func NewCaptionService() *CaptionService {
	return &CaptionService{api: ytapi.NewYouTubeTranscriptApi()}
}

func (s *CaptionService) Captions(videoID string) (string, error) {
	transcript, err := s.api.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		transcript, err = s.api.GetTranscript(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no subtitles available: %w", err)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("subtitle track is empty")
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}
	return cleaned, nil
}
