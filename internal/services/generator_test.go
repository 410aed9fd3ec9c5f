package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repurpose-backend/internal/models"
)

type fakeSourceStore struct {
	sources map[uuid.UUID]*models.ContentSource
}

func (f *fakeSourceStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ContentSource, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

type fakeGeneratedStore struct {
	created []*models.GeneratedContent
	latest  *models.GeneratedContent
}

func (f *fakeGeneratedStore) Create(ctx context.Context, g *models.GeneratedContent) error {
	g.ID = uuid.New()
	f.created = append(f.created, g)
	return nil
}

func (f *fakeGeneratedStore) GetLatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.GeneratedContent, error) {
	return f.latest, nil
}

type fakeTranscriptReader struct {
	transcript *models.Transcript
}

func (f *fakeTranscriptReader) GetBySourceID(ctx context.Context, sourceID uuid.UUID) (*models.Transcript, error) {
	return f.transcript, nil
}

type fakeHistory struct {
	entries []*models.ProcessingHistoryEntry
}

func (f *fakeHistory) Append(ctx context.Context, e *models.ProcessingHistoryEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakeCharger struct {
	charges []int
	err     error
}

func (f *fakeCharger) Charge(ctx context.Context, userID uuid.UUID, sourceID *uuid.UUID, tokens int, action string) error {
	if f.err != nil {
		return f.err
	}
	f.charges = append(f.charges, tokens)
	return nil
}

type fakeAI struct {
	blog       string
	blogErr    error
	posts      []models.SocialPost
	postsErr   error
	newsletter string
	chatReply  string
	chatType   string
	chatTitle  string
	chatTurns  []models.ChatMessage
	calls      int
}

func (f *fakeAI) GenerateBlog(ctx context.Context, transcript string) (string, error) {
	f.calls++
	return f.blog, f.blogErr
}

func (f *fakeAI) GenerateSocialPosts(ctx context.Context, description string) ([]models.SocialPost, error) {
	f.calls++
	return f.posts, f.postsErr
}

func (f *fakeAI) GenerateNewsletter(ctx context.Context, description, title, sourceType, channelTitle string) (string, error) {
	f.calls++
	return f.newsletter, nil
}

func (f *fakeAI) ChatCompletion(ctx context.Context, messages []models.ChatMessage, sourceType, title string) (string, error) {
	f.calls++
	f.chatTurns = messages
	f.chatType = sourceType
	f.chatTitle = title
	return f.chatReply, nil
}

type generatorFixture struct {
	svc       *GeneratorService
	sources   *fakeSourceStore
	generated *fakeGeneratedStore
	history   *fakeHistory
	charger   *fakeCharger
	ai        *fakeAI
	userID    uuid.UUID
	sourceID  uuid.UUID
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()
	userID := uuid.New()
	sourceID := uuid.New()

	meta, _ := json.Marshal(models.SourceMetadata{
		Title:        "How It Works",
		Description:  "A walkthrough of the pipeline",
		ChannelTitle: "Dev Channel",
	})

	sources := &fakeSourceStore{sources: map[uuid.UUID]*models.ContentSource{
		sourceID: {ID: sourceID, UserID: userID, Type: "youtube", Metadata: meta},
	}}
	generated := &fakeGeneratedStore{}
	transcripts := &fakeTranscriptReader{transcript: &models.Transcript{
		SourceID: sourceID,
		VideoID:  "vid1",
		Body:     models.TranscriptBody{Raw: "raw transcript", HTML: "<h1>Walkthrough</h1>"},
	}}
	history := &fakeHistory{}
	charger := &fakeCharger{}
	ai := &fakeAI{
		blog:       strings.Repeat("b", 400),
		posts:      []models.SocialPost{{Platform: "twitter", Content: "t"}, {Platform: "linkedin", Content: "l"}},
		newsletter: strings.Repeat("n", 200),
	}

	return &generatorFixture{
		svc:       NewGeneratorService(sources, generated, transcripts, history, charger, ai),
		sources:   sources,
		generated: generated,
		history:   history,
		charger:   charger,
		ai:        ai,
		userID:    userID,
		sourceID:  sourceID,
	}
}

func TestGenerateAllFormats(t *testing.T) {
	f := newGeneratorFixture(t)

	result, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{
		Formats: []string{"blog", "social", "newsletter"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(result.Saved.Content) != 3 {
		t.Errorf("content formats = %d, want 3", len(result.Saved.Content))
	}
	if result.TranscriptHTML != "<h1>Walkthrough</h1>" {
		t.Errorf("html = %q", result.TranscriptHTML)
	}
	if len(f.generated.created) != 1 {
		t.Fatalf("persisted %d rows, want 1", len(f.generated.created))
	}
	if len(f.charger.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(f.charger.charges))
	}

	// blog 400/4 + serialized posts /4 + newsletter 200/4
	serialized, _ := json.Marshal(f.ai.posts)
	want := 100 + len(serialized)/4 + 50
	if result.TokensUsed != want {
		t.Errorf("tokensUsed = %d, want %d", result.TokensUsed, want)
	}
	if f.charger.charges[0] != want {
		t.Errorf("charged = %d, want %d", f.charger.charges[0], want)
	}
}

func TestGenerateRepeatServedFromCache(t *testing.T) {
	f := newGeneratorFixture(t)
	req := models.GenerateRequest{Formats: []string{"blog"}}

	first, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, req)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, req)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if first != second {
		t.Error("expected the cached result pointer")
	}
	if f.ai.calls != 1 {
		t.Errorf("AI calls = %d, want 1", f.ai.calls)
	}
	if len(f.charger.charges) != 1 {
		t.Errorf("charges = %d, want 1", len(f.charger.charges))
	}
	if len(f.generated.created) != 1 {
		t.Errorf("persisted rows = %d, want 1", len(f.generated.created))
	}
}

func TestGenerateCacheKeyIgnoresFormatOrder(t *testing.T) {
	f := newGeneratorFixture(t)

	if _, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{Formats: []string{"blog", "social"}}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	callsAfterFirst := f.ai.calls

	if _, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{Formats: []string{"social", "blog"}}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.ai.calls != callsAfterFirst {
		t.Errorf("AI calls grew from %d to %d on reordered formats", callsAfterFirst, f.ai.calls)
	}
}

func TestGenerateUnknownFormatRejected(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{Formats: []string{"podcast"}})
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerateEmptyFormatsRejected(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{})
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerateMissingSourceNotFound(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.Generate(context.Background(), f.userID, uuid.New(), models.GenerateRequest{Formats: []string{"blog"}})
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGenerateForeignSourceNotFound(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.Generate(context.Background(), uuid.New(), f.sourceID, models.GenerateRequest{Formats: []string{"blog"}})
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGenerateMissingTranscriptAborts(t *testing.T) {
	f := newGeneratorFixture(t)
	f.svc.transcripts = &fakeTranscriptReader{transcript: nil}

	_, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{Formats: []string{"blog"}})
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(f.generated.created) != 0 {
		t.Error("nothing should be persisted without a transcript")
	}
	if len(f.charger.charges) != 0 {
		t.Error("nothing should be charged without a transcript")
	}
}

func TestGenerateAIFailureAbortsBatch(t *testing.T) {
	f := newGeneratorFixture(t)
	f.ai.postsErr = &GenerationFailedError{Message: "invalid social posts format"}

	_, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{
		Formats: []string{"blog", "social", "newsletter"},
	})
	if _, ok := err.(*GenerationFailedError); !ok {
		t.Fatalf("expected GenerationFailedError, got %v", err)
	}
	if len(f.generated.created) != 0 {
		t.Error("partial results must not be persisted")
	}
	if len(f.charger.charges) != 0 {
		t.Error("failed batches must not be charged")
	}

	var sawFailure bool
	for _, e := range f.history.entries {
		if e.Status == "error" {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("expected a failure history entry")
	}
}

func TestGenerateOutOfTokens(t *testing.T) {
	f := newGeneratorFixture(t)
	f.charger.err = &OutOfTokensError{Required: 175, Remaining: 20}

	_, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{Formats: []string{"blog"}})
	if _, ok := err.(*OutOfTokensError); !ok {
		t.Fatalf("expected OutOfTokensError, got %v", err)
	}

	// A failed charge must not leave a reusable cached result.
	f.charger.err = nil
	if _, err := f.svc.Generate(context.Background(), f.userID, f.sourceID, models.GenerateRequest{Formats: []string{"blog"}}); err != nil {
		t.Fatalf("retry after refill: %v", err)
	}
}

func TestGetLatestNotFoundWhenEmpty(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.GetLatest(context.Background(), f.userID, f.sourceID)
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGetLatestReturnsNewest(t *testing.T) {
	f := newGeneratorFixture(t)
	f.generated.latest = &models.GeneratedContent{SourceID: f.sourceID, Content: map[string]any{"blog": "text"}}

	latest, err := f.svc.GetLatest(context.Background(), f.userID, f.sourceID)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.Content["blog"] != "text" {
		t.Errorf("content = %+v", latest.Content)
	}
}

func TestChatPassesSourceContext(t *testing.T) {
	f := newGeneratorFixture(t)
	f.ai.chatReply = "The pipeline fetches the transcript first."

	reply, err := f.svc.Chat(context.Background(), f.userID, f.sourceID, models.ChatRequest{
		Messages: []models.ChatMessage{
			{Role: "user", Content: "What does the video cover?"},
			{Role: "assistant", Content: "It covers the pipeline."},
			{Role: "user", Content: "What happens first?"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "The pipeline fetches the transcript first." {
		t.Errorf("reply = %q", reply)
	}
	if f.ai.chatType != "youtube" || f.ai.chatTitle != "How It Works" {
		t.Errorf("context = %q/%q, want youtube/How It Works", f.ai.chatType, f.ai.chatTitle)
	}
	if len(f.ai.chatTurns) != 3 {
		t.Errorf("got %d turns, want 3", len(f.ai.chatTurns))
	}
}

func TestChatRequiresMessages(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.Chat(context.Background(), f.userID, f.sourceID, models.ChatRequest{})
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if f.ai.calls != 0 {
		t.Errorf("AI called %d times for invalid request", f.ai.calls)
	}
}

func TestChatForeignSourceNotFound(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.svc.Chat(context.Background(), uuid.New(), f.sourceID, models.ChatRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if f.ai.calls != 0 {
		t.Errorf("AI called %d times for foreign source", f.ai.calls)
	}
}
