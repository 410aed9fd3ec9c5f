package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"repurpose-backend/internal/models"
)

type fakeTranscriptStore struct {
	existing *models.Transcript
	created  []*models.Transcript
	getErr   error
}

func (f *fakeTranscriptStore) GetByVideoID(ctx context.Context, videoID string) (*models.Transcript, error) {
	return f.existing, f.getErr
}

func (f *fakeTranscriptStore) Create(ctx context.Context, t *models.Transcript) error {
	f.created = append(f.created, t)
	return nil
}

type fakeFetcher struct {
	transcript string
	err        error
	calls      int
}

func (f *fakeFetcher) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	f.calls++
	return f.transcript, f.err
}

type fakeCaptions struct {
	captions string
	err      error
	calls    int
}

func (f *fakeCaptions) Captions(videoID string) (string, error) {
	f.calls++
	return f.captions, f.err
}

type fakeStructurer struct {
	html string
	err  error
}

func (f *fakeStructurer) StructureTranscript(ctx context.Context, transcript string) (string, error) {
	return f.html, f.err
}

func TestFetchReturnsExistingWithoutScraping(t *testing.T) {
	existing := &models.Transcript{
		ContentID: uuid.New(),
		VideoID:   "vid1",
		Body:      models.TranscriptBody{Raw: "already here"},
	}
	store := &fakeTranscriptStore{existing: existing}
	fetcher := &fakeFetcher{transcript: "should not be used"}
	svc := NewTranscriptService(store, fetcher, nil, nil)

	got, err := svc.Fetch(context.Background(), uuid.New(), "vid1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != existing {
		t.Error("expected the existing transcript back")
	}
	if fetcher.calls != 0 {
		t.Errorf("scraper called %d times, want 0", fetcher.calls)
	}
	if len(store.created) != 0 {
		t.Errorf("created %d rows, want 0", len(store.created))
	}
}

func TestFetchScrapesStructuresAndPersists(t *testing.T) {
	store := &fakeTranscriptStore{}
	fetcher := &fakeFetcher{transcript: "raw words"}
	structurer := &fakeStructurer{html: "<h1>Title</h1>"}
	sourceID := uuid.New()
	svc := NewTranscriptService(store, fetcher, nil, structurer)

	got, err := svc.Fetch(context.Background(), sourceID, "vid1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got == nil {
		t.Fatal("expected a transcript")
	}
	if got.Body.Raw != "raw words" || got.Body.HTML != "<h1>Title</h1>" {
		t.Errorf("body = %+v", got.Body)
	}
	if got.SourceID != sourceID || got.VideoID != "vid1" {
		t.Errorf("identity = %s/%s", got.SourceID, got.VideoID)
	}
	if got.ContentID == uuid.Nil {
		t.Error("content id not assigned")
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d rows, want 1", len(store.created))
	}
}

func TestFetchFallsBackToCaptions(t *testing.T) {
	store := &fakeTranscriptStore{}
	fetcher := &fakeFetcher{err: errors.New("actor down")}
	captions := &fakeCaptions{captions: "caption text"}
	svc := NewTranscriptService(store, fetcher, captions, &fakeStructurer{html: "<p>x</p>"})

	got, err := svc.Fetch(context.Background(), uuid.New(), "vid1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got == nil || got.Body.Raw != "caption text" {
		t.Fatalf("got %+v, want caption text", got)
	}
	if captions.calls != 1 {
		t.Errorf("captions called %d times, want 1", captions.calls)
	}
}

func TestFetchNoTranscriptAnywhereIsSoftMiss(t *testing.T) {
	store := &fakeTranscriptStore{}
	fetcher := &fakeFetcher{transcript: ""}
	captions := &fakeCaptions{err: errors.New("no subtitles available")}
	svc := NewTranscriptService(store, fetcher, captions, nil)

	got, err := svc.Fetch(context.Background(), uuid.New(), "vid1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil transcript, got %+v", got)
	}
	if len(store.created) != 0 {
		t.Error("nothing should be persisted on a miss")
	}
}

func TestFetchKeepsRawWhenStructuringFails(t *testing.T) {
	store := &fakeTranscriptStore{}
	fetcher := &fakeFetcher{transcript: "raw words"}
	structurer := &fakeStructurer{err: errors.New("model unavailable")}
	svc := NewTranscriptService(store, fetcher, nil, structurer)

	got, err := svc.Fetch(context.Background(), uuid.New(), "vid1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got == nil || got.Body.Raw != "raw words" {
		t.Fatalf("got %+v, want raw transcript", got)
	}
	if got.Body.HTML != "" {
		t.Errorf("html = %q, want empty", got.Body.HTML)
	}
}

func TestFetchRequiresVideoID(t *testing.T) {
	svc := NewTranscriptService(&fakeTranscriptStore{}, &fakeFetcher{}, nil, nil)
	_, err := svc.Fetch(context.Background(), uuid.New(), "")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFetchPropagatesStoreErrors(t *testing.T) {
	store := &fakeTranscriptStore{getErr: errors.New("connection refused")}
	svc := NewTranscriptService(store, &fakeFetcher{}, nil, nil)

	_, err := svc.Fetch(context.Background(), uuid.New(), "vid1")
	if err == nil {
		t.Fatal("expected error")
	}
}
