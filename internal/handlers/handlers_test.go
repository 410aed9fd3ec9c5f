package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"repurpose-backend/internal/cache"
	"repurpose-backend/internal/middleware"
	"repurpose-backend/internal/services"
)

func TestHandleServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"q": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"out of tokens", &services.OutOfTokensError{Required: 100, Remaining: 10}, http.StatusPaymentRequired, "OUT_OF_TOKENS"},
		{"not found", &services.NotFoundError{Message: "source not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"quota", &services.QuotaExceededError{Message: "try later"}, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{"generation failed", &services.GenerationFailedError{Message: "bad output"}, http.StatusBadGateway, "GENERATION_FAILED"},
		{"upstream", &services.UpstreamError{Message: "api down"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-1")

			handleServiceError(rec, req, tc.err)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			var resp struct {
				Error struct {
					Code      string `json:"code"`
					RequestID string `json:"request_id"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if resp.Error.Code != tc.wantBody {
				t.Errorf("code = %q, want %q", resp.Error.Code, tc.wantBody)
			}
			if resp.Error.RequestID != "req-1" {
				t.Errorf("request_id = %q, want req-1", resp.Error.RequestID)
			}
		})
	}
}

func TestHandleServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handleServiceError(rec, req, errors.New("pq: connection refused at 10.1.2.3"))

	if bytes.Contains(rec.Body.Bytes(), []byte("10.1.2.3")) {
		t.Error("internal error detail leaked into the response body")
	}
}

func TestSourceHandlerRejectsBadID(t *testing.T) {
	h := NewSourceHandler(nil, nil)

	router := chi.NewRouter()
	router.Get("/api/v1/sources/{id}", h.Get)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources/not-a-uuid", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSourceHandlerRejectsBadBody(t *testing.T) {
	h := NewSourceHandler(nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewReader([]byte("{not json")))
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChannelSearchEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": map[string]string{"channelId": "UC1"}, "snippet": map[string]any{"title": "Channel One"}},
				},
			})
		case "/channels":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "UC1", "statistics": map[string]string{"subscriberCount": "7"}},
				},
			})
		}
	}))
	defer upstream.Close()

	youtube := services.NewYouTubeService("key", cache.NewTwoTier(nil, 30*time.Minute, nil))
	youtube.SetUpstream(upstream.URL, upstream.Client())
	h := NewChannelHandler(youtube)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/search?q=one", nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, uuid.New())
	h.Search(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Channels []struct {
			ID         string `json:"id"`
			Title      string `json:"title"`
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
			} `json:"statistics"`
		} `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(resp.Channels) != 1 || resp.Channels[0].ID != "UC1" {
		t.Fatalf("channels = %+v", resp.Channels)
	}
	if resp.Channels[0].Statistics.SubscriberCount != "7" {
		t.Errorf("subscriberCount = %q", resp.Channels[0].Statistics.SubscriberCount)
	}
}

func TestChannelSearchMissingQuery(t *testing.T) {
	youtube := services.NewYouTubeService("key", cache.NewTwoTier(nil, 30*time.Minute, nil))
	h := NewChannelHandler(youtube)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/search", nil)
	h.Search(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
