package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"repurpose-backend/internal/cache"
)

func newTestYouTubeService(t *testing.T, handler http.HandlerFunc, now cache.Clock) (*YouTubeService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewYouTubeService("test-key", cache.NewTwoTier(nil, 30*time.Minute, now))
	svc.SetUpstream(server.URL, server.Client())
	return svc, server
}

func TestSearchChannelsJoinsStatistics(t *testing.T) {
	var searchCalls, channelCalls int
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			searchCalls++
			if got := r.URL.Query().Get("q"); got != "cooking" {
				t.Errorf("q = %q, want %q", got, "cooking")
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id": map[string]string{"channelId": "UC123"},
						"snippet": map[string]any{
							"title":       "Chef Channel",
							"description": "Recipes",
							"thumbnails":  map[string]any{"high": map[string]string{"url": "https://img/hi.jpg"}},
						},
					},
				},
			})
		case "/channels":
			channelCalls++
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id":         "UC123",
						"snippet":    map[string]any{"customUrl": "@chef"},
						"statistics": map[string]string{"subscriberCount": "42000", "videoCount": "310"},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}, nil)

	results, err := svc.SearchChannels(context.Background(), "cooking")
	if err != nil {
		t.Fatalf("SearchChannels: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.ID != "UC123" || r.Title != "Chef Channel" {
		t.Errorf("unexpected result %+v", r)
	}
	if r.Statistics.SubscriberCount != "42000" {
		t.Errorf("subscriberCount = %q, want 42000", r.Statistics.SubscriberCount)
	}
	if r.CustomURL != "@chef" {
		t.Errorf("customUrl = %q, want @chef", r.CustomURL)
	}
	if r.Thumbnail != "https://img/hi.jpg" {
		t.Errorf("thumbnail = %q", r.Thumbnail)
	}
	if searchCalls != 1 || channelCalls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", searchCalls, channelCalls)
	}
}

func TestSearchChannelsSurvivesStatisticsFailure(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": map[string]string{"channelId": "UC1"}, "snippet": map[string]any{"title": "A"}},
				},
			})
		case "/channels":
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "backend error"}})
		}
	}, nil)

	results, err := svc.SearchChannels(context.Background(), "anything")
	if err != nil {
		t.Fatalf("SearchChannels: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Statistics.SubscriberCount != "" {
		t.Errorf("expected empty statistics, got %+v", results[0].Statistics)
	}
}

func TestSearchChannelsRequiresQuery(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)

	_, err := svc.SearchChannels(context.Background(), "   ")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFetchServesSecondCallFromCache(t *testing.T) {
	calls := 0
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":             "vid1",
					"snippet":        map[string]any{"title": "Video"},
					"contentDetails": map[string]string{"duration": "PT2M"},
				},
			},
		})
	}, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.GetVideoDetails(context.Background(), "vid1"); err != nil {
			t.Fatalf("GetVideoDetails: %v", err)
		}
	}
	// First call: videos lookup plus best-effort channel join miss (the fake
	// channel id is empty so no join happens). Second call is fully cached.
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
}

func TestQuotaErrorFallsBackToStaleCache(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }

	quota := false
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		if quota {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "The request cannot be completed because you have exceeded your quota."},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "vid1", "snippet": map[string]any{"title": "Cached Title"}, "contentDetails": map[string]string{"duration": "PT1M"}},
			},
		})
	}, clock)

	if _, err := svc.GetVideoDetails(context.Background(), "vid1"); err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	// Let the entry expire, then force quota errors upstream.
	current = current.Add(31 * time.Minute)
	quota = true

	details, err := svc.GetVideoDetails(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("stale fallback fetch: %v", err)
	}
	if details.Title != "Cached Title" {
		t.Errorf("title = %q, want stale cached value", details.Title)
	}
}

func TestQuotaErrorWithoutCacheReturnsQuotaExceeded(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "quotaExceeded"},
		})
	}, nil)

	_, err := svc.GetVideoDetails(context.Background(), "vid1")
	if _, ok := err.(*QuotaExceededError); !ok {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
}

func TestNonQuotaAPIErrorIsUpstreamError(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid parameter"},
		})
	}, nil)

	_, err := svc.GetVideoDetails(context.Background(), "vid1")
	ue, ok := err.(*UpstreamError)
	if !ok {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Message != "invalid parameter" {
		t.Errorf("message = %q", ue.Message)
	}
}

func TestGetChannelDetailsSurvivesSecondaryFailure(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id": "UC123",
						"snippet": map[string]any{
							"title":      "Chef Channel",
							"thumbnails": map[string]any{"high": map[string]string{"url": "https://img/hi.jpg"}},
						},
						"statistics": map[string]string{"subscriberCount": "42000"},
					},
				},
			})
		case "/playlists", "/search":
			// The playlist and recent-video joins are best-effort.
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "backend error"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}, nil)

	details, err := svc.GetChannelDetails(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("GetChannelDetails: %v", err)
	}
	if details.Title != "Chef Channel" || details.Thumbnail != "https://img/hi.jpg" {
		t.Errorf("unexpected details %+v", details)
	}
	if details.SubscriberCount != "42000" {
		t.Errorf("subscriberCount = %q, want 42000", details.SubscriberCount)
	}
	if details.Playlists == nil || len(details.Playlists) != 0 {
		t.Errorf("playlists = %#v, want empty slice", details.Playlists)
	}
	if details.RecentVideos == nil || len(details.RecentVideos) != 0 {
		t.Errorf("recentVideos = %#v, want empty slice", details.RecentVideos)
	}
}

func TestGetChannelDetailsNotFound(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}, nil)

	_, err := svc.GetChannelDetails(context.Background(), "UCmissing")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGetVideoDetailsNotFound(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}, nil)

	_, err := svc.GetVideoDetails(context.Background(), "missing")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGetVideoDetailsParsesDurationAndJoinsChannel(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id": "vid1",
						"snippet": map[string]any{
							"title":     "Deep Dive",
							"channelId": "UC9",
							"tags":      []string{"go", "backend"},
						},
						"statistics":     map[string]string{"viewCount": "1000"},
						"contentDetails": map[string]string{"duration": "PT1H2M3S"},
						"topicDetails": map[string]any{
							"topicCategories": []string{"https://en.wikipedia.org/wiki/Software_engineering"},
						},
					},
				},
			})
		case "/channels":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id":         "UC9",
						"snippet":    map[string]any{"thumbnails": map[string]any{"default": map[string]string{"url": "https://img/ch.jpg"}}},
						"statistics": map[string]string{"subscriberCount": "500"},
					},
				},
			})
		}
	}, nil)

	details, err := svc.GetVideoDetails(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("GetVideoDetails: %v", err)
	}
	if details.Duration != 3723 {
		t.Errorf("duration = %d, want 3723", details.Duration)
	}
	if details.ChannelThumbnail != "https://img/ch.jpg" {
		t.Errorf("channelThumbnail = %q", details.ChannelThumbnail)
	}
	if details.Statistics.ChannelSubscriberCount != "500" {
		t.Errorf("channelSubscriberCount = %q", details.Statistics.ChannelSubscriberCount)
	}
	if len(details.Topics) != 1 || details.Topics[0] != "Software engineering" {
		t.Errorf("topics = %v", details.Topics)
	}
}

func TestGetPlaylistItemsEmptyPlaylist(t *testing.T) {
	svc, _ := newTestYouTubeService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}, nil)

	page, err := svc.GetPlaylistItems(context.Background(), "PL123", "")
	if err != nil {
		t.Fatalf("GetPlaylistItems: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected empty page, got %d items", len(page.Items))
	}
}

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"PT15S", 15},
		{"PT4M", 240},
		{"PT1H", 3600},
		{"PT1H2M3S", 3723},
		{"PT10M30S", 630},
		{"", 0},
		{"garbage", 0},
	}
	for _, c := range cases {
		if got := parseISODuration(c.in); got != c.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCacheKeyIgnoresParamOrder(t *testing.T) {
	a := cacheKey("search", map[string]string{"q": "x", "type": "channel", "maxResults": "5"})
	b := cacheKey("search", map[string]string{"maxResults": "5", "type": "channel", "q": "x"})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a == cacheKey("videos", map[string]string{"q": "x", "type": "channel", "maxResults": "5"}) {
		t.Error("different endpoints must not collide")
	}
}
