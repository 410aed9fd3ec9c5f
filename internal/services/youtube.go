package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"repurpose-backend/internal/cache"
	"repurpose-backend/internal/models"
)

const defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

// YouTubeService fronts the YouTube Data API. Every raw endpoint call goes
// through fetch, which layers the response cache and the quota fallback, so
// the composed lookups below never talk to the network directly.
type YouTubeService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache.TwoTier
}

func NewYouTubeService(apiKey string, responseCache *cache.TwoTier) *YouTubeService {
	return &YouTubeService{
		apiKey:     apiKey,
		baseURL:    defaultYouTubeBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      responseCache,
	}
}

// SetUpstream overrides the API base URL and HTTP client. Used by tests and
// proxy deployments.
func (s *YouTubeService) SetUpstream(baseURL string, client *http.Client) {
	s.baseURL = baseURL
	if client != nil {
		s.httpClient = client
	}
}

// cacheKey builds a canonical key from the endpoint and its parameters.
// Parameters are serialized in sorted key order so logically identical
// requests always map to the same entry.
func cacheKey(endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteString(":{")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		vj, _ := json.Marshal(params[k])
		b.Write(kj)
		b.WriteByte(':')
		b.Write(vj)
	}
	b.WriteString("}")
	return b.String()
}

type apiErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func isQuotaMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "quota")
}

// fetch performs a GET against the Data API with caching. On a quota error it
// falls back to the most recent cached value for the same key, however old;
// only when no such value exists does the caller see a QuotaExceededError.
func (s *YouTubeService) fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	key := cacheKey(endpoint, params)
	if data, ok := s.cache.Get(ctx, key); ok {
		return data, nil
	}

	q := url.Values{}
	q.Set("key", s.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("YouTube API request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to read YouTube API response: %v", err)}
	}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		msg := envelope.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("YouTube API error (status %d)", resp.StatusCode)
		}
		if isQuotaMessage(msg) {
			if stale, ok := s.cache.GetStale(ctx, key); ok {
				return stale, nil
			}
			return nil, &QuotaExceededError{Message: "YouTube API quota exceeded. Please try again later."}
		}
		return nil, &UpstreamError{Message: msg}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Message: fmt.Sprintf("YouTube API error (status %d)", resp.StatusCode)}
	}

	s.cache.Set(ctx, key, body)
	return body, nil
}

// Raw response shapes. Only the fields the gateway flattens are declared.

type ytThumbnail struct {
	URL string `json:"url"`
}

type ytThumbnails struct {
	Default ytThumbnail `json:"default"`
	Medium  ytThumbnail `json:"medium"`
	High    ytThumbnail `json:"high"`
}

func (t ytThumbnails) best() string {
	if t.High.URL != "" {
		return t.High.URL
	}
	if t.Medium.URL != "" {
		return t.Medium.URL
	}
	return t.Default.URL
}

type ytSnippet struct {
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	Thumbnails           ytThumbnails `json:"thumbnails"`
	PublishedAt          string       `json:"publishedAt"`
	ChannelID            string       `json:"channelId"`
	ChannelTitle         string       `json:"channelTitle"`
	CustomURL            string       `json:"customUrl"`
	Country              string       `json:"country"`
	Tags                 []string     `json:"tags"`
	CategoryID           string       `json:"categoryId"`
	DefaultLanguage      string       `json:"defaultLanguage"`
	DefaultAudioLanguage string       `json:"defaultAudioLanguage"`
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
			VideoID   string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytChannelsResponse struct {
	Items []struct {
		ID               string                   `json:"id"`
		Snippet          ytSnippet                `json:"snippet"`
		Statistics       models.ChannelStatistics `json:"statistics"`
		BrandingSettings struct {
			Image struct {
				BannerExternalURL string `json:"bannerExternalUrl"`
			} `json:"image"`
			Channel struct {
				Keywords string `json:"keywords"`
			} `json:"channel"`
		} `json:"brandingSettings"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID             string                 `json:"id"`
		Snippet        ytSnippet              `json:"snippet"`
		Statistics     models.VideoStatistics `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		TopicDetails struct {
			TopicCategories []string `json:"topicCategories"`
		} `json:"topicDetails"`
	} `json:"items"`
}

type ytPlaylistsResponse struct {
	Items []struct {
		ID             string    `json:"id"`
		Snippet        ytSnippet `json:"snippet"`
		ContentDetails struct {
			ItemCount int `json:"itemCount"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytPlaylistItemsResponse struct {
	Items []struct {
		Snippet        ytSnippet `json:"snippet"`
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO-8601 video duration such as PT1H2M3S to
// seconds. Unparseable input yields zero.
func parseISODuration(d string) int {
	m := isoDurationRe.FindStringSubmatch(d)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + sec
}

// SearchChannels looks up channels by free-text query. Per-channel statistics
// come from a second batched call; if that call fails the results are returned
// without statistics rather than failing the search.
func (s *YouTubeService) SearchChannels(ctx context.Context, query string) ([]models.ChannelSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Fields: map[string]string{"q": "search query is required"}}
	}

	raw, err := s.fetch(ctx, "search", map[string]string{
		"part":       "snippet",
		"type":       "channel",
		"q":          query,
		"maxResults": "5",
	})
	if err != nil {
		return nil, err
	}

	var search ytSearchResponse
	if err := json.Unmarshal(raw, &search); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to parse search response: %v", err)}
	}
	if len(search.Items) == 0 {
		return []models.ChannelSearchResult{}, nil
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.ChannelID != "" {
			ids = append(ids, item.ID.ChannelID)
		}
	}

	details := map[string]struct {
		stats  models.ChannelStatistics
		banner string
		custom string
	}{}
	if len(ids) > 0 {
		rawChannels, err := s.fetch(ctx, "channels", map[string]string{
			"part": "snippet,statistics,brandingSettings",
			"id":   strings.Join(ids, ","),
		})
		if err == nil {
			var channels ytChannelsResponse
			if json.Unmarshal(rawChannels, &channels) == nil {
				for _, ch := range channels.Items {
					details[ch.ID] = struct {
						stats  models.ChannelStatistics
						banner string
						custom string
					}{
						stats:  ch.Statistics,
						banner: ch.BrandingSettings.Image.BannerExternalURL,
						custom: ch.Snippet.CustomURL,
					}
				}
			}
		}
	}

	results := make([]models.ChannelSearchResult, 0, len(search.Items))
	for _, item := range search.Items {
		r := models.ChannelSearchResult{
			ID:          item.ID.ChannelID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   item.Snippet.Thumbnails.best(),
			PublishedAt: item.Snippet.PublishedAt,
			Country:     item.Snippet.Country,
		}
		if d, ok := details[item.ID.ChannelID]; ok {
			r.Statistics = d.stats
			r.Banner = d.banner
			r.CustomURL = d.custom
		}
		results = append(results, r)
	}
	return results, nil
}

// GetChannelDetails returns a channel profile with its playlists and recent
// uploads. The playlist and recent-video lookups are best effort: if either
// fails, the channel is returned with that section empty.
func (s *YouTubeService) GetChannelDetails(ctx context.Context, channelID string) (*models.ChannelDetails, error) {
	if channelID == "" {
		return nil, &ValidationError{Fields: map[string]string{"channelId": "channel id is required"}}
	}

	raw, err := s.fetch(ctx, "channels", map[string]string{
		"part": "snippet,statistics,brandingSettings,contentDetails",
		"id":   channelID,
	})
	if err != nil {
		return nil, err
	}

	var channels ytChannelsResponse
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to parse channel response: %v", err)}
	}
	if len(channels.Items) == 0 {
		return nil, &NotFoundError{Message: "channel not found"}
	}
	ch := channels.Items[0]

	details := &models.ChannelDetails{
		ID:              ch.ID,
		Title:           ch.Snippet.Title,
		Description:     ch.Snippet.Description,
		Thumbnail:       ch.Snippet.Thumbnails.best(),
		Banner:          ch.BrandingSettings.Image.BannerExternalURL,
		SubscriberCount: ch.Statistics.SubscriberCount,
		VideoCount:      ch.Statistics.VideoCount,
		ViewCount:       ch.Statistics.ViewCount,
		PublishedAt:     ch.Snippet.PublishedAt,
		Country:         ch.Snippet.Country,
		CustomURL:       ch.Snippet.CustomURL,
		Keywords:        splitKeywords(ch.BrandingSettings.Channel.Keywords),
		UploadsPlaylist: ch.ContentDetails.RelatedPlaylists.Uploads,
		Playlists:       []models.PlaylistSummary{},
		RecentVideos:    []models.VideoSummary{},
	}

	if playlists, err := s.channelPlaylists(ctx, channelID); err == nil {
		details.Playlists = playlists
	}
	if videos, err := s.recentVideos(ctx, channelID); err == nil {
		details.RecentVideos = videos
	}
	return details, nil
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '"' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *YouTubeService) channelPlaylists(ctx context.Context, channelID string) ([]models.PlaylistSummary, error) {
	raw, err := s.fetch(ctx, "playlists", map[string]string{
		"part":       "snippet,contentDetails",
		"channelId":  channelID,
		"maxResults": "10",
	})
	if err != nil {
		return nil, err
	}

	var resp ytPlaylistsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	playlists := make([]models.PlaylistSummary, 0, len(resp.Items))
	for _, p := range resp.Items {
		playlists = append(playlists, models.PlaylistSummary{
			ID:          p.ID,
			Title:       p.Snippet.Title,
			Description: p.Snippet.Description,
			Thumbnail:   p.Snippet.Thumbnails.best(),
			ItemCount:   p.ContentDetails.ItemCount,
			PublishedAt: p.Snippet.PublishedAt,
		})
	}
	return playlists, nil
}

func (s *YouTubeService) recentVideos(ctx context.Context, channelID string) ([]models.VideoSummary, error) {
	raw, err := s.fetch(ctx, "search", map[string]string{
		"part":       "snippet",
		"channelId":  channelID,
		"type":       "video",
		"order":      "date",
		"maxResults": "10",
	})
	if err != nil {
		return nil, err
	}

	var search ytSearchResponse
	if err := json.Unmarshal(raw, &search); err != nil {
		return nil, err
	}

	videos := make([]models.VideoSummary, 0, len(search.Items))
	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
		videos = append(videos, models.VideoSummary{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   item.Snippet.Thumbnails.best(),
			PublishedAt: item.Snippet.PublishedAt,
		})
	}

	// Statistics come from a second batched call and are optional.
	if len(ids) > 0 {
		if stats, err := s.videoStatistics(ctx, ids); err == nil {
			for i := range videos {
				if st, ok := stats[videos[i].ID]; ok {
					videos[i].Statistics = st
				}
			}
		}
	}
	return videos, nil
}

func (s *YouTubeService) videoStatistics(ctx context.Context, ids []string) (map[string]models.VideoStatistics, error) {
	raw, err := s.fetch(ctx, "videos", map[string]string{
		"part": "statistics",
		"id":   strings.Join(ids, ","),
	})
	if err != nil {
		return nil, err
	}

	var resp ytVideosResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	stats := make(map[string]models.VideoStatistics, len(resp.Items))
	for _, v := range resp.Items {
		stats[v.ID] = v.Statistics
	}
	return stats, nil
}

// GetVideoDetails returns full metadata for a single video, including its
// duration in seconds. The owning channel's thumbnail and subscriber count are
// joined in when available.
func (s *YouTubeService) GetVideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error) {
	if videoID == "" {
		return nil, &ValidationError{Fields: map[string]string{"videoId": "video id is required"}}
	}

	raw, err := s.fetch(ctx, "videos", map[string]string{
		"part": "snippet,statistics,contentDetails,topicDetails",
		"id":   videoID,
	})
	if err != nil {
		return nil, err
	}

	var resp ytVideosResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to parse video response: %v", err)}
	}
	if len(resp.Items) == 0 {
		return nil, &NotFoundError{Message: "video not found"}
	}
	v := resp.Items[0]

	language := v.Snippet.DefaultLanguage
	if language == "" {
		language = v.Snippet.DefaultAudioLanguage
	}

	details := &models.VideoDetails{
		ID:           v.ID,
		VideoID:      v.ID,
		Title:        v.Snippet.Title,
		Description:  v.Snippet.Description,
		PublishedAt:  v.Snippet.PublishedAt,
		ChannelID:    v.Snippet.ChannelID,
		ChannelTitle: v.Snippet.ChannelTitle,
		Thumbnail:    v.Snippet.Thumbnails.best(),
		Duration:     parseISODuration(v.ContentDetails.Duration),
		Statistics:   v.Statistics,
		Topics:       topicNames(v.TopicDetails.TopicCategories),
		Tags:         v.Snippet.Tags,
		Category:     v.Snippet.CategoryID,
		Language:     language,
	}
	if details.Tags == nil {
		details.Tags = []string{}
	}

	if v.Snippet.ChannelID != "" {
		rawChannel, err := s.fetch(ctx, "channels", map[string]string{
			"part": "snippet,statistics",
			"id":   v.Snippet.ChannelID,
		})
		if err == nil {
			var channels ytChannelsResponse
			if json.Unmarshal(rawChannel, &channels) == nil && len(channels.Items) > 0 {
				details.ChannelThumbnail = channels.Items[0].Snippet.Thumbnails.best()
				details.Statistics.ChannelSubscriberCount = channels.Items[0].Statistics.SubscriberCount
			}
		}
	}
	return details, nil
}

// topicNames reduces Wikipedia topic category URLs to readable names.
func topicNames(urls []string) []string {
	names := make([]string, 0, len(urls))
	for _, u := range urls {
		if i := strings.LastIndex(u, "/"); i >= 0 {
			u = u[i+1:]
		}
		names = append(names, strings.ReplaceAll(u, "_", " "))
	}
	return names
}

// GetPlaylistItems returns one page of a playlist's videos with statistics.
// An unknown or empty playlist yields an empty page, not an error.
func (s *YouTubeService) GetPlaylistItems(ctx context.Context, playlistID, pageToken string) (*models.PlaylistItemsPage, error) {
	if playlistID == "" {
		return nil, &ValidationError{Fields: map[string]string{"playlistId": "playlist id is required"}}
	}

	params := map[string]string{
		"part":       "snippet,contentDetails",
		"playlistId": playlistID,
		"maxResults": "10",
	}
	if pageToken != "" {
		params["pageToken"] = pageToken
	}

	raw, err := s.fetch(ctx, "playlistItems", params)
	if err != nil {
		return nil, err
	}

	var resp ytPlaylistItemsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to parse playlist items response: %v", err)}
	}

	page := &models.PlaylistItemsPage{
		Items:         make([]models.VideoSummary, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails.VideoID == "" {
			continue
		}
		ids = append(ids, item.ContentDetails.VideoID)
		page.Items = append(page.Items, models.VideoSummary{
			ID:          item.ContentDetails.VideoID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   item.Snippet.Thumbnails.best(),
			PublishedAt: item.Snippet.PublishedAt,
		})
	}

	if len(ids) > 0 {
		if stats, err := s.videoStatistics(ctx, ids); err == nil {
			for i := range page.Items {
				if st, ok := stats[page.Items[i].ID]; ok {
					page.Items[i].Statistics = st
				}
			}
		}
	}
	return page, nil
}
