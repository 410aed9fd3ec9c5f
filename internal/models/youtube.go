package models

// Normalized shapes returned by the YouTube gateway. Raw API responses are
// validated and flattened at the boundary; callers never see the upstream JSON.

type VideoStatistics struct {
	ViewCount              string `json:"viewCount,omitempty"`
	LikeCount              string `json:"likeCount,omitempty"`
	CommentCount           string `json:"commentCount,omitempty"`
	ChannelSubscriberCount string `json:"channelSubscriberCount,omitempty"`
}

type ChannelStatistics struct {
	ViewCount       string `json:"viewCount,omitempty"`
	SubscriberCount string `json:"subscriberCount,omitempty"`
	VideoCount      string `json:"videoCount,omitempty"`
}

type ChannelSearchResult struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Thumbnail   string            `json:"thumbnail"`
	Statistics  ChannelStatistics `json:"statistics"`
	Banner      string            `json:"banner,omitempty"`
	CustomURL   string            `json:"customUrl,omitempty"`
	Country     string            `json:"country,omitempty"`
	PublishedAt string            `json:"publishedAt,omitempty"`
}

type PlaylistSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	ItemCount   int    `json:"itemCount"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

type VideoSummary struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	PublishedAt string          `json:"publishedAt,omitempty"`
	Statistics  VideoStatistics `json:"statistics"`
}

type ChannelDetails struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Thumbnail       string            `json:"thumbnail"`
	Banner          string            `json:"banner,omitempty"`
	SubscriberCount string            `json:"subscriberCount,omitempty"`
	VideoCount      string            `json:"videoCount,omitempty"`
	ViewCount       string            `json:"viewCount,omitempty"`
	PublishedAt     string            `json:"publishedAt,omitempty"`
	Country         string            `json:"country,omitempty"`
	CustomURL       string            `json:"customUrl,omitempty"`
	Keywords        []string          `json:"keywords"`
	UploadsPlaylist string            `json:"featuredPlaylistId,omitempty"`
	Playlists       []PlaylistSummary `json:"playlists"`
	RecentVideos    []VideoSummary    `json:"recentVideos"`
}

type VideoDetails struct {
	ID               string          `json:"id"`
	VideoID          string          `json:"videoId"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	PublishedAt      string          `json:"publishedAt,omitempty"`
	ChannelID        string          `json:"channelId"`
	ChannelTitle     string          `json:"channelTitle"`
	ChannelThumbnail string          `json:"channelThumbnail,omitempty"`
	Thumbnail        string          `json:"thumbnail"`
	Duration         int             `json:"duration"` // seconds
	Statistics       VideoStatistics `json:"statistics"`
	Topics           []string        `json:"topics"`
	Tags             []string        `json:"tags"`
	Category         string          `json:"category,omitempty"`
	Language         string          `json:"language,omitempty"`
}

type PlaylistItemsPage struct {
	Items         []VideoSummary `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}
