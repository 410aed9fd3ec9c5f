package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"repurpose-backend/internal/services"
)

// ChannelHandler exposes the YouTube gateway's browse reads.
type ChannelHandler struct {
	youtube *services.YouTubeService
}

func NewChannelHandler(youtube *services.YouTubeService) *ChannelHandler {
	return &ChannelHandler{youtube: youtube}
}

func (h *ChannelHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.youtube.SearchChannels(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": results})
}

func (h *ChannelHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	details, err := h.youtube.GetChannelDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *ChannelHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	details, err := h.youtube.GetVideoDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *ChannelHandler) GetPlaylistItems(w http.ResponseWriter, r *http.Request) {
	page, err := h.youtube.GetPlaylistItems(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("pageToken"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
