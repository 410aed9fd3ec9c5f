package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"repurpose-backend/internal/middleware"
	"repurpose-backend/internal/models"
	"repurpose-backend/internal/services"
)

type SourceHandler struct {
	sources   *services.SourceService
	generator *services.GeneratorService
}

func NewSourceHandler(sources *services.SourceService, generator *services.GeneratorService) *SourceHandler {
	return &SourceHandler{sources: sources, generator: generator}
}

func sourceIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	source, err := h.sources.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if sources == nil {
		sources = []*models.ContentSource{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	source, err := h.sources.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	if err := h.sources.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *SourceHandler) Extract(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	source, job, err := h.sources.Extract(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{"source": source}
	if job != nil {
		resp["job_id"] = job.ID
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *SourceHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	history, err := h.sources.History(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []*models.ProcessingHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

func (h *SourceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	result, err := h.generator.Generate(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SourceHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := h.generator.Chat(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

func (h *SourceHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := sourceIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	content, err := h.generator.GetLatest(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}
