package handlers

import (
	"net/http"
	"strconv"

	"repurpose-backend/internal/middleware"
	"repurpose-backend/internal/models"
	"repurpose-backend/internal/services"
)

type UsageHandler struct {
	usage *services.UsageService
}

func NewUsageHandler(usage *services.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.usage.Balance(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.usage.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []*models.UsageRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": balance,
		"records": records,
	})
}
