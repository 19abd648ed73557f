package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/service"
)

// TurnLister reads archived turns
type TurnLister interface {
	Recent(ctx context.Context, sessionID string, size int) ([]service.TurnDocument, error)
}

// TurnHistoryResponse is returned by GET /api/v1/sessions/{id}/turns
type TurnHistoryResponse struct {
	Status    string                 `json:"status"`
	SessionID string                 `json:"session_id"`
	Count     int                    `json:"count"`
	Turns     []service.TurnDocument `json:"turns"`
}

// HistoryHandler serves archived turns from Elasticsearch
type HistoryHandler struct {
	archive TurnLister
}

func NewHistoryHandler(archive TurnLister) *HistoryHandler {
	return &HistoryHandler{archive: archive}
}

// Turns handles GET /api/v1/sessions/{id}/turns?size=N
func (h *HistoryHandler) Turns(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		models.WriteError(w, http.StatusServiceUnavailable, "turn archive is not configured")
		return
	}
	size := 20
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			models.WriteError(w, http.StatusBadRequest, "size must be between 1 and 100")
			return
		}
		size = n
	}

	id := chi.URLParam(r, "id")
	turns, err := h.archive.Recent(r.Context(), id, size)
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "archive query failed: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, TurnHistoryResponse{
		Status:    "success",
		SessionID: id,
		Count:     len(turns),
		Turns:     turns,
	})
}
