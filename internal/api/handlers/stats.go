package handlers

import (
	"net/http"

	"github.com/eshaffer321/tonglian-sync-backend/internal/api/dto"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

// StatsHandler serves aggregate ledger statistics.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatsResponse{
		TotalOrders:  stats.TotalOrders,
		SuccessCount: stats.SuccessCount,
		ErrorCount:   stats.ErrorCount,
		SkippedCount: stats.SkippedCount,
		TotalAmount:  stats.TotalAmount,
		TodaySynced:  stats.TodaySynced,
		LastSyncedAt: stats.LastSyncedAt,
	}

	h.WriteJSON(w, http.StatusOK, response)
}
