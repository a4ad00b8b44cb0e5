package handlers

import (
	"net/http"

	"github.com/eshaffer321/tonglian-sync-backend/internal/api/dto"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

// RunsHandler serves poll cycle history.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent sync runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.repo.ListSyncRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.SyncRunListResponse{
		Runs:  make([]dto.SyncRunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, dto.SyncRunResponse{
			ID:            run.ID,
			StartedAt:     run.StartedAt,
			CompletedAt:   run.CompletedAt,
			OrdersFound:   run.OrdersFound,
			OrdersSynced:  run.OrdersSynced,
			OrdersSkipped: run.OrdersSkipped,
			OrdersErrored: run.OrdersErrored,
			Status:        run.Status,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}
