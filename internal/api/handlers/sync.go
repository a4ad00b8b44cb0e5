package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eshaffer321/tonglian-sync-backend/internal/api/dto"
	appsync "github.com/eshaffer321/tonglian-sync-backend/internal/application/sync"
)

// SyncRunner executes a single sync pass on demand.
// Satisfied by the application poller.
type SyncRunner interface {
	RunOnce(ctx context.Context, opts appsync.Options) (*appsync.Result, error)
}

// SyncHandler triggers manual sync passes.
type SyncHandler struct {
	*Base
	runner SyncRunner
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(runner SyncRunner) *SyncHandler {
	return &SyncHandler{
		Base:   NewBase(nil),
		runner: runner,
	}
}

// Trigger handles POST /api/sync - runs one fetch-match-sync pass now.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req dto.TriggerSyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
			return
		}
	}

	result, err := h.runner.RunOnce(r.Context(), appsync.Options{
		LookbackDays: req.LookbackDays,
		MaxOrders:    req.MaxOrders,
		Force:        req.Force,
	})
	if err != nil {
		if errors.Is(err, appsync.ErrLoginRequired) {
			h.WriteError(w, http.StatusConflict, dto.LoginRequiredError())
			return
		}
		h.WriteError(w, http.StatusBadGateway, dto.NewAPIError("sync_failed", err.Error()))
		return
	}

	response := dto.SyncResultResponse{
		OrdersFound:  result.OrdersFound,
		SyncedCount:  result.SyncedCount,
		SkippedCount: result.SkippedCount,
		ErrorCount:   result.ErrorCount,
		Strategy:     string(result.Strategy),
		Degraded:     result.Degraded,
	}
	for _, syncErr := range result.Errors {
		response.Errors = append(response.Errors, syncErr.Error())
	}

	h.WriteJSON(w, http.StatusOK, response)
}
