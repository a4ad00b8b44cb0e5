package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/tonglian-sync-backend/internal/api/dto"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

// OrdersHandler serves the local sync ledger.
type OrdersHandler struct {
	*Base
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(repo storage.Repository) *OrdersHandler {
	return &OrdersHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/orders - returns recent ledger records.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 50)

	records, err := h.repo.ListRecords(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.OrderListResponse{
		Orders: make([]dto.OrderResponse, 0, len(records)),
		Count:  len(records),
	}
	for _, record := range records {
		response.Orders = append(response.Orders, toOrderResponse(record))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/orders/{id} - returns a single record by order ID.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("order ID is required"))
		return
	}

	record, err := h.repo.GetRecord(orderID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if record == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("order"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toOrderResponse(record))
}

// toOrderResponse converts a storage SyncRecord to an API response.
func toOrderResponse(record *storage.SyncRecord) dto.OrderResponse {
	products := make([]dto.ProductResponse, 0, len(record.Products))
	for _, p := range record.Products {
		products = append(products, dto.ProductResponse{
			Name:       p.Name,
			Category:   p.Category,
			Amount:     p.Amount,
			MatchType:  p.MatchType,
			Confidence: p.Confidence,
		})
	}

	return dto.OrderResponse{
		OrderID:      record.OrderID,
		Amount:       record.Amount,
		Status:       record.Status,
		MatchType:    record.MatchType,
		Confidence:   record.Confidence,
		Strategy:     record.Strategy,
		RemoteKey:    record.RemoteKey,
		ErrorMessage: record.ErrorMessage,
		SyncedAt:     record.SyncedAt.Format(time.RFC3339),
		Products:     products,
	}
}
