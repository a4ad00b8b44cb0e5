package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/tonglian-sync-backend/internal/api/dto"
	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
)

// MappingsHandler manages the product mapping configuration.
type MappingsHandler struct {
	*Base
	matcher *matcher.Matcher
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(m *matcher.Matcher) *MappingsHandler {
	return &MappingsHandler{
		Base:    NewBase(nil),
		matcher: m,
	}
}

// List handles GET /api/mappings - returns all product mappings.
func (h *MappingsHandler) List(w http.ResponseWriter, r *http.Request) {
	set := h.matcher.Set()

	response := dto.MappingListResponse{
		Mappings: make([]dto.MappingResponse, 0, len(set.Mappings)),
		Count:    len(set.Mappings),
	}
	for _, mapping := range set.Mappings {
		response.Mappings = append(response.Mappings, toMappingResponse(mapping))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Add handles POST /api/mappings - creates a new product mapping.
func (h *MappingsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req dto.AddMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.ID == "" || req.Name == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("id and name are required"))
		return
	}

	mapping := matcher.Mapping{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		ExactAmount:  req.ExactAmount,
		AmountRange:  req.AmountRange,
		DefaultPrice: req.DefaultPrice,
	}

	if err := h.matcher.AddMapping(mapping); err != nil {
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusCreated, toMappingResponse(mapping))
}

// Remove handles DELETE /api/mappings/{id} - removes a product mapping.
func (h *MappingsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("mapping ID is required"))
		return
	}

	removed, err := h.matcher.RemoveMapping(id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if !removed {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("mapping"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/mappings/stats - summarizes the configuration.
func (h *MappingsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.matcher.Stats())
}

func toMappingResponse(mapping matcher.Mapping) dto.MappingResponse {
	return dto.MappingResponse{
		ID:           mapping.ID,
		Name:         mapping.Name,
		Description:  mapping.Description,
		Category:     mapping.Category,
		ExactAmount:  mapping.ExactAmount,
		AmountRange:  mapping.AmountRange,
		DefaultPrice: mapping.DefaultPrice,
	}
}
