package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/httputil"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// LevelHandler handles stock level and valuation endpoints
type LevelHandler struct {
	levels *service.LevelService
	logger *logger.Logger
}

// NewLevelHandler creates a new level handler
func NewLevelHandler(levels *service.LevelService, log *logger.Logger) *LevelHandler {
	return &LevelHandler{
		levels: levels,
		logger: log,
	}
}

// Get computes the stock level for a product at a location
func (h *LevelHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	level, err := h.levels.GetLevel(r.Context(), productID, locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, level)
}

// List computes stock levels for all tracked products at a location
func (h *LevelHandler) List(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	levels, err := h.levels.ListLevels(r.Context(), locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

// ListBelowReorder lists products needing reorder, worst first
func (h *LevelHandler) ListBelowReorder(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	levels, err := h.levels.ListBelowReorder(r.Context(), locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

// Valuation computes the cost-basis valuation of stock at a location
func (h *LevelHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	report, err := h.levels.Valuation(r.Context(), locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
