package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/httputil"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// LotHandler handles lot lifecycle endpoints
type LotHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(ledger *service.LedgerService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		ledger: ledger,
		logger: log,
	}
}

// Receive receives a new lot into stock
func (h *LotHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var input service.ReceiveLotInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.ledger.ReceiveLot(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.ledger.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// ListByProduct lists lots for a product at a location
func (h *LotHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	lots, err := h.ledger.ListLots(r.Context(), productID, locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Adjust applies a manual stock correction to a lot
func (h *LotHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input service.AdjustmentInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	input.LotID = id
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.ledger.ApplyAdjustment(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Quarantine places or releases a quality hold on a lot
func (h *LotHandler) Quarantine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Quarantined bool   `json:"quarantined"`
		Reason      string `json:"reason" validate:"required,min=3"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.ledger.SetQuarantine(r.Context(), id, req.Quarantined, req.Reason, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Open marks a lot as the in-use open unit
func (h *LotHandler) Open(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.ledger.OpenLot(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// History returns a lot's full transaction history
func (h *LotHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txns, err := h.ledger.LotHistory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txns)
}

// RecallTrace lists patients exposed to a lot
func (h *LotHandler) RecallTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patients, err := h.ledger.RecallTrace(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"lot_id":   id,
		"patients": patients,
	})
}
