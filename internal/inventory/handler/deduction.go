package handler

import (
	"net/http"

	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/httputil"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// DeductionHandler handles automatic stock deduction endpoints
type DeductionHandler struct {
	deductions *service.DeductionService
	logger     *logger.Logger
}

// NewDeductionHandler creates a new deduction handler
func NewDeductionHandler(deductions *service.DeductionService, log *logger.Logger) *DeductionHandler {
	return &DeductionHandler{
		deductions: deductions,
		logger:     log,
	}
}

// Deduct executes a deduction for clinical usage
func (h *DeductionHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	var input service.DeductionInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.deductions.Deduct(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// DeductBatch executes deductions for every product used in a treatment.
// Products are processed independently; the response reports per-product
// outcomes so one shortage does not block the others.
func (h *DeductionHandler) DeductBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deductions []service.DeductionInput `json:"deductions" validate:"required,min=1,dive"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	userID := httputil.GetUserID(r.Context())

	type outcome struct {
		ProductID string                   `json:"product_id"`
		Result    *service.DeductionResult `json:"result,omitempty"`
		Error     string                   `json:"error,omitempty"`
	}

	outcomes := make([]outcome, 0, len(req.Deductions))
	for _, input := range req.Deductions {
		result, err := h.deductions.Deduct(r.Context(), input, userID)
		if err != nil {
			h.logger.Warn().
				Err(err).
				Str("product_id", input.ProductID).
				Msg("batch deduction item failed")
			outcomes = append(outcomes, outcome{ProductID: input.ProductID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, outcome{ProductID: input.ProductID, Result: result})
	}

	httputil.JSON(w, http.StatusOK, outcomes)
}
