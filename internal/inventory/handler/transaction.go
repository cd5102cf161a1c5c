package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/httputil"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// TransactionHandler handles movement log query endpoints
type TransactionHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledger *service.LedgerService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledger,
		logger: log,
	}
}

// ListByProduct lists a product's movement log within a date range.
// Defaults to the last 30 days when no range is given.
func (h *TransactionHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("from must be a date in YYYY-MM-DD format"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("to must be a date in YYYY-MM-DD format"))
			return
		}
		// Inclusive end date
		to = parsed.AddDate(0, 0, 1)
	}

	txns, err := h.ledger.ProductHistory(r.Context(), productID, locationID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txns)
}

// ListByPatient lists treatment usage for a patient
func (h *TransactionHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	txns, err := h.ledger.PatientUsage(r.Context(), patientID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txns)
}
