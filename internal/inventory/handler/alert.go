package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/httputil"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// AlertHandler handles alert query and lifecycle endpoints
type AlertHandler struct {
	alerts *service.AlertService
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: log,
	}
}

// List lists alerts matching query filters
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.AlertFilter{
		Status:     repository.AlertStatus(q.Get("status")),
		AlertType:  repository.AlertType(q.Get("type")),
		Severity:   repository.AlertSeverity(q.Get("severity")),
		ProductID:  q.Get("product_id"),
		LocationID: q.Get("location_id"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 200 {
			httputil.Error(w, errors.BadRequest("limit must be between 1 and 200"))
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			httputil.Error(w, errors.BadRequest("offset must be a non-negative integer"))
			return
		}
		filter.Offset = offset
	}

	alerts, total, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, &httputil.Meta{
		Total: int64(total),
	})
}

// ListActive lists unresolved alerts for a location
func (h *AlertHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		httputil.Error(w, errors.BadRequest("location_id query parameter is required"))
		return
	}

	alerts, err := h.alerts.ListActive(r.Context(), locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// Get gets an alert by ID
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Acknowledge marks an alert as seen
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.Acknowledge(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Resolve closes an alert manually
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.Resolve(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// MarkNotified is called by the notification service after delivery
func (h *AlertHandler) MarkNotified(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.MarkNotified(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
