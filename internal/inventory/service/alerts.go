package service

import (
	"context"
	"fmt"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// systemActor marks lifecycle changes made by automation rather than a user
const systemActor = "system"

// AlertEngine evaluates stock levels and lot expiry against alert rules.
// Deduplication rule: at most one unresolved stock-level alert exists per
// product+location; a change in computed status supersedes the old alert.
// Lot expiry alerts key on the lot and fire once per type.
type AlertEngine struct {
	alerts    AlertStore
	publisher EventPublisher
	logger    *logger.Logger

	expiringSoonDays  int
	expiryWarningDays int
}

// NewAlertEngine creates a new alert engine
func NewAlertEngine(alerts AlertStore, publisher EventPublisher, expiringSoonDays, expiryWarningDays int, log *logger.Logger) *AlertEngine {
	return &AlertEngine{
		alerts:            alerts,
		publisher:         publisher,
		logger:            log.WithComponent("alert-engine"),
		expiringSoonDays:  expiringSoonDays,
		expiryWarningDays: expiryWarningDays,
	}
}

// EvaluateStockLevel reconciles the active stock alert for a product with
// its freshly computed level. Returns the alert that is active after
// reconciliation, or nil when stock is healthy.
func (e *AlertEngine) EvaluateStockLevel(ctx context.Context, product *repository.Product, level *StockLevel) (*repository.InventoryAlert, error) {
	wantType, wantSeverity := stockAlertFor(level.Status)

	existing, err := e.alerts.GetActiveStockAlert(ctx, level.ProductID, level.LocationID)
	if err != nil {
		return nil, err
	}

	if wantType == "" {
		if existing != nil {
			if _, err := e.alerts.Resolve(ctx, existing.ID, systemActor); err != nil {
				return nil, err
			}
			e.logger.Info().
				Str("alert_id", existing.ID).
				Str("product_id", level.ProductID).
				Msg("stock alert auto-resolved")
		}
		return nil, nil
	}

	if existing != nil {
		if existing.AlertType == wantType {
			return existing, nil
		}
		// Status changed; supersede the stale alert
		if _, err := e.alerts.Resolve(ctx, existing.ID, systemActor); err != nil {
			return nil, err
		}
	}

	threshold := stockAlertThreshold(wantType, product)
	available := level.TotalAvailable
	alert := &repository.InventoryAlert{
		AlertType:      wantType,
		Severity:       wantSeverity,
		Status:         repository.AlertActive,
		Title:          stockAlertTitle(wantType, product.Name),
		Message:        stockAlertMessage(wantType, product, level),
		ProductID:      level.ProductID,
		LocationID:     level.LocationID,
		ThresholdValue: &threshold,
		CurrentValue:   &available,
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("alert_id", alert.ID).
		Str("alert_type", string(alert.AlertType)).
		Str("product_id", level.ProductID).
		Int("available", level.TotalAvailable).
		Msg("stock alert generated")

	if e.publisher != nil {
		e.publisher.PublishAlertGenerated(ctx, alert)
	}
	return alert, nil
}

// EvaluateLotExpiry creates the expiry alert for a lot if one is due and
// not already active. now is injectable for tests.
func (e *AlertEngine) EvaluateLotExpiry(ctx context.Context, product *repository.Product, lot *repository.InventoryLot, now time.Time) (*repository.InventoryAlert, error) {
	var (
		alertType repository.AlertType
		severity  repository.AlertSeverity
		message   string
		threshold int
	)

	daysLeft := int(lot.ExpirationDate.Sub(now).Hours() / 24)
	switch {
	case lot.IsExpired(now):
		alertType = repository.AlertExpired
		severity = repository.SeverityCritical
		message = fmt.Sprintf("Lot %s of %s expired on %s with %d units remaining",
			lot.LotNumber, product.Name, lot.ExpirationDate.Format("2006-01-02"), lot.CurrentQuantity)
	case daysLeft <= e.expiringSoonDays:
		alertType = repository.AlertExpiringSoon
		severity = repository.SeverityInfo
		threshold = e.expiringSoonDays
		if daysLeft <= e.expiryWarningDays {
			severity = repository.SeverityWarning
			threshold = e.expiryWarningDays
		}
		message = fmt.Sprintf("Lot %s of %s expires in %d days (%d units remaining)",
			lot.LotNumber, product.Name, daysLeft, lot.CurrentQuantity)
	default:
		return nil, nil
	}

	exists, err := e.alerts.ExistsActive(ctx, alertType, lot.ProductID, &lot.ID, lot.LocationID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	alert := &repository.InventoryAlert{
		AlertType:      alertType,
		Severity:       severity,
		Status:         repository.AlertActive,
		Title:          fmt.Sprintf("%s: lot %s", expiryAlertTitle(alertType), lot.LotNumber),
		Message:        message,
		ProductID:      lot.ProductID,
		LotID:          &lot.ID,
		LocationID:     lot.LocationID,
		ThresholdValue: &threshold,
		CurrentValue:   &daysLeft,
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("alert_id", alert.ID).
		Str("alert_type", string(alertType)).
		Str("lot_id", lot.ID).
		Int("days_left", daysLeft).
		Msg("expiry alert generated")

	if e.publisher != nil {
		e.publisher.PublishAlertGenerated(ctx, alert)
	}
	return alert, nil
}

// stockAlertFor maps a stock status to its alert type and severity.
// Healthy stock maps to no alert.
func stockAlertFor(status StockStatus) (repository.AlertType, repository.AlertSeverity) {
	switch status {
	case StatusOutOfStock:
		return repository.AlertOutOfStock, repository.SeverityCritical
	case StatusCritical:
		return repository.AlertCriticalLow, repository.SeverityCritical
	case StatusLowStock:
		return repository.AlertLowStock, repository.SeverityWarning
	default:
		return "", ""
	}
}

// stockAlertThreshold is the quantity boundary the available stock crossed
func stockAlertThreshold(alertType repository.AlertType, product *repository.Product) int {
	switch alertType {
	case repository.AlertOutOfStock:
		return 0
	case repository.AlertCriticalLow:
		return product.MinStockLevel
	default:
		return product.ReorderPoint
	}
}

func stockAlertTitle(alertType repository.AlertType, productName string) string {
	switch alertType {
	case repository.AlertOutOfStock:
		return fmt.Sprintf("Out of stock: %s", productName)
	case repository.AlertCriticalLow:
		return fmt.Sprintf("Critically low: %s", productName)
	default:
		return fmt.Sprintf("Low stock: %s", productName)
	}
}

func stockAlertMessage(alertType repository.AlertType, product *repository.Product, level *StockLevel) string {
	switch alertType {
	case repository.AlertOutOfStock:
		return fmt.Sprintf("%s has no available stock at this location. Reorder quantity: %d.",
			product.Name, product.ReorderQuantity)
	case repository.AlertCriticalLow:
		return fmt.Sprintf("%s has %d units available, at or below the minimum stock level of %d. Reorder quantity: %d.",
			product.Name, level.TotalAvailable, product.MinStockLevel, product.ReorderQuantity)
	default:
		return fmt.Sprintf("%s has %d units available, at or below the reorder point of %d. Reorder quantity: %d.",
			product.Name, level.TotalAvailable, product.ReorderPoint, product.ReorderQuantity)
	}
}

func expiryAlertTitle(alertType repository.AlertType) string {
	if alertType == repository.AlertExpired {
		return "Expired"
	}
	return "Expiring soon"
}

// AlertService exposes alert queries and lifecycle operations
type AlertService struct {
	alerts LotAlertLister
	logger *logger.Logger
}

// LotAlertLister is the subset of AlertStore the query service needs
type LotAlertLister interface {
	GetByID(ctx context.Context, id string) (*repository.InventoryAlert, error)
	List(ctx context.Context, filter repository.AlertFilter) ([]*repository.InventoryAlert, int, error)
	ListActive(ctx context.Context, locationID string) ([]*repository.InventoryAlert, error)
	Acknowledge(ctx context.Context, id, userID string) (*repository.InventoryAlert, error)
	Resolve(ctx context.Context, id, userID string) (*repository.InventoryAlert, error)
	MarkNotificationSent(ctx context.Context, id string) error
}

// NewAlertService creates a new alert service
func NewAlertService(alerts LotAlertLister, log *logger.Logger) *AlertService {
	return &AlertService{
		alerts: alerts,
		logger: log.WithComponent("alert-service"),
	}
}

// Get returns a single alert
func (s *AlertService) Get(ctx context.Context, id string) (*repository.InventoryAlert, error) {
	return s.alerts.GetByID(ctx, id)
}

// List lists alerts matching the filter
func (s *AlertService) List(ctx context.Context, filter repository.AlertFilter) ([]*repository.InventoryAlert, int, error) {
	return s.alerts.List(ctx, filter)
}

// ListActive lists unresolved alerts for a location
func (s *AlertService) ListActive(ctx context.Context, locationID string) ([]*repository.InventoryAlert, error) {
	return s.alerts.ListActive(ctx, locationID)
}

// Acknowledge marks an alert as seen by a user
func (s *AlertService) Acknowledge(ctx context.Context, id, userID string) (*repository.InventoryAlert, error) {
	alert, err := s.alerts.Acknowledge(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("alert_id", id).Str("user_id", userID).Msg("alert acknowledged")
	return alert, nil
}

// Resolve closes an alert manually
func (s *AlertService) Resolve(ctx context.Context, id, userID string) (*repository.InventoryAlert, error) {
	alert, err := s.alerts.Resolve(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("alert_id", id).Str("user_id", userID).Msg("alert resolved")
	return alert, nil
}

// MarkNotified records that the notification service delivered the alert,
// so it is not sent again.
func (s *AlertService) MarkNotified(ctx context.Context, id string) (*repository.InventoryAlert, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.NotificationSent {
		return alert, nil
	}
	if err := s.alerts.MarkNotificationSent(ctx, id); err != nil {
		return nil, err
	}
	alert.NotificationSent = true
	s.logger.Info().Str("alert_id", id).Msg("alert notification recorded")
	return alert, nil
}
