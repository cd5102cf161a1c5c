package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/radiancemd/inventory-backend/pkg/database"
	"github.com/radiancemd/inventory-backend/pkg/errors"
)

// AlertType classifies inventory alerts
type AlertType string

const (
	AlertLowStock     AlertType = "low_stock"
	AlertCriticalLow  AlertType = "critical_low"
	AlertOutOfStock   AlertType = "out_of_stock"
	AlertExpiringSoon AlertType = "expiring_soon"
	AlertExpired      AlertType = "expired"
)

// AlertSeverity ranks alert urgency
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus is the alert lifecycle state
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// InventoryAlert is one stock or expiry alert. At most one unresolved
// alert exists per type per product+location; lot-scoped expiry alerts
// additionally key on the lot.
type InventoryAlert struct {
	ID         string        `db:"id" json:"id"`
	AlertType  AlertType     `db:"alert_type" json:"alert_type"`
	Severity   AlertSeverity `db:"severity" json:"severity"`
	Status     AlertStatus   `db:"status" json:"status"`
	Title      string        `db:"title" json:"title"`
	Message    string        `db:"message" json:"message"`
	ProductID  string        `db:"product_id" json:"product_id"`
	LotID      *string       `db:"lot_id" json:"lot_id,omitempty"`
	LocationID string        `db:"location_id" json:"location_id"`

	// Threshold crossed and the measured value at creation time, so
	// consumers need not parse the message text. Stock alerts carry
	// quantities, expiry alerts carry days until expiration.
	ThresholdValue *int `db:"threshold_value" json:"threshold_value,omitempty"`
	CurrentValue   *int `db:"current_value" json:"current_value,omitempty"`

	NotificationSent bool `db:"notification_sent" json:"notification_sent"`

	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy     *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	Status     AlertStatus
	AlertType  AlertType
	Severity   AlertSeverity
	ProductID  string
	LocationID string
	Limit      int
	Offset     int
}

// AlertRepository persists inventory alerts
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new alert
func (r *AlertRepository) Create(ctx context.Context, alert *InventoryAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = AlertActive
	}

	query := `
		INSERT INTO inventory_alerts (
			id, alert_type, severity, status, title, message,
			product_id, lot_id, location_id, threshold_value, current_value, notification_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.AlertType, alert.Severity, alert.Status, alert.Title,
		alert.Message, alert.ProductID, alert.LotID, alert.LocationID,
		alert.ThresholdValue, alert.CurrentValue, alert.NotificationSent,
	).Scan(&alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*InventoryAlert, error) {
	var alert InventoryAlert
	query := `SELECT * FROM inventory_alerts WHERE id = $1`
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &alert, nil
}

// List lists alerts matching the filter, newest first
func (r *AlertRepository) List(ctx context.Context, filter AlertFilter) ([]*InventoryAlert, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	addArg := func(clause string, value interface{}) {
		where += " AND " + clause + " = $" + strconv.Itoa(argPos)
		args = append(args, value)
		argPos++
	}

	if filter.Status != "" {
		addArg("status", filter.Status)
	}
	if filter.AlertType != "" {
		addArg("alert_type", filter.AlertType)
	}
	if filter.Severity != "" {
		addArg("severity", filter.Severity)
	}
	if filter.ProductID != "" {
		addArg("product_id", filter.ProductID)
	}
	if filter.LocationID != "" {
		addArg("location_id", filter.LocationID)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM inventory_alerts " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT * FROM inventory_alerts " + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(argPos) + " OFFSET $" + strconv.Itoa(argPos+1)
	args = append(args, limit, filter.Offset)

	var alerts []*InventoryAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// ListActive lists all unresolved alerts for a location
func (r *AlertRepository) ListActive(ctx context.Context, locationID string) ([]*InventoryAlert, error) {
	var alerts []*InventoryAlert
	query := `
		SELECT * FROM inventory_alerts
		WHERE location_id = $1 AND status IN ('active', 'acknowledged')
		ORDER BY severity = 'critical' DESC, created_at DESC
	`
	if err := r.db.SelectContext(ctx, &alerts, query, locationID); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetActiveStockAlert returns the unresolved stock-level alert for a
// product+location, or nil when none exists. Stock-level alert types are
// mutually exclusive per partition.
func (r *AlertRepository) GetActiveStockAlert(ctx context.Context, productID, locationID string) (*InventoryAlert, error) {
	var alert InventoryAlert
	query := `
		SELECT * FROM inventory_alerts
		WHERE product_id = $1 AND location_id = $2
		AND alert_type IN ('low_stock', 'critical_low', 'out_of_stock')
		AND status IN ('active', 'acknowledged')
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &alert, query, productID, locationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// ExistsActive reports whether an unresolved alert of the given type
// exists for the product+location (and lot, when lotID is non-nil).
func (r *AlertRepository) ExistsActive(ctx context.Context, alertType AlertType, productID string, lotID *string, locationID string) (bool, error) {
	var count int
	var err error
	if lotID != nil {
		query := `
			SELECT COUNT(*) FROM inventory_alerts
			WHERE alert_type = $1 AND product_id = $2 AND lot_id = $3 AND location_id = $4
			AND status IN ('active', 'acknowledged')
		`
		err = r.db.GetContext(ctx, &count, query, alertType, productID, *lotID, locationID)
	} else {
		query := `
			SELECT COUNT(*) FROM inventory_alerts
			WHERE alert_type = $1 AND product_id = $2 AND lot_id IS NULL AND location_id = $3
			AND status IN ('active', 'acknowledged')
		`
		err = r.db.GetContext(ctx, &count, query, alertType, productID, locationID)
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Acknowledge marks an active alert as acknowledged
func (r *AlertRepository) Acknowledge(ctx context.Context, id, userID string) (*InventoryAlert, error) {
	var alert InventoryAlert
	query := `
		UPDATE inventory_alerts
		SET status = 'acknowledged', acknowledged_by = $2, acknowledged_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &alert, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, r.lifecycleConflict(ctx, id)
		}
		return nil, err
	}
	return &alert, nil
}

// Resolve marks an unresolved alert as resolved. Auto-resolution passes
// "system" as the user.
func (r *AlertRepository) Resolve(ctx context.Context, id, userID string) (*InventoryAlert, error) {
	var alert InventoryAlert
	query := `
		UPDATE inventory_alerts
		SET status = 'resolved', resolved_by = $2, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'acknowledged')
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &alert, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, r.lifecycleConflict(ctx, id)
		}
		return nil, err
	}
	return &alert, nil
}

// MarkNotificationSent records that the alert notification was delivered
func (r *AlertRepository) MarkNotificationSent(ctx context.Context, id string) error {
	query := `UPDATE inventory_alerts SET notification_sent = true, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *AlertRepository) lifecycleConflict(ctx context.Context, id string) error {
	alert, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.Conflict("alert is already " + string(alert.Status))
}
