package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/radiancemd/inventory-backend/pkg/database"
	"github.com/radiancemd/inventory-backend/pkg/errors"
)

// LotStatus is the closed set of lot states
type LotStatus string

const (
	LotAvailable  LotStatus = "available"
	LotQuarantine LotStatus = "quarantine"
	LotExpired    LotStatus = "expired"
	LotDepleted   LotStatus = "depleted"
)

// InventoryLot represents one received batch of a product at one location.
// Quantity fields are guarded by the invariant
// 0 <= available <= current <= initial; all mutation goes through the
// repository's optimistic-concurrency operations.
type InventoryLot struct {
	ID         string `db:"id" json:"id"`
	ProductID  string `db:"product_id" json:"product_id"`
	LocationID string `db:"location_id" json:"location_id"`
	LotNumber  string `db:"lot_number" json:"lot_number"`

	ManufacturingDate *time.Time `db:"manufacturing_date" json:"manufacturing_date,omitempty"`
	ExpirationDate    time.Time  `db:"expiration_date" json:"expiration_date"`
	ReceivedDate      time.Time  `db:"received_date" json:"received_date"`
	OpenedDate        *time.Time `db:"opened_date" json:"opened_date,omitempty"`

	InitialQuantity  int `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity  int `db:"current_quantity" json:"current_quantity"`
	ReservedQuantity int `db:"reserved_quantity" json:"reserved_quantity"`

	Status LotStatus `db:"status" json:"status"`

	VendorID        *string  `db:"vendor_id" json:"vendor_id,omitempty"`
	PurchaseOrderID *string  `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	InvoiceNumber   *string  `db:"invoice_number" json:"invoice_number,omitempty"`
	PurchaseCost    *float64 `db:"purchase_cost" json:"purchase_cost,omitempty"`
	QualityNotes    *string  `db:"quality_notes" json:"quality_notes,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	Version   int       `db:"version" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableQuantity returns the quantity free for selection
func (l *InventoryLot) AvailableQuantity() int {
	return l.CurrentQuantity - l.ReservedQuantity
}

// UnitCost returns the proportional per-unit cost basis of the lot.
// Returns 0 when the lot has no recorded purchase cost.
func (l *InventoryLot) UnitCost() float64 {
	if l.PurchaseCost == nil || l.InitialQuantity == 0 {
		return 0
	}
	return *l.PurchaseCost / float64(l.InitialQuantity)
}

// IsExpired reports whether the lot's expiration date has passed
func (l *InventoryLot) IsExpired(now time.Time) bool {
	return l.ExpirationDate.Before(now)
}

// IsOpen reports whether the lot is the in-use open unit
func (l *InventoryLot) IsOpen() bool {
	return l.OpenedDate != nil
}

// LotRepository is the persistence layer of the lot ledger. It owns the
// optimistic-concurrency discipline: every quantity mutation checks the
// version column and callers retry on conflict.
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot. Lot numbers are unique per product+location;
// collisions surface as a duplicate lot error.
func (r *LotRepository) Create(ctx context.Context, lot *InventoryLot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if lot.Status == "" {
		lot.Status = LotAvailable
	}

	query := `
		INSERT INTO inventory_lots (
			id, product_id, location_id, lot_number, manufacturing_date, expiration_date,
			received_date, initial_quantity, current_quantity, reserved_quantity, status,
			vendor_id, purchase_order_id, invoice_number, purchase_cost, quality_notes,
			created_by, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)
		RETURNING version, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.LocationID, lot.LotNumber, lot.ManufacturingDate,
		lot.ExpirationDate, lot.ReceivedDate, lot.InitialQuantity, lot.CurrentQuantity,
		lot.ReservedQuantity, lot.Status, lot.VendorID, lot.PurchaseOrderID,
		lot.InvoiceNumber, lot.PurchaseCost, lot.QualityNotes, lot.CreatedBy,
	).Scan(&lot.Version, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			if errors.Is(appErr, errors.ErrDuplicateLot) {
				return errors.DuplicateLot(lot.LotNumber)
			}
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*InventoryLot, error) {
	var lot InventoryLot
	query := `SELECT * FROM inventory_lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// ListAvailable lists lots eligible for selection: available status,
// positive available quantity, not past expiration. Open units sort first,
// then earliest expiration, then receipt order.
func (r *LotRepository) ListAvailable(ctx context.Context, productID, locationID string) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE product_id = $1 AND location_id = $2
		AND status = 'available'
		AND current_quantity - reserved_quantity > 0
		AND expiration_date >= NOW()
		ORDER BY (opened_date IS NULL), opened_date DESC, expiration_date, created_at
	`
	if err := r.db.SelectContext(ctx, &lots, query, productID, locationID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListByProduct lists all lots for a product at a location, including
// depleted and expired lots retained for audit.
func (r *LotRepository) ListByProduct(ctx context.Context, productID, locationID string) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE product_id = $1 AND location_id = $2
		ORDER BY expiration_date, created_at
	`
	if err := r.db.SelectContext(ctx, &lots, query, productID, locationID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ApplyDeduction decrements a lot's quantity with an optimistic version
// check. The update only lands if the lot is still available, still at the
// expected version, and still holds enough free quantity; otherwise the
// failure cause is classified against the lot's current state.
func (r *LotRepository) ApplyDeduction(ctx context.Context, lotID string, quantity, version int) (*InventoryLot, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	var lot InventoryLot
	query := `
		UPDATE inventory_lots
		SET current_quantity = current_quantity - $2,
			status = CASE WHEN current_quantity - $2 = 0 THEN 'depleted' ELSE status END,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $3
		AND status = 'available'
		AND current_quantity - reserved_quantity >= $2
		RETURNING *
	`
	err := r.db.GetContext(ctx, &lot, query, lotID, quantity, version)
	if err == nil {
		return &lot, nil
	}
	if err != sql.ErrNoRows {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return nil, r.classifyConflict(ctx, lotID, quantity, version)
}

// ApplyAddition increments a lot's quantity for returns and corrections.
// Depleted lots are only reactivated with an explicit override; expired
// lots are never reactivated.
func (r *LotRepository) ApplyAddition(ctx context.Context, lotID string, quantity, version int, reactivate bool) (*InventoryLot, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	current, err := r.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if current.Status == LotExpired {
		return nil, errors.Conflict("cannot add stock to an expired lot")
	}
	if current.Status == LotDepleted && !reactivate {
		return nil, errors.Conflict("lot is depleted; reactivation requires an explicit override")
	}
	if current.Status == LotQuarantine {
		return nil, errors.LotQuarantined(lotID)
	}
	if current.CurrentQuantity+quantity > current.InitialQuantity {
		return nil, errors.BadRequest("addition would exceed the lot's initial quantity")
	}

	var lot InventoryLot
	query := `
		UPDATE inventory_lots
		SET current_quantity = current_quantity + $2,
			status = 'available',
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $3
		AND status IN ('available', 'depleted')
		AND current_quantity + $2 <= initial_quantity
		RETURNING *
	`
	err = r.db.GetContext(ctx, &lot, query, lotID, quantity, version)
	if err == nil {
		return &lot, nil
	}
	if err != sql.ErrNoRows {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return nil, errors.ConcurrencyConflict(lotID)
}

// SetQuarantine toggles a manual quarantine hold on a lot. Releasing the
// hold returns the lot to available (or depleted when empty).
func (r *LotRepository) SetQuarantine(ctx context.Context, lotID string, quarantined bool, userID string) (*InventoryLot, error) {
	var lot InventoryLot
	var query string
	if quarantined {
		query = `
			UPDATE inventory_lots
			SET status = 'quarantine', updated_by = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND status IN ('available', 'quarantine')
			RETURNING *
		`
	} else {
		query = `
			UPDATE inventory_lots
			SET status = CASE WHEN current_quantity = 0 THEN 'depleted' ELSE 'available' END,
				updated_by = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND status = 'quarantine'
			RETURNING *
		`
	}

	err := r.db.GetContext(ctx, &lot, query, lotID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, r.quarantineConflict(ctx, lotID, quarantined)
		}
		return nil, err
	}
	return &lot, nil
}

// MarkOpened flags a lot as the open in-use unit for its product+location.
// Any previously open lot for the same product+location is closed first so
// at most one open unit exists per partition.
func (r *LotRepository) MarkOpened(ctx context.Context, lotID string, openedAt time.Time, userID string) (*InventoryLot, error) {
	lot, err := r.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status != LotAvailable {
		return nil, errors.Conflict("only an available lot can be opened")
	}

	clearQuery := `
		UPDATE inventory_lots
		SET opened_date = NULL, version = version + 1, updated_at = NOW()
		WHERE product_id = $1 AND location_id = $2 AND opened_date IS NOT NULL AND id <> $3
	`
	if _, err := r.db.ExecContext(ctx, clearQuery, lot.ProductID, lot.LocationID, lotID); err != nil {
		return nil, err
	}

	var updated InventoryLot
	query := `
		UPDATE inventory_lots
		SET opened_date = $2, updated_by = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'available'
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &updated, query, lotID, openedAt, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ConcurrencyConflict(lotID)
		}
		return nil, err
	}
	return &updated, nil
}

// MarkExpired transitions an available lot past its expiration date to
// expired. Quarantined lots keep their hold; the sweep revisits them.
func (r *LotRepository) MarkExpired(ctx context.Context, lotID string) (*InventoryLot, error) {
	var lot InventoryLot
	query := `
		UPDATE inventory_lots
		SET status = 'expired', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'available' AND expiration_date < NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &lot, query, lotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ConcurrencyConflict(lotID)
		}
		return nil, err
	}
	return &lot, nil
}

// ListExpiring lists available lots with stock expiring within the window
func (r *LotRepository) ListExpiring(ctx context.Context, withinDays int) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE status = 'available' AND current_quantity > 0
		AND expiration_date <= NOW() + INTERVAL '1 day' * $1
		AND expiration_date >= NOW()
		ORDER BY expiration_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, withinDays); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListExpired lists lots still marked available but past expiration
func (r *LotRepository) ListExpired(ctx context.Context) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE status = 'available' AND expiration_date < NOW()
		ORDER BY expiration_date
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}

// classifyConflict reloads a lot after a failed conditional update and maps
// the current state to the matching domain error.
func (r *LotRepository) classifyConflict(ctx context.Context, lotID string, quantity, version int) error {
	lot, err := r.GetByID(ctx, lotID)
	if err != nil {
		return err
	}

	switch {
	case lot.Status == LotQuarantine:
		return errors.LotQuarantined(lotID)
	case lot.Status != LotAvailable:
		// Expired or depleted since planning
		return errors.ConcurrencyConflict(lotID)
	case lot.AvailableQuantity() < quantity:
		return errors.InsufficientQuantity(lotID, quantity, lot.AvailableQuantity())
	case lot.Version != version:
		return errors.ConcurrencyConflict(lotID)
	default:
		return errors.ConcurrencyConflict(lotID)
	}
}

func (r *LotRepository) quarantineConflict(ctx context.Context, lotID string, quarantined bool) error {
	lot, err := r.GetByID(ctx, lotID)
	if err != nil {
		return err
	}
	if quarantined {
		return errors.Conflict("lot cannot be quarantined in status " + string(lot.Status))
	}
	return errors.Conflict("lot is not under quarantine")
}
