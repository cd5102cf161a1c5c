package service

import (
	"context"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
)

// LotStore is the lot ledger persistence the services depend on
type LotStore interface {
	Create(ctx context.Context, lot *repository.InventoryLot) error
	GetByID(ctx context.Context, id string) (*repository.InventoryLot, error)
	ListAvailable(ctx context.Context, productID, locationID string) ([]*repository.InventoryLot, error)
	ListByProduct(ctx context.Context, productID, locationID string) ([]*repository.InventoryLot, error)
	ApplyDeduction(ctx context.Context, lotID string, quantity, version int) (*repository.InventoryLot, error)
	ApplyAddition(ctx context.Context, lotID string, quantity, version int, reactivate bool) (*repository.InventoryLot, error)
	SetQuarantine(ctx context.Context, lotID string, quarantined bool, userID string) (*repository.InventoryLot, error)
	MarkOpened(ctx context.Context, lotID string, openedAt time.Time, userID string) (*repository.InventoryLot, error)
	MarkExpired(ctx context.Context, lotID string) (*repository.InventoryLot, error)
	ListExpiring(ctx context.Context, withinDays int) ([]*repository.InventoryLot, error)
	ListExpired(ctx context.Context) ([]*repository.InventoryLot, error)
}

// ProductStore provides catalog reads
type ProductStore interface {
	GetByID(ctx context.Context, id string) (*repository.Product, error)
	GetAllActive(ctx context.Context) ([]*repository.Product, error)
}

// TransactionStore persists the append-only movement log
type TransactionStore interface {
	Create(ctx context.Context, txn *repository.InventoryTransaction) error
	ListByLot(ctx context.Context, lotID string) ([]*repository.InventoryTransaction, error)
	ListByProduct(ctx context.Context, productID, locationID string, from, to time.Time) ([]*repository.InventoryTransaction, error)
	ListByPatient(ctx context.Context, patientID string) ([]*repository.InventoryTransaction, error)
	ListPatientsForLot(ctx context.Context, lotID string) ([]string, error)
}

// AlertStore persists inventory alerts
type AlertStore interface {
	Create(ctx context.Context, alert *repository.InventoryAlert) error
	GetByID(ctx context.Context, id string) (*repository.InventoryAlert, error)
	List(ctx context.Context, filter repository.AlertFilter) ([]*repository.InventoryAlert, int, error)
	ListActive(ctx context.Context, locationID string) ([]*repository.InventoryAlert, error)
	GetActiveStockAlert(ctx context.Context, productID, locationID string) (*repository.InventoryAlert, error)
	ExistsActive(ctx context.Context, alertType repository.AlertType, productID string, lotID *string, locationID string) (bool, error)
	Acknowledge(ctx context.Context, id, userID string) (*repository.InventoryAlert, error)
	Resolve(ctx context.Context, id, userID string) (*repository.InventoryAlert, error)
	MarkNotificationSent(ctx context.Context, id string) error
}

// EventPublisher sends domain events to interested services. Publishing is
// best effort; a nil publisher disables it.
type EventPublisher interface {
	PublishLotReceived(ctx context.Context, lot *repository.InventoryLot, receivedBy string)
	PublishStockDeducted(ctx context.Context, result *DeductionResult, performedBy string)
	PublishStockAdjusted(ctx context.Context, lot *repository.InventoryLot, adjustment int, reason, performedBy string)
	PublishAlertGenerated(ctx context.Context, alert *repository.InventoryAlert)
}
