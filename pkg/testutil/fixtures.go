package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a lot-tracked product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*repository.Product)) *repository.Product {
	seq := f.nextSeq()
	sku := fmt.Sprintf("SKU-%04d", seq)

	product := &repository.Product{
		ID:              uuid.New().String(),
		Name:            fmt.Sprintf("Test Product %d", seq),
		SKU:             &sku,
		Category:        "injectable",
		UnitType:        "unit",
		CostPrice:       10,
		UnitPrice:       25,
		ReorderPoint:    10,
		ReorderQuantity: 50,
		MinStockLevel:   5,
		TrackByLot:      true,
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(product)
	}
	return product
}

// WithThresholds sets reorder point and minimum stock level
func WithThresholds(reorderPoint, minStockLevel int) func(*repository.Product) {
	return func(p *repository.Product) {
		p.ReorderPoint = reorderPoint
		p.MinStockLevel = minStockLevel
	}
}

// Lot creates an available lot fixture with defaults
func (f *FixtureFactory) Lot(productID, locationID string, opts ...func(*repository.InventoryLot)) *repository.InventoryLot {
	seq := f.nextSeq()
	cost := 100.0
	now := time.Now()

	lot := &repository.InventoryLot{
		ID:              uuid.New().String(),
		ProductID:       productID,
		LocationID:      locationID,
		LotNumber:       fmt.Sprintf("LOT-%04d", seq),
		ExpirationDate:  now.AddDate(1, 0, 0),
		ReceivedDate:    now,
		InitialQuantity: 100,
		CurrentQuantity: 100,
		Status:          repository.LotAvailable,
		PurchaseCost:    &cost,
		CreatedBy:       "test-user",
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, opt := range opts {
		opt(lot)
	}
	return lot
}

// WithQuantity sets initial and current quantity
func WithQuantity(initial, current int) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.InitialQuantity = initial
		l.CurrentQuantity = current
	}
}

// WithExpiration sets the expiration date
func WithExpiration(t time.Time) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.ExpirationDate = t
	}
}

// WithOpened marks the lot as the open in-use unit
func WithOpened(t time.Time) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.OpenedDate = &t
	}
}

// WithStatus sets the lot status
func WithStatus(status repository.LotStatus) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.Status = status
	}
}

// WithLotNumber sets the lot number
func WithLotNumber(number string) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.LotNumber = number
	}
}

// WithPurchaseCost sets the lot's purchase cost
func WithPurchaseCost(cost float64) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.PurchaseCost = &cost
	}
}

// WithCreatedAt sets creation time, for receipt-order tiebreak scenarios
func WithCreatedAt(t time.Time) func(*repository.InventoryLot) {
	return func(l *repository.InventoryLot) {
		l.CreatedAt = t
	}
}
