package service

import (
	"context"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// StockStatus summarizes a product's aggregate stock position
type StockStatus string

const (
	StatusInStock    StockStatus = "in_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusCritical   StockStatus = "critical"
	StatusOutOfStock StockStatus = "out_of_stock"
)

// StockLevel is the derived stock position for one product at one location.
// It is recomputed from lots on demand, never stored.
type StockLevel struct {
	ProductID        string      `json:"product_id"`
	LocationID       string      `json:"location_id"`
	TotalQuantity    int         `json:"total_quantity"`
	TotalAvailable   int         `json:"total_available"`
	LotCount         int         `json:"lot_count"`
	Status           StockStatus `json:"status"`
	ReorderPoint     int         `json:"reorder_point"`
	MinStockLevel    int         `json:"min_stock_level"`
	ReorderQuantity  int         `json:"reorder_quantity"`
	TotalValue       float64     `json:"total_value"`
	TotalRetailValue float64     `json:"total_retail_value"`
	EarliestExpiry   *time.Time  `json:"earliest_expiry,omitempty"`
	OpenLotID        *string     `json:"open_lot_id,omitempty"`
}

// ComputeStockLevel derives the stock position from a product's lots.
// Only available, unexpired lots count toward quantity and valuation.
// Cost valuation is the proportional cost basis of the remaining units;
// retail valuation prices the available units at the product's unit price.
func ComputeStockLevel(product *repository.Product, locationID string, lots []*repository.InventoryLot, now time.Time) *StockLevel {
	level := &StockLevel{
		ProductID:       product.ID,
		LocationID:      locationID,
		ReorderPoint:    product.ReorderPoint,
		MinStockLevel:   product.MinStockLevel,
		ReorderQuantity: product.ReorderQuantity,
	}

	for _, lot := range lots {
		if lot.Status != repository.LotAvailable || lot.IsExpired(now) {
			continue
		}
		level.TotalQuantity += lot.CurrentQuantity
		level.TotalAvailable += lot.AvailableQuantity()
		level.LotCount++
		level.TotalValue += lot.UnitCost() * float64(lot.CurrentQuantity)

		if level.EarliestExpiry == nil || lot.ExpirationDate.Before(*level.EarliestExpiry) {
			exp := lot.ExpirationDate
			level.EarliestExpiry = &exp
		}
		if lot.IsOpen() && level.OpenLotID == nil {
			id := lot.ID
			level.OpenLotID = &id
		}
	}

	level.TotalRetailValue = float64(level.TotalAvailable) * product.UnitPrice

	switch {
	case level.TotalAvailable == 0:
		level.Status = StatusOutOfStock
	case level.TotalAvailable <= product.MinStockLevel:
		level.Status = StatusCritical
	case level.TotalAvailable <= product.ReorderPoint:
		level.Status = StatusLowStock
	default:
		level.Status = StatusInStock
	}

	return level
}

// LevelService answers stock level and valuation queries
type LevelService struct {
	lots     LotStore
	products ProductStore
	logger   *logger.Logger
}

// NewLevelService creates a new level service
func NewLevelService(lots LotStore, products ProductStore, log *logger.Logger) *LevelService {
	return &LevelService{
		lots:     lots,
		products: products,
		logger:   log.WithComponent("level-service"),
	}
}

// GetLevel computes the current stock level for a product at a location
func (s *LevelService) GetLevel(ctx context.Context, productID, locationID string) (*StockLevel, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	lots, err := s.lots.ListByProduct(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	return ComputeStockLevel(product, locationID, lots, time.Now()), nil
}

// ListLevels computes stock levels for all active lot-tracked products at
// a location.
func (s *LevelService) ListLevels(ctx context.Context, locationID string) ([]*StockLevel, error) {
	products, err := s.products.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	levels := make([]*StockLevel, 0, len(products))
	for _, product := range products {
		lots, err := s.lots.ListByProduct(ctx, product.ID, locationID)
		if err != nil {
			return nil, err
		}
		levels = append(levels, ComputeStockLevel(product, locationID, lots, now))
	}
	return levels, nil
}

// ListBelowReorder lists products at or below their reorder point,
// worst status first.
func (s *LevelService) ListBelowReorder(ctx context.Context, locationID string) ([]*StockLevel, error) {
	levels, err := s.ListLevels(ctx, locationID)
	if err != nil {
		return nil, err
	}

	var low []*StockLevel
	for _, status := range []StockStatus{StatusOutOfStock, StatusCritical, StatusLowStock} {
		for _, level := range levels {
			if level.Status == status {
				low = append(low, level)
			}
		}
	}
	return low, nil
}

// ValuationReport is the aggregate on-hand value for a location
type ValuationReport struct {
	LocationID       string        `json:"location_id"`
	TotalValue       float64       `json:"total_value"`
	TotalRetailValue float64       `json:"total_retail_value"`
	ProductCount     int           `json:"product_count"`
	LotCount         int           `json:"lot_count"`
	GeneratedAt      time.Time     `json:"generated_at"`
	Levels           []*StockLevel `json:"levels"`
}

// Valuation computes the cost and retail valuation of all stock at a location
func (s *LevelService) Valuation(ctx context.Context, locationID string) (*ValuationReport, error) {
	levels, err := s.ListLevels(ctx, locationID)
	if err != nil {
		return nil, err
	}

	report := &ValuationReport{
		LocationID:  locationID,
		GeneratedAt: time.Now().UTC(),
		Levels:      levels,
	}
	for _, level := range levels {
		if level.TotalQuantity == 0 {
			continue
		}
		report.TotalValue += level.TotalValue
		report.TotalRetailValue += level.TotalRetailValue
		report.ProductCount++
		report.LotCount += level.LotCount
	}
	return report, nil
}
