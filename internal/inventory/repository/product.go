package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/radiancemd/inventory-backend/pkg/database"
	"github.com/radiancemd/inventory-backend/pkg/errors"
)

// Product is catalog reference data. The inventory core reads products for
// thresholds, unit pricing, and tracking flags; catalog management lives in
// another service and products are never mutated here.
type Product struct {
	ID                    string    `db:"id" json:"id"`
	Name                  string    `db:"name" json:"name"`
	SKU                   *string   `db:"sku" json:"sku,omitempty"`
	Category              string    `db:"category" json:"category"`
	UnitType              string    `db:"unit_type" json:"unit_type"`
	CostPrice             float64   `db:"cost_price" json:"cost_price"`
	UnitPrice             float64   `db:"unit_price" json:"unit_price"`
	ReorderPoint          int       `db:"reorder_point" json:"reorder_point"`
	ReorderQuantity       int       `db:"reorder_quantity" json:"reorder_quantity"`
	MinStockLevel         int       `db:"min_stock_level" json:"min_stock_level"`
	RequiresRefrigeration bool      `db:"requires_refrigeration" json:"requires_refrigeration"`
	TrackByLot            bool      `db:"track_by_lot" json:"track_by_lot"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// ProductRepository provides read access to the product catalog
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ProductNotFound(id)
		}
		return nil, err
	}
	return &product, nil
}

// GetAllActive gets all active lot-tracked products
func (r *ProductRepository) GetAllActive(ctx context.Context) ([]*Product, error) {
	var products []*Product
	query := `SELECT * FROM products WHERE is_active = true AND track_by_lot = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts a product. The core treats the catalog as read-only; this
// exists for provisioning and test fixtures.
func (r *ProductRepository) Create(ctx context.Context, product *Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (
			id, name, sku, category, unit_type, cost_price, unit_price,
			reorder_point, reorder_quantity, min_stock_level,
			requires_refrigeration, track_by_lot, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		product.ID, product.Name, product.SKU, product.Category, product.UnitType,
		product.CostPrice, product.UnitPrice, product.ReorderPoint, product.ReorderQuantity,
		product.MinStockLevel, product.RequiresRefrigeration, product.TrackByLot, product.IsActive,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}
