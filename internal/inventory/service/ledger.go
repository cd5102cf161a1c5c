package service

import (
	"context"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// ReceiveLotInput captures a stock receipt
type ReceiveLotInput struct {
	ProductID         string     `json:"product_id" validate:"required,uuid"`
	LocationID        string     `json:"location_id" validate:"required"`
	LotNumber         string     `json:"lot_number" validate:"required,min=1,max=100"`
	Quantity          int        `json:"quantity" validate:"required,gt=0"`
	ExpirationDate    time.Time  `json:"expiration_date" validate:"required"`
	ManufacturingDate *time.Time `json:"manufacturing_date,omitempty"`
	ReceivedDate      *time.Time `json:"received_date,omitempty"`
	VendorID          *string    `json:"vendor_id,omitempty"`
	PurchaseOrderID   *string    `json:"purchase_order_id,omitempty"`
	InvoiceNumber     *string    `json:"invoice_number,omitempty"`
	PurchaseCost      *float64   `json:"purchase_cost,omitempty"`
	QualityNotes      *string    `json:"quality_notes,omitempty"`
}

// AdjustmentInput captures a manual stock correction against one lot
type AdjustmentInput struct {
	LotID    string `json:"lot_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required"`
	// Type is one of adjustment, waste, return
	Type   repository.TransactionType `json:"type" validate:"required,oneof=adjustment waste return"`
	Reason string                     `json:"reason" validate:"required,min=3"`
	Notes  *string                    `json:"notes,omitempty"`
	// Reactivate permits adding stock back to a depleted lot
	Reactivate bool `json:"reactivate,omitempty"`
}

// LedgerService owns lot lifecycle and manual stock movements. Automatic
// treatment deductions live in DeductionService.
type LedgerService struct {
	lots      LotStore
	products  ProductStore
	txns      TransactionStore
	alerts    *AlertEngine
	publisher EventPublisher
	logger    *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(lots LotStore, products ProductStore, txns TransactionStore, alerts *AlertEngine, publisher EventPublisher, log *logger.Logger) *LedgerService {
	return &LedgerService{
		lots:      lots,
		products:  products,
		txns:      txns,
		alerts:    alerts,
		publisher: publisher,
		logger:    log.WithComponent("ledger-service"),
	}
}

// ReceiveLot records a new lot into stock. The receipt is logged as a
// receive transaction with a zero starting quantity, and expiration is
// checked so already-expired stock cannot enter as available.
func (s *LedgerService) ReceiveLot(ctx context.Context, input ReceiveLotInput, userID string) (*repository.InventoryLot, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity(input.Quantity)
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !input.ExpirationDate.After(now) {
		return nil, errors.BadRequest("expiration date must be in the future")
	}

	receivedDate := now
	if input.ReceivedDate != nil {
		receivedDate = *input.ReceivedDate
	}

	lot := &repository.InventoryLot{
		ProductID:         input.ProductID,
		LocationID:        input.LocationID,
		LotNumber:         input.LotNumber,
		ManufacturingDate: input.ManufacturingDate,
		ExpirationDate:    input.ExpirationDate,
		ReceivedDate:      receivedDate,
		InitialQuantity:   input.Quantity,
		CurrentQuantity:   input.Quantity,
		Status:            repository.LotAvailable,
		VendorID:          input.VendorID,
		PurchaseOrderID:   input.PurchaseOrderID,
		InvoiceNumber:     input.InvoiceNumber,
		PurchaseCost:      input.PurchaseCost,
		QualityNotes:      input.QualityNotes,
		CreatedBy:         userID,
	}

	if err := s.lots.Create(ctx, lot); err != nil {
		return nil, err
	}

	s.appendTransaction(ctx, &repository.InventoryTransaction{
		LotID:           lot.ID,
		ProductID:       lot.ProductID,
		LocationID:      lot.LocationID,
		TransactionType: repository.TxnReceive,
		Quantity:        lot.InitialQuantity,
		QuantityBefore:  0,
		QuantityAfter:   lot.InitialQuantity,
		UnitCost:        unitCostPtr(lot),
		TotalCost:       lot.PurchaseCost,
		PerformedBy:     userID,
	})

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("lot_number", lot.LotNumber).
		Str("product_id", lot.ProductID).
		Int("quantity", lot.InitialQuantity).
		Msg("lot received")

	if s.publisher != nil {
		s.publisher.PublishLotReceived(ctx, lot, userID)
	}

	// Receipt can clear a low-stock alert
	s.reevaluateStock(ctx, product, lot.LocationID)

	// Short-dated stock alerts at receipt rather than waiting for the sweep
	if s.alerts != nil {
		if _, err := s.alerts.EvaluateLotExpiry(ctx, product, lot, now); err != nil {
			s.logger.Warn().Err(err).Str("lot_id", lot.ID).Msg("expiry alert evaluation failed")
		}
	}

	return lot, nil
}

// GetLot returns a single lot
func (s *LedgerService) GetLot(ctx context.Context, lotID string) (*repository.InventoryLot, error) {
	return s.lots.GetByID(ctx, lotID)
}

// ListLots returns all lots for a product at a location
func (s *LedgerService) ListLots(ctx context.Context, productID, locationID string) ([]*repository.InventoryLot, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.lots.ListByProduct(ctx, productID, locationID)
}

// ApplyAdjustment records a manual correction against a lot. Positive
// quantities add stock (returns, count corrections up), negative
// quantities remove it (waste, spoilage, count corrections down).
func (s *LedgerService) ApplyAdjustment(ctx context.Context, input AdjustmentInput, userID string) (*repository.InventoryLot, error) {
	if input.Quantity == 0 {
		return nil, errors.InvalidQuantity(0)
	}

	lot, err := s.lots.GetByID(ctx, input.LotID)
	if err != nil {
		return nil, err
	}

	before := lot.CurrentQuantity
	var updated *repository.InventoryLot
	if input.Quantity > 0 {
		updated, err = s.lots.ApplyAddition(ctx, lot.ID, input.Quantity, lot.Version, input.Reactivate)
	} else {
		updated, err = s.lots.ApplyDeduction(ctx, lot.ID, -input.Quantity, lot.Version)
	}
	if err != nil {
		return nil, err
	}

	s.appendTransaction(ctx, &repository.InventoryTransaction{
		LotID:           updated.ID,
		ProductID:       updated.ProductID,
		LocationID:      updated.LocationID,
		TransactionType: input.Type,
		Quantity:        input.Quantity,
		QuantityBefore:  before,
		QuantityAfter:   updated.CurrentQuantity,
		UnitCost:        unitCostPtr(updated),
		Reason:          &input.Reason,
		Notes:           input.Notes,
		PerformedBy:     userID,
	})

	s.logger.Info().
		Str("lot_id", updated.ID).
		Str("type", string(input.Type)).
		Int("adjustment", input.Quantity).
		Int("quantity_after", updated.CurrentQuantity).
		Msg("stock adjusted")

	if s.publisher != nil {
		s.publisher.PublishStockAdjusted(ctx, updated, input.Quantity, input.Reason, userID)
	}

	if product, perr := s.products.GetByID(ctx, updated.ProductID); perr == nil {
		s.reevaluateStock(ctx, product, updated.LocationID)
	}

	return updated, nil
}

// SetQuarantine places or releases a quality hold on a lot
func (s *LedgerService) SetQuarantine(ctx context.Context, lotID string, quarantined bool, reason, userID string) (*repository.InventoryLot, error) {
	lot, err := s.lots.SetQuarantine(ctx, lotID, quarantined, userID)
	if err != nil {
		return nil, err
	}

	action := "released from quarantine"
	if quarantined {
		action = "placed under quarantine"
	}
	s.logger.Info().
		Str("lot_id", lotID).
		Str("user_id", userID).
		Str("reason", reason).
		Msg("lot " + action)

	// Quarantined stock no longer counts toward levels
	if product, perr := s.products.GetByID(ctx, lot.ProductID); perr == nil {
		s.reevaluateStock(ctx, product, lot.LocationID)
	}

	return lot, nil
}

// OpenLot marks a lot as the in-use open unit so selection prefers it
func (s *LedgerService) OpenLot(ctx context.Context, lotID, userID string) (*repository.InventoryLot, error) {
	return s.lots.MarkOpened(ctx, lotID, time.Now(), userID)
}

// LotHistory returns a lot's full transaction history
func (s *LedgerService) LotHistory(ctx context.Context, lotID string) ([]*repository.InventoryTransaction, error) {
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.txns.ListByLot(ctx, lotID)
}

// ProductHistory returns the movement log for a product in a date range
func (s *LedgerService) ProductHistory(ctx context.Context, productID, locationID string, from, to time.Time) ([]*repository.InventoryTransaction, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.txns.ListByProduct(ctx, productID, locationID, from, to)
}

// PatientUsage returns treatment usage entries for a patient
func (s *LedgerService) PatientUsage(ctx context.Context, patientID string) ([]*repository.InventoryTransaction, error) {
	return s.txns.ListByPatient(ctx, patientID)
}

// RecallTrace lists the patients who received product from a lot, for
// recall notification.
func (s *LedgerService) RecallTrace(ctx context.Context, lotID string) ([]string, error) {
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.txns.ListPatientsForLot(ctx, lotID)
}

// appendTransaction logs a ledger entry. The stock mutation has already
// committed, so a log failure is recorded but not propagated.
func (s *LedgerService) appendTransaction(ctx context.Context, txn *repository.InventoryTransaction) {
	if err := s.txns.Create(ctx, txn); err != nil {
		s.logger.Error().
			Err(err).
			Str("lot_id", txn.LotID).
			Str("type", string(txn.TransactionType)).
			Msg("failed to record inventory transaction")
	}
}

func (s *LedgerService) reevaluateStock(ctx context.Context, product *repository.Product, locationID string) {
	if s.alerts == nil {
		return
	}
	lots, err := s.lots.ListByProduct(ctx, product.ID, locationID)
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", product.ID).Msg("stock re-evaluation skipped")
		return
	}
	level := ComputeStockLevel(product, locationID, lots, time.Now())
	if _, err := s.alerts.EvaluateStockLevel(ctx, product, level); err != nil {
		s.logger.Warn().Err(err).Str("product_id", product.ID).Msg("stock alert evaluation failed")
	}
}

func unitCostPtr(lot *repository.InventoryLot) *float64 {
	if lot.PurchaseCost == nil || lot.InitialQuantity == 0 {
		return nil
	}
	cost := lot.UnitCost()
	return &cost
}
