package service

import (
	"context"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// DeductionInput captures an automatic deduction triggered by clinical
// usage. LotID forces selection to one lot, overriding automatic ordering.
type DeductionInput struct {
	ProductID  string `json:"product_id" validate:"required,uuid"`
	LocationID string `json:"location_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=0"`

	LotID *string `json:"lot_id,omitempty" validate:"omitempty,uuid"`

	AppointmentID *string `json:"appointment_id,omitempty"`
	PatientID     *string `json:"patient_id,omitempty"`
	TreatmentID   *string `json:"treatment_id,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// LotDeduction is the per-lot outcome of an executed deduction
type LotDeduction struct {
	LotID          string   `json:"lot_id"`
	LotNumber      string   `json:"lot_number"`
	Quantity       int      `json:"quantity"`
	QuantityBefore int      `json:"quantity_before"`
	QuantityAfter  int      `json:"quantity_after"`
	UnitCost       *float64 `json:"unit_cost,omitempty"`
	Depleted       bool     `json:"depleted"`
}

// DeductionResult bundles the executed deduction with the resulting stock
// position and any alert it triggered.
type DeductionResult struct {
	ProductID  string                     `json:"product_id"`
	LocationID string                     `json:"location_id"`
	Requested  int                        `json:"requested"`
	Deductions []LotDeduction             `json:"deductions"`
	Level      *StockLevel                `json:"level"`
	Alert      *repository.InventoryAlert `json:"alert,omitempty"`
}

// DeductionService executes all-or-nothing stock deductions. Execution is
// plan-then-mutate: a pure plan over a snapshot of the eligible lots, then
// optimistic per-lot mutations, retried from a fresh snapshot when a lot
// changed underneath the plan.
type DeductionService struct {
	lots      LotStore
	products  ProductStore
	txns      TransactionStore
	alerts    *AlertEngine
	publisher EventPublisher
	retries   int
	logger    *logger.Logger
}

// NewDeductionService creates a new deduction service
func NewDeductionService(lots LotStore, products ProductStore, txns TransactionStore, alerts *AlertEngine, publisher EventPublisher, retries int, log *logger.Logger) *DeductionService {
	if retries <= 0 {
		retries = 3
	}
	return &DeductionService{
		lots:      lots,
		products:  products,
		txns:      txns,
		alerts:    alerts,
		publisher: publisher,
		retries:   retries,
		logger:    log.WithComponent("deduction-service"),
	}
}

// Deduct draws the requested quantity from the product's lots at a
// location. A zero quantity is a recorded no-op so callers need not
// special-case products with nothing to deduct.
func (s *DeductionService) Deduct(ctx context.Context, input DeductionInput, userID string) (*DeductionResult, error) {
	if input.Quantity < 0 {
		return nil, errors.InvalidQuantity(input.Quantity)
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	if input.Quantity == 0 {
		level, err := s.computeLevel(ctx, product, input.LocationID)
		if err != nil {
			return nil, err
		}
		return &DeductionResult{
			ProductID:  input.ProductID,
			LocationID: input.LocationID,
			Level:      level,
		}, nil
	}

	var result *DeductionResult
	for attempt := 0; attempt < s.retries; attempt++ {
		result, err = s.attempt(ctx, product, input, userID)
		if err == nil {
			break
		}
		if !errors.Is(err, errors.ErrConcurrencyConflict) {
			return nil, err
		}
		s.logger.Warn().
			Str("product_id", input.ProductID).
			Int("attempt", attempt+1).
			Msg("deduction retry after concurrent modification")
	}
	if err != nil {
		return nil, err
	}

	level, lerr := s.computeLevel(ctx, product, input.LocationID)
	if lerr != nil {
		return nil, lerr
	}
	result.Level = level

	if s.alerts != nil {
		alert, aerr := s.alerts.EvaluateStockLevel(ctx, product, level)
		if aerr != nil {
			s.logger.Warn().Err(aerr).Str("product_id", product.ID).Msg("stock alert evaluation failed")
		} else {
			result.Alert = alert
		}
	}

	s.logger.Info().
		Str("product_id", input.ProductID).
		Str("location_id", input.LocationID).
		Int("quantity", input.Quantity).
		Int("lot_count", len(result.Deductions)).
		Str("stock_status", string(level.Status)).
		Msg("stock deducted")

	if s.publisher != nil {
		s.publisher.PublishStockDeducted(ctx, result, userID)
	}
	return result, nil
}

// attempt plans against a fresh snapshot and executes the plan. Partial
// execution is rolled back before the conflict is returned to the retry
// loop so a failed attempt leaves no net change.
func (s *DeductionService) attempt(ctx context.Context, product *repository.Product, input DeductionInput, userID string) (*DeductionResult, error) {
	plan, err := s.plan(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &DeductionResult{
		ProductID:  input.ProductID,
		LocationID: input.LocationID,
		Requested:  input.Quantity,
	}

	var applied []LotDeduction
	var appliedLots []*repository.InventoryLot
	for _, alloc := range plan.Allocations {
		updated, err := s.lots.ApplyDeduction(ctx, alloc.Lot.ID, alloc.Quantity, alloc.Lot.Version)
		if err != nil {
			s.rollback(ctx, applied)
			return nil, err
		}

		applied = append(applied, LotDeduction{
			LotID:          updated.ID,
			LotNumber:      updated.LotNumber,
			Quantity:       alloc.Quantity,
			QuantityBefore: updated.CurrentQuantity + alloc.Quantity,
			QuantityAfter:  updated.CurrentQuantity,
			UnitCost:       unitCostPtr(updated),
			Depleted:       updated.Status == repository.LotDepleted,
		})
		appliedLots = append(appliedLots, updated)
	}

	// The whole plan landed; log usage only now so a rolled-back attempt
	// leaves no ledger entries
	for i, deduction := range applied {
		s.recordUsage(ctx, appliedLots[i], deduction, input, userID)
	}

	result.Deductions = applied
	return result, nil
}

// plan snapshots the eligible lots and builds the allocation plan
func (s *DeductionService) plan(ctx context.Context, input DeductionInput) (*AllocationPlan, error) {
	if input.LotID != nil {
		lot, err := s.lots.GetByID(ctx, *input.LotID)
		if err != nil {
			return nil, err
		}
		if lot.ProductID != input.ProductID || lot.LocationID != input.LocationID {
			return nil, errors.BadRequest("lot does not belong to the requested product and location")
		}
		if lot.IsExpired(time.Now()) {
			return nil, errors.Conflict("lot is past its expiration date")
		}
		return PlanFromLot(lot, input.Quantity)
	}

	candidates, err := s.lots.ListAvailable(ctx, input.ProductID, input.LocationID)
	if err != nil {
		return nil, err
	}
	return PlanDeduction(input.ProductID, input.LocationID, input.Quantity, candidates)
}

// rollback restores quantities drawn by a partially executed plan. Each
// restore targets the lot's fresh version; failures are logged for manual
// reconciliation since the deduction has already been reported as failed.
func (s *DeductionService) rollback(ctx context.Context, applied []LotDeduction) {
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		lot, err := s.lots.GetByID(ctx, d.LotID)
		if err != nil {
			s.logger.Error().Err(err).Str("lot_id", d.LotID).Msg("rollback failed to load lot")
			continue
		}
		if _, err := s.lots.ApplyAddition(ctx, lot.ID, d.Quantity, lot.Version, true); err != nil {
			s.logger.Error().
				Err(err).
				Str("lot_id", d.LotID).
				Int("quantity", d.Quantity).
				Msg("rollback failed to restore quantity")
		}
	}
}

// recordUsage appends the treatment_use ledger entry for one lot draw.
// The stock mutation has committed; a log failure is not propagated.
func (s *DeductionService) recordUsage(ctx context.Context, lot *repository.InventoryLot, d LotDeduction, input DeductionInput, userID string) {
	var totalCost *float64
	if d.UnitCost != nil {
		cost := *d.UnitCost * float64(d.Quantity)
		totalCost = &cost
	}

	txn := &repository.InventoryTransaction{
		LotID:           lot.ID,
		ProductID:       lot.ProductID,
		LocationID:      lot.LocationID,
		TransactionType: repository.TxnTreatmentUse,
		Quantity:        -d.Quantity,
		QuantityBefore:  d.QuantityBefore,
		QuantityAfter:   d.QuantityAfter,
		UnitCost:        d.UnitCost,
		TotalCost:       totalCost,
		AppointmentID:   input.AppointmentID,
		PatientID:       input.PatientID,
		TreatmentID:     input.TreatmentID,
		Notes:           input.Notes,
		PerformedBy:     userID,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		s.logger.Error().
			Err(err).
			Str("lot_id", lot.ID).
			Msg("failed to record treatment usage")
	}
}

func (s *DeductionService) computeLevel(ctx context.Context, product *repository.Product, locationID string) (*StockLevel, error) {
	lots, err := s.lots.ListByProduct(ctx, product.ID, locationID)
	if err != nil {
		return nil, err
	}
	return ComputeStockLevel(product, locationID, lots, time.Now()), nil
}
