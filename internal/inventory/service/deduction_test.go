package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/errors"
	"github.com/radiancemd/inventory-backend/pkg/logger"
	"github.com/radiancemd/inventory-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deductionHarness struct {
	fixtures *testutil.FixtureFactory
	product  *repository.Product
	lots     *fakeLotStore
	txns     *fakeTransactionStore
	alerts   *fakeAlertStore
	pub      *recordingPublisher
	svc      *service.DeductionService
}

func newDeductionHarness(t *testing.T) *deductionHarness {
	t.Helper()

	f := testutil.NewFixtureFactory()
	product := f.Product(testutil.WithThresholds(10, 5))

	lots := newFakeLotStore()
	txns := newFakeTransactionStore()
	alerts := newFakeAlertStore()
	pub := newRecordingPublisher()
	log := logger.New("test", "test")

	engine := service.NewAlertEngine(alerts, pub, 90, 30, log)
	svc := service.NewDeductionService(lots, newFakeProductStore(product), txns, engine, pub, 3, log)

	return &deductionHarness{
		fixtures: f,
		product:  product,
		lots:     lots,
		txns:     txns,
		alerts:   alerts,
		pub:      pub,
		svc:      svc,
	}
}

func (h *deductionHarness) addLot(opts ...func(*repository.InventoryLot)) *repository.InventoryLot {
	lot := h.fixtures.Lot(h.product.ID, "loc1", opts...)
	h.lots.put(lot)
	return lot
}

func (h *deductionHarness) totalOnHand(t *testing.T) int {
	t.Helper()
	lots, err := h.lots.ListByProduct(context.Background(), h.product.ID, "loc1")
	require.NoError(t, err)
	total := 0
	for _, lot := range lots {
		total += lot.CurrentQuantity
	}
	return total
}

func TestDeduct_SingleLot(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	lot := h.addLot(testutil.WithQuantity(100, 100))

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   10,
	}, "user-1")
	require.NoError(t, err)

	require.Len(t, result.Deductions, 1)
	d := result.Deductions[0]
	assert.Equal(t, lot.ID, d.LotID)
	assert.Equal(t, 10, d.Quantity)
	assert.Equal(t, 100, d.QuantityBefore)
	assert.Equal(t, 90, d.QuantityAfter)
	assert.False(t, d.Depleted)

	assert.Equal(t, 90, h.totalOnHand(t))
	assert.True(t, h.pub.has("stock.deducted"))
}

func TestDeduct_ConservesQuantityAcrossLots(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	now := time.Now()

	h.addLot(testutil.WithQuantity(100, 30), testutil.WithExpiration(now.AddDate(0, 1, 0)))
	h.addLot(testutil.WithQuantity(100, 40), testutil.WithExpiration(now.AddDate(0, 2, 0)))
	before := h.totalOnHand(t)

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   50,
	}, "user-1")
	require.NoError(t, err)

	deducted := 0
	for _, d := range result.Deductions {
		deducted += d.Quantity
	}
	assert.Equal(t, 50, deducted)
	assert.Equal(t, before-50, h.totalOnHand(t))
}

func TestDeduct_WritesUsageTransactions(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	now := time.Now()

	h.addLot(testutil.WithQuantity(100, 5), testutil.WithExpiration(now.AddDate(0, 1, 0)))
	h.addLot(testutil.WithQuantity(100, 50), testutil.WithExpiration(now.AddDate(0, 2, 0)))

	patientID := "patient-7"
	_, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   12,
		PatientID:  &patientID,
	}, "user-1")
	require.NoError(t, err)

	usage := h.txns.byType(repository.TxnTreatmentUse)
	require.Len(t, usage, 2)
	for _, txn := range usage {
		assert.Equal(t, txn.QuantityBefore+txn.Quantity, txn.QuantityAfter)
		assert.Negative(t, txn.Quantity)
		require.NotNil(t, txn.PatientID)
		assert.Equal(t, patientID, *txn.PatientID)
		assert.Equal(t, "user-1", txn.PerformedBy)
	}
}

func TestDeduct_DepletesLot(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	lot := h.addLot(testutil.WithQuantity(100, 10))

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   10,
	}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Deductions[0].Depleted)

	stored, err := h.lots.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.LotDepleted, stored.Status)
	assert.Equal(t, 0, stored.CurrentQuantity)
}

func TestDeduct_InsufficientInventoryLeavesStockUntouched(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	h.addLot(testutil.WithQuantity(100, 3))
	h.addLot(testutil.WithQuantity(100, 4))

	_, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   10,
	}, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))

	assert.Equal(t, 7, h.totalOnHand(t))
	assert.Empty(t, h.txns.byType(repository.TxnTreatmentUse))
}

func TestDeduct_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	h.addLot(testutil.WithQuantity(100, 50))
	h.lots.failDeductions = 2

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   10,
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, result.Deductions, 1)
	assert.Equal(t, 40, h.totalOnHand(t))
}

func TestDeduct_GivesUpAfterRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	h.addLot(testutil.WithQuantity(100, 50))
	h.lots.failDeductions = 10

	_, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   10,
	}, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrencyConflict))
	assert.Equal(t, 50, h.totalOnHand(t))
}

func TestDeduct_RollsBackPartialExecution(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	now := time.Now()

	// First lot succeeds, second conflicts: the draw from the first must
	// be restored before the retry replans.
	h.addLot(testutil.WithQuantity(100, 5), testutil.WithExpiration(now.AddDate(0, 1, 0)))
	h.addLot(testutil.WithQuantity(100, 50), testutil.WithExpiration(now.AddDate(0, 2, 0)))
	before := h.totalOnHand(t)

	// The fake counts ApplyDeduction calls, so failing call 2 means the
	// draw from the first lot lands and the second conflicts.
	h.lots.failOnCall = 2

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   12,
	}, "user-1")
	require.NoError(t, err)

	deducted := 0
	for _, d := range result.Deductions {
		deducted += d.Quantity
	}
	assert.Equal(t, 12, deducted)
	assert.Equal(t, before-12, h.totalOnHand(t))
}

func TestDeduct_ZeroQuantityIsNoOp(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	h.addLot(testutil.WithQuantity(100, 50))

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   0,
	}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, result.Deductions)
	require.NotNil(t, result.Level)
	assert.Equal(t, 50, h.totalOnHand(t))
	assert.False(t, h.pub.has("stock.deducted"))
}

func TestDeduct_NegativeQuantityRejected(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)

	_, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   -1,
	}, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
}

func TestDeduct_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)

	_, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  "missing",
		LocationID: "loc1",
		Quantity:   1,
	}, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDeduct_SkipsQuarantinedAndExpiredLots(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	now := time.Now()

	h.addLot(testutil.WithQuantity(100, 50), testutil.WithStatus(repository.LotQuarantine))
	h.addLot(testutil.WithQuantity(100, 50), testutil.WithExpiration(now.AddDate(0, 0, -1)))
	good := h.addLot(testutil.WithQuantity(100, 50))

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   10,
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, result.Deductions, 1)
	assert.Equal(t, good.ID, result.Deductions[0].LotID)
}

func TestDeduct_ForcedLot(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	now := time.Now()

	h.addLot(testutil.WithQuantity(100, 50), testutil.WithExpiration(now.AddDate(0, 1, 0)))
	forced := h.addLot(testutil.WithQuantity(100, 50), testutil.WithExpiration(now.AddDate(0, 6, 0)))

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   5,
		LotID:      &forced.ID,
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, result.Deductions, 1)
	assert.Equal(t, forced.ID, result.Deductions[0].LotID)
}

func TestDeduct_TriggersStockAlert(t *testing.T) {
	ctx := context.Background()
	h := newDeductionHarness(t)
	h.addLot(testutil.WithQuantity(100, 12))

	result, err := h.svc.Deduct(ctx, service.DeductionInput{
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Quantity:   4,
	}, "user-1")
	require.NoError(t, err)

	require.NotNil(t, result.Alert)
	assert.Equal(t, repository.AlertLowStock, result.Alert.AlertType)
	assert.Equal(t, service.StatusLowStock, result.Level.Status)
	assert.True(t, h.pub.has("alert.generated"))
}
