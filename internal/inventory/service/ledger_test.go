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

type ledgerHarness struct {
	fixtures *testutil.FixtureFactory
	product  *repository.Product
	lots     *fakeLotStore
	txns     *fakeTransactionStore
	alerts   *fakeAlertStore
	pub      *recordingPublisher
	svc      *service.LedgerService
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()

	f := testutil.NewFixtureFactory()
	product := f.Product(testutil.WithThresholds(10, 5))

	lots := newFakeLotStore()
	txns := newFakeTransactionStore()
	alerts := newFakeAlertStore()
	pub := newRecordingPublisher()
	log := logger.New("test", "test")

	engine := service.NewAlertEngine(alerts, pub, 90, 30, log)
	svc := service.NewLedgerService(lots, newFakeProductStore(product), txns, engine, pub, log)

	return &ledgerHarness{
		fixtures: f,
		product:  product,
		lots:     lots,
		txns:     txns,
		alerts:   alerts,
		pub:      pub,
		svc:      svc,
	}
}

func TestReceiveLot(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	cost := 500.0
	input := service.ReceiveLotInput{
		ProductID:      h.product.ID,
		LocationID:     "loc1",
		LotNumber:      "BTX-2026-001",
		Quantity:       100,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
		PurchaseCost:   &cost,
	}

	lot, err := h.svc.ReceiveLot(ctx, input, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 100, lot.InitialQuantity)
	assert.Equal(t, 100, lot.CurrentQuantity)
	assert.Equal(t, repository.LotAvailable, lot.Status)
	assert.Equal(t, "user-1", lot.CreatedBy)
	assert.True(t, h.pub.has("lot.received"))

	receipts := h.txns.byType(repository.TxnReceive)
	require.Len(t, receipts, 1)
	assert.Equal(t, 0, receipts[0].QuantityBefore)
	assert.Equal(t, 100, receipts[0].QuantityAfter)
	assert.Equal(t, 100, receipts[0].Quantity)
	require.NotNil(t, receipts[0].UnitCost)
	assert.InDelta(t, 5.0, *receipts[0].UnitCost, 0.001)
}

func TestReceiveLot_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	base := service.ReceiveLotInput{
		ProductID:      h.product.ID,
		LocationID:     "loc1",
		LotNumber:      "LOT-A",
		Quantity:       10,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
	}

	t.Run("zero quantity", func(t *testing.T) {
		input := base
		input.Quantity = 0
		_, err := h.svc.ReceiveLot(ctx, input, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
	})

	t.Run("past expiration", func(t *testing.T) {
		input := base
		input.ExpirationDate = time.Now().AddDate(0, 0, -1)
		_, err := h.svc.ReceiveLot(ctx, input, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	t.Run("unknown product", func(t *testing.T) {
		input := base
		input.ProductID = "missing"
		_, err := h.svc.ReceiveLot(ctx, input, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("duplicate lot number", func(t *testing.T) {
		_, err := h.svc.ReceiveLot(ctx, base, "user-1")
		require.NoError(t, err)

		_, err = h.svc.ReceiveLot(ctx, base, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrDuplicateLot))
	})
}

func TestReceiveLot_ClearsStockAlert(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	// Seed an active out-of-stock alert, then receive stock
	alert := &repository.InventoryAlert{
		AlertType:  repository.AlertOutOfStock,
		Severity:   repository.SeverityCritical,
		ProductID:  h.product.ID,
		LocationID: "loc1",
		Title:      "Out of stock",
		Message:    "none left",
	}
	require.NoError(t, h.alerts.Create(ctx, alert))

	_, err := h.svc.ReceiveLot(ctx, service.ReceiveLotInput{
		ProductID:      h.product.ID,
		LocationID:     "loc1",
		LotNumber:      "LOT-B",
		Quantity:       100,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
	}, "user-1")
	require.NoError(t, err)

	assert.Empty(t, h.alerts.activeOfType(repository.AlertOutOfStock))
}

func TestReceiveLot_ShortDatedRaisesExpiryAlert(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	lot, err := h.svc.ReceiveLot(ctx, service.ReceiveLotInput{
		ProductID:      h.product.ID,
		LocationID:     "loc1",
		LotNumber:      "SHORT-001",
		Quantity:       20,
		ExpirationDate: time.Now().AddDate(0, 0, 10),
	}, "user-1")
	require.NoError(t, err)

	active := h.alerts.activeOfType(repository.AlertExpiringSoon)
	require.Len(t, active, 1)
	assert.Equal(t, repository.SeverityWarning, active[0].Severity)
	require.NotNil(t, active[0].LotID)
	assert.Equal(t, lot.ID, *active[0].LotID)
	assert.True(t, h.pub.has("alert.generated"))
}

func TestReceiveLot_FarDatedRaisesNoExpiryAlert(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	_, err := h.svc.ReceiveLot(ctx, service.ReceiveLotInput{
		ProductID:      h.product.ID,
		LocationID:     "loc1",
		LotNumber:      "LONG-001",
		Quantity:       20,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
	}, "user-1")
	require.NoError(t, err)

	assert.Empty(t, h.alerts.activeOfType(repository.AlertExpiringSoon))
}

func TestApplyAdjustment(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	lot := h.fixtures.Lot(h.product.ID, "loc1", testutil.WithQuantity(100, 60))
	h.lots.put(lot)

	t.Run("waste removes stock", func(t *testing.T) {
		updated, err := h.svc.ApplyAdjustment(ctx, service.AdjustmentInput{
			LotID:    lot.ID,
			Quantity: -10,
			Type:     repository.TxnWaste,
			Reason:   "dropped vial",
		}, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 50, updated.CurrentQuantity)

		waste := h.txns.byType(repository.TxnWaste)
		require.Len(t, waste, 1)
		assert.Equal(t, -10, waste[0].Quantity)
		assert.Equal(t, 60, waste[0].QuantityBefore)
		assert.Equal(t, 50, waste[0].QuantityAfter)
		assert.True(t, h.pub.has("stock.adjusted"))
	})

	t.Run("return adds stock back", func(t *testing.T) {
		updated, err := h.svc.ApplyAdjustment(ctx, service.AdjustmentInput{
			LotID:    lot.ID,
			Quantity: 5,
			Type:     repository.TxnReturn,
			Reason:   "unused units returned",
		}, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 55, updated.CurrentQuantity)
	})

	t.Run("zero adjustment rejected", func(t *testing.T) {
		_, err := h.svc.ApplyAdjustment(ctx, service.AdjustmentInput{
			LotID:    lot.ID,
			Quantity: 0,
			Type:     repository.TxnAdjustment,
			Reason:   "noop",
		}, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
	})

	t.Run("addition beyond initial rejected", func(t *testing.T) {
		_, err := h.svc.ApplyAdjustment(ctx, service.AdjustmentInput{
			LotID:    lot.ID,
			Quantity: 50,
			Type:     repository.TxnAdjustment,
			Reason:   "count correction",
		}, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})
}

func TestApplyAdjustment_DepletedReactivation(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	lot := h.fixtures.Lot(h.product.ID, "loc1",
		testutil.WithQuantity(100, 0),
		testutil.WithStatus(repository.LotDepleted),
	)
	h.lots.put(lot)

	t.Run("without override", func(t *testing.T) {
		_, err := h.svc.ApplyAdjustment(ctx, service.AdjustmentInput{
			LotID:    lot.ID,
			Quantity: 10,
			Type:     repository.TxnReturn,
			Reason:   "returned units",
		}, "user-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})

	t.Run("with override", func(t *testing.T) {
		updated, err := h.svc.ApplyAdjustment(ctx, service.AdjustmentInput{
			LotID:      lot.ID,
			Quantity:   10,
			Type:       repository.TxnReturn,
			Reason:     "returned units",
			Reactivate: true,
		}, "user-1")
		require.NoError(t, err)
		assert.Equal(t, repository.LotAvailable, updated.Status)
		assert.Equal(t, 10, updated.CurrentQuantity)
	})
}

func TestSetQuarantine(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	lot := h.fixtures.Lot(h.product.ID, "loc1", testutil.WithQuantity(100, 50))
	h.lots.put(lot)

	held, err := h.svc.SetQuarantine(ctx, lot.ID, true, "suspected cold chain break", "user-1")
	require.NoError(t, err)
	assert.Equal(t, repository.LotQuarantine, held.Status)

	released, err := h.svc.SetQuarantine(ctx, lot.ID, false, "vendor confirmed integrity", "user-1")
	require.NoError(t, err)
	assert.Equal(t, repository.LotAvailable, released.Status)
}

func TestOpenLot_SingleOpenUnit(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	first := h.fixtures.Lot(h.product.ID, "loc1")
	second := h.fixtures.Lot(h.product.ID, "loc1")
	h.lots.put(first)
	h.lots.put(second)

	opened, err := h.svc.OpenLot(ctx, first.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, opened.IsOpen())

	// Opening a second lot closes the first
	_, err = h.svc.OpenLot(ctx, second.ID, "user-1")
	require.NoError(t, err)

	reloaded, err := h.lots.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsOpen())
}

func TestRecallTrace(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	lot := h.fixtures.Lot(h.product.ID, "loc1")
	h.lots.put(lot)

	for _, patient := range []string{"patient-1", "patient-2", "patient-1"} {
		p := patient
		require.NoError(t, h.txns.Create(ctx, &repository.InventoryTransaction{
			LotID:           lot.ID,
			ProductID:       h.product.ID,
			LocationID:      "loc1",
			TransactionType: repository.TxnTreatmentUse,
			Quantity:        -1,
			QuantityBefore:  10,
			QuantityAfter:   9,
			PatientID:       &p,
			PerformedBy:     "user-1",
		}))
	}

	patients, err := h.svc.RecallTrace(ctx, lot.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"patient-1", "patient-2"}, patients)
}
