package service

import (
	"context"
	"time"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/pkg/logger"
)

// ExpirySweeper periodically transitions lots past their expiration date
// and raises expiring-soon alerts ahead of time. The sweep is idempotent;
// rerunning it produces no duplicate alerts or transitions.
type ExpirySweeper struct {
	lots     LotStore
	products ProductStore
	txns     TransactionStore
	alerts   *AlertEngine
	logger   *logger.Logger

	interval         time.Duration
	expiringSoonDays int

	stop chan struct{}
	done chan struct{}
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(lots LotStore, products ProductStore, txns TransactionStore, alerts *AlertEngine, interval time.Duration, expiringSoonDays int, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		lots:             lots,
		products:         products,
		txns:             txns,
		alerts:           alerts,
		logger:           log.WithComponent("expiry-sweeper"),
		interval:         interval,
		expiringSoonDays: expiringSoonDays,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. An initial sweep runs
// immediately so a restarted service catches up without waiting a full
// interval.
func (s *ExpirySweeper) Start() {
	go func() {
		defer close(s.done)

		s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stop:
				s.logger.Info().Msg("expiry sweeper stopped")
				return
			}
		}
	}()
}

// Stop signals the sweep loop to exit and waits for it to finish
func (s *ExpirySweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *ExpirySweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.Sweep(ctx); err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
	}
}

// Sweep performs one pass: expired lots are transitioned and alerted,
// lots inside the lookahead window get expiring-soon alerts, and stock
// levels of affected products are re-evaluated.
func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	now := time.Now()

	expired, err := s.lots.ListExpired(ctx)
	if err != nil {
		return err
	}

	touched := map[string]string{}
	for _, lot := range expired {
		if err := s.expireLot(ctx, lot, now); err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to expire lot")
			continue
		}
		touched[lot.ProductID] = lot.LocationID
	}

	expiring, err := s.lots.ListExpiring(ctx, s.expiringSoonDays)
	if err != nil {
		return err
	}
	for _, lot := range expiring {
		product, err := s.products.GetByID(ctx, lot.ProductID)
		if err != nil {
			s.logger.Warn().Err(err).Str("lot_id", lot.ID).Msg("skipping expiry alert for unknown product")
			continue
		}
		if _, err := s.alerts.EvaluateLotExpiry(ctx, product, lot, now); err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("expiry alert evaluation failed")
		}
	}

	for productID, locationID := range touched {
		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			continue
		}
		lots, err := s.lots.ListByProduct(ctx, productID, locationID)
		if err != nil {
			continue
		}
		level := ComputeStockLevel(product, locationID, lots, now)
		if _, err := s.alerts.EvaluateStockLevel(ctx, product, level); err != nil {
			s.logger.Warn().Err(err).Str("product_id", productID).Msg("stock re-evaluation failed after expiry")
		}
	}

	if len(expired) > 0 || len(expiring) > 0 {
		s.logger.Info().
			Int("expired", len(expired)).
			Int("expiring_soon", len(expiring)).
			Msg("expiry sweep completed")
	}
	return nil
}

// expireLot transitions one lot and records the transition in the ledger.
// Remaining units stay on the lot for audit; the entry documents the
// status change without a quantity movement.
func (s *ExpirySweeper) expireLot(ctx context.Context, lot *repository.InventoryLot, now time.Time) error {
	updated, err := s.lots.MarkExpired(ctx, lot.ID)
	if err != nil {
		return err
	}

	reason := "lot passed expiration date"
	txn := &repository.InventoryTransaction{
		LotID:           updated.ID,
		ProductID:       updated.ProductID,
		LocationID:      updated.LocationID,
		TransactionType: repository.TxnExpired,
		Quantity:        0,
		QuantityBefore:  updated.CurrentQuantity,
		QuantityAfter:   updated.CurrentQuantity,
		Reason:          &reason,
		PerformedBy:     systemActor,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		s.logger.Error().Err(err).Str("lot_id", updated.ID).Msg("failed to record expiry transition")
	}

	s.logger.Info().
		Str("lot_id", updated.ID).
		Str("lot_number", updated.LotNumber).
		Int("remaining", updated.CurrentQuantity).
		Msg("lot expired")

	product, err := s.products.GetByID(ctx, updated.ProductID)
	if err != nil {
		return nil
	}
	if _, err := s.alerts.EvaluateLotExpiry(ctx, product, updated, now); err != nil {
		s.logger.Error().Err(err).Str("lot_id", updated.ID).Msg("expired alert creation failed")
	}
	return nil
}
