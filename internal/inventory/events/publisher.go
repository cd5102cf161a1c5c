package events

import (
	"context"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/logger"
	"github.com/radiancemd/inventory-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory domain events. Publishing is
// best effort: failures are logged and never fail the operation that
// triggered them. A nil publisher disables events entirely, which keeps
// local development working without a broker.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a publisher on the inventory events exchange
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return &InventoryEventPublisher{
		publisher: pub,
		logger:    log.WithComponent("inventory-events"),
	}, nil
}

// PublishLotReceived publishes a lot receipt event
func (p *InventoryEventPublisher) PublishLotReceived(ctx context.Context, lot *repository.InventoryLot, receivedBy string) {
	if p == nil {
		return
	}
	event := messaging.LotReceivedEvent{
		LotID:      lot.ID,
		LotNumber:  lot.LotNumber,
		ProductID:  lot.ProductID,
		LocationID: lot.LocationID,
		Quantity:   lot.InitialQuantity,
		ExpiresAt:  lot.ExpirationDate.Format("2006-01-02"),
		ReceivedBy: receivedBy,
	}
	if err := p.publisher.Publish(ctx, messaging.EventLotReceived, event); err != nil {
		p.logger.Warn().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot received event")
	}
}

// PublishStockDeducted publishes a completed deduction
func (p *InventoryEventPublisher) PublishStockDeducted(ctx context.Context, result *service.DeductionResult, performedBy string) {
	if p == nil {
		return
	}
	event := messaging.StockDeductedEvent{
		ProductID:   result.ProductID,
		LocationID:  result.LocationID,
		Quantity:    result.Requested,
		LotCount:    len(result.Deductions),
		PerformedBy: performedBy,
		StockStatus: string(result.Level.Status),
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockDeducted, event); err != nil {
		p.logger.Warn().Err(err).Str("product_id", result.ProductID).Msg("failed to publish stock deducted event")
	}
}

// PublishStockAdjusted publishes a manual adjustment
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, lot *repository.InventoryLot, adjustment int, reason, performedBy string) {
	if p == nil {
		return
	}
	event := messaging.StockAdjustedEvent{
		ProductID:   lot.ProductID,
		LotID:       lot.ID,
		Adjustment:  adjustment,
		NewQuantity: lot.CurrentQuantity,
		PerformedBy: performedBy,
		Reason:      reason,
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, event); err != nil {
		p.logger.Warn().Err(err).Str("lot_id", lot.ID).Msg("failed to publish stock adjusted event")
	}
}

// PublishAlertGenerated publishes a newly created alert for notification
// delivery by the notification service.
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.InventoryAlert) {
	if p == nil {
		return
	}
	event := messaging.AlertGeneratedEvent{
		AlertID:    alert.ID,
		AlertType:  string(alert.AlertType),
		Severity:   string(alert.Severity),
		Title:      alert.Title,
		Message:    alert.Message,
		ProductID:  alert.ProductID,
		LocationID: alert.LocationID,
	}
	if alert.LotID != nil {
		event.LotID = *alert.LotID
	}
	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, event); err != nil {
		p.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}
