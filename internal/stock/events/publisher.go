package events

import (
	"context"

	"github.com/djiba142/Pharmacie-sub000/internal/stock/repository"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/messaging"
)

// Publisher publishes stock domain events. A nil Publisher is valid and
// drops all events, which keeps event publishing optional in tests and
// local runs without a broker.
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a stock event publisher.
func NewPublisher(publisher *messaging.Publisher, log *logger.Logger) *Publisher {
	return &Publisher{publisher: publisher, logger: log}
}

// PublishMovementRecorded publishes a stock.movement.recorded event.
// Publishing is best effort: a broker failure is logged, never propagated,
// because the movement is already committed.
func (p *Publisher) PublishMovementRecorded(ctx context.Context, movement *repository.StockMovement) {
	if p == nil || p.publisher == nil {
		return
	}

	err := p.publisher.Publish(ctx, messaging.EventStockMovementRecorded, messaging.StockMovementRecordedEvent{
		EntityID:          movement.EntityID,
		LotID:             movement.LotID,
		MovementType:      movement.MovementType,
		Quantity:          movement.Quantity,
		AppliedChange:     movement.AppliedChange,
		ResultingQuantity: movement.ResultingQuantity,
		ActorID:           movement.ActorID,
	})
	if err != nil {
		p.logger.Error().Err(err).
			Str("entity_id", movement.EntityID).
			Str("lot_id", movement.LotID).
			Msg("failed to publish stock movement event")
	}
}
