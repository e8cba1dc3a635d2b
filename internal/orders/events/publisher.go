package events

import (
	"context"

	"github.com/djiba142/Pharmacie-sub000/internal/orders/repository"
	"github.com/djiba142/Pharmacie-sub000/internal/orders/workflow"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/messaging"
)

// Publisher publishes order domain events. A nil Publisher drops all events.
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates an order event publisher.
func NewPublisher(publisher *messaging.Publisher, log *logger.Logger) *Publisher {
	return &Publisher{publisher: publisher, logger: log}
}

// PublishOrderCreated publishes an order.created event.
func (p *Publisher) PublishOrderCreated(ctx context.Context, order *repository.Order) {
	if p == nil || p.publisher == nil {
		return
	}
	err := p.publisher.Publish(ctx, messaging.EventOrderCreated, map[string]interface{}{
		"order_id":             order.ID,
		"requesting_entity_id": order.RequestingEntityID,
		"priority":             order.Priority,
		"line_count":           len(order.Lines),
	})
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to publish order created event")
	}
}

// PublishOrderTransitioned publishes an order.transitioned event. Best
// effort; the transition is already committed.
func (p *Publisher) PublishOrderTransitioned(ctx context.Context, order *repository.Order, action workflow.Action, from workflow.Status) {
	if p == nil || p.publisher == nil {
		return
	}
	var actorID string
	if order.ApproverID != nil {
		actorID = *order.ApproverID
	}
	err := p.publisher.Publish(ctx, messaging.EventOrderTransitioned, messaging.OrderTransitionedEvent{
		OrderID:    order.ID,
		Action:     string(action),
		FromStatus: string(from),
		ToStatus:   string(order.Status),
		ActorID:    actorID,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to publish order transitioned event")
	}
}
