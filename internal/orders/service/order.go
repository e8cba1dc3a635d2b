package service

import (
	"context"

	"github.com/djiba142/Pharmacie-sub000/internal/orders/repository"
	"github.com/djiba142/Pharmacie-sub000/internal/orders/workflow"
	"github.com/djiba142/Pharmacie-sub000/pkg/actor"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/metrics"
	"github.com/djiba142/Pharmacie-sub000/pkg/roles"
)

// EntityDirectory resolves organizational entities.
type EntityDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// OrderStore is the persistence surface the service needs.
type OrderStore interface {
	Create(ctx context.Context, order *repository.Order) error
	GetByID(ctx context.Context, id string) (*repository.Order, error)
	ListByRequestingEntity(ctx context.Context, entityID string, status workflow.Status) ([]*repository.Order, error)
	ApplyTransition(ctx context.Context, orderID string, t workflow.Transition, actorID string, effects *repository.TransitionEffects) (*repository.Order, error)
}

// TransitionPublisher publishes order domain events.
type TransitionPublisher interface {
	PublishOrderCreated(ctx context.Context, order *repository.Order)
	PublishOrderTransitioned(ctx context.Context, order *repository.Order, action workflow.Action, from workflow.Status)
}

// OrderService handles order workflow business logic
type OrderService struct {
	store     OrderStore
	entities  EntityDirectory
	publisher TransitionPublisher
	logger    *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, entities EntityDirectory, publisher TransitionPublisher, log *logger.Logger) *OrderService {
	return &OrderService{
		store:     store,
		entities:  entities,
		publisher: publisher,
		logger:    log,
	}
}

// CreateOrderInput carries one order creation command.
type CreateOrderInput struct {
	RequestingEntityID string
	Priority           string
	Comment            string
	Lines              []CreateOrderLineInput
}

// CreateOrderLineInput is one requested line.
type CreateOrderLineInput struct {
	MedicamentID      string
	QuantityRequested int
}

func (in *CreateOrderInput) validate() error {
	details := make(map[string]string)
	if in.Priority != "" && !repository.ValidPriority(in.Priority) {
		details["priority"] = "must be Normal or Urgent"
	}
	if len(in.Lines) == 0 {
		details["lines"] = "an order needs at least one line"
	}
	for _, line := range in.Lines {
		if line.QuantityRequested <= 0 {
			details["lines"] = "requested quantities must be positive"
			break
		}
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// Create creates an order in Draft. Any authenticated staff of the
// requesting entity may create; central-agency roles may create on behalf
// of any entity.
func (s *OrderService) Create(ctx context.Context, in *CreateOrderInput) (*repository.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if a := actor.FromContext(ctx); a != nil {
		if !roles.IsNational(a.Role) && a.EntityID != in.RequestingEntityID {
			return nil, errors.Forbidden("actor is not staff of the requesting entity")
		}
	}

	exists, err := s.entities.Exists(ctx, in.RequestingEntityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("requesting entity")
	}

	order := &repository.Order{
		RequestingEntityID: in.RequestingEntityID,
		Priority:           in.Priority,
		Comment:            in.Comment,
	}
	for _, line := range in.Lines {
		order.Lines = append(order.Lines, &repository.OrderLine{
			MedicamentID:      line.MedicamentID,
			QuantityRequested: line.QuantityRequested,
		})
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("requesting_entity_id", order.RequestingEntityID).
		Int("lines", len(order.Lines)).
		Msg("order created")

	if s.publisher != nil {
		s.publisher.PublishOrderCreated(ctx, order)
	}
	return order, nil
}

// Get gets an order with its lines.
func (s *OrderService) Get(ctx context.Context, id string) (*repository.Order, error) {
	return s.store.GetByID(ctx, id)
}

// ListByRequestingEntity lists an entity's orders, optionally filtered by status.
func (s *OrderService) ListByRequestingEntity(ctx context.Context, entityID string, status workflow.Status) ([]*repository.Order, error) {
	if status != "" && !workflow.ValidStatus(status) {
		return nil, errors.Validation(map[string]string{"status": "unknown order status"})
	}
	return s.store.ListByRequestingEntity(ctx, entityID, status)
}

// actorMayAct checks the role gate of one transition for the given order.
// Role-gated rows need membership in the row's role set; open rows need the
// actor to belong to the order's requesting entity (central roles pass
// everywhere, they administer the whole tree).
func actorMayAct(t workflow.Transition, a *actor.Actor, order *repository.Order) bool {
	if a == nil {
		// System callers bypass the role gate.
		return true
	}
	if t.Roles != nil {
		return roles.Contains(t.Roles, a.Role)
	}
	return roles.IsNational(a.Role) || a.EntityID == order.RequestingEntityID
}

// AvailableActions lists the workflow actions the calling actor may apply to
// the order right now. The same filter runs again inside Transition, so a
// stale menu can never smuggle an illegal action through.
func (s *OrderService) AvailableActions(ctx context.Context, orderID string) ([]workflow.Action, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	a := actor.FromContext(ctx)
	var actions []workflow.Action
	for _, t := range workflow.Table {
		if t.AllowsFrom(order.Status) && actorMayAct(t, a, order) {
			actions = append(actions, t.Action)
		}
	}
	return actions, nil
}

// TransitionInput carries one workflow command.
type TransitionInput struct {
	OrderID string
	Action  workflow.Action

	// ApprovedQuantities overrides quantity_approved per line id on
	// approveCentral; unlisted lines default to their requested quantity.
	ApprovedQuantities map[string]int

	// DeliveredQuantities records quantity_delivered per line id on deliver.
	DeliveredQuantities map[string]int

	// SupplyingEntityID optionally assigns the fulfilling entity on
	// approveCentral.
	SupplyingEntityID string
}

// Transition applies one workflow action to an order. Availability is
// re-checked server-side against the live order and again atomically inside
// the row update; of two racing approvers exactly one wins and the loser
// gets an InvalidTransition error. Approval and delivery quantities ride in
// the same transaction as the status change, so a failed quantity write
// rolls the transition back instead of leaving a half-approved order.
func (s *OrderService) Transition(ctx context.Context, in *TransitionInput) (*repository.Order, error) {
	t, ok := workflow.Lookup(in.Action)
	if !ok {
		return nil, errors.Validation(map[string]string{"action": "unknown workflow action"})
	}

	order, err := s.store.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	a := actor.FromContext(ctx)
	if !t.AllowsFrom(order.Status) || !actorMayAct(t, a, order) {
		metrics.TransitionRejectionsTotal.Inc()
		return nil, errors.InvalidTransition(string(in.Action), string(order.Status))
	}

	var effects *repository.TransitionEffects
	switch in.Action {
	case workflow.ActionApproveCentral:
		effects = &repository.TransitionEffects{
			ApproveLines:       true,
			ApprovedQuantities: in.ApprovedQuantities,
			SupplyingEntityID:  in.SupplyingEntityID,
		}
	case workflow.ActionDeliver:
		if len(in.DeliveredQuantities) > 0 {
			effects = &repository.TransitionEffects{DeliveredQuantities: in.DeliveredQuantities}
		}
	}

	fromStatus := order.Status
	updated, err := s.store.ApplyTransition(ctx, in.OrderID, t, actorID(a), effects)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidTransition) {
			metrics.TransitionRejectionsTotal.Inc()
		}
		return nil, err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(in.Action)).Inc()

	s.logger.Info().
		Str("order_id", in.OrderID).
		Str("action", string(in.Action)).
		Str("from_status", string(fromStatus)).
		Str("to_status", string(updated.Status)).
		Str("actor_id", actorID(a)).
		Msg("order transitioned")

	if s.publisher != nil {
		s.publisher.PublishOrderTransitioned(ctx, updated, in.Action, fromStatus)
	}
	return updated, nil
}

func actorID(a *actor.Actor) string {
	if a == nil {
		return ""
	}
	return a.ID
}
