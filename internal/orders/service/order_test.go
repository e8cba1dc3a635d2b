package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djiba142/Pharmacie-sub000/internal/orders/repository"
	"github.com/djiba142/Pharmacie-sub000/internal/orders/service"
	"github.com/djiba142/Pharmacie-sub000/internal/orders/workflow"
	"github.com/djiba142/Pharmacie-sub000/pkg/actor"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/roles"
)

type fakeDirectory struct {
	known map[string]bool
}

func (d *fakeDirectory) Exists(_ context.Context, id string) (bool, error) {
	return d.known[id], nil
}

// fakeOrderStore mimics the compare-and-set of the real repository: the
// transition only lands when the stored status still belongs to the
// transition's source set.
type fakeOrderStore struct {
	order    *repository.Order
	approved map[string]int
}

func (s *fakeOrderStore) Create(_ context.Context, order *repository.Order) error {
	order.ID = "order-1"
	s.order = order
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (*repository.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, errors.NotFound("order")
	}
	return s.order, nil
}

func (s *fakeOrderStore) ListByRequestingEntity(_ context.Context, _ string, _ workflow.Status) ([]*repository.Order, error) {
	return []*repository.Order{s.order}, nil
}

func (s *fakeOrderStore) ApplyTransition(_ context.Context, _ string, t workflow.Transition, actorID string, effects *repository.TransitionEffects) (*repository.Order, error) {
	if !t.AllowsFrom(s.order.Status) {
		return nil, errors.InvalidTransition(string(t.Action), string(s.order.Status))
	}
	s.order.Status = t.To
	if workflow.IsValidationStep(t.To) {
		s.order.ApproverID = &actorID
	}
	if effects == nil {
		return s.order, nil
	}
	if effects.ApproveLines {
		if s.approved == nil {
			s.approved = map[string]int{}
		}
		for _, line := range s.order.Lines {
			qty := line.QuantityRequested
			if override, ok := effects.ApprovedQuantities[line.ID]; ok {
				qty = override
			}
			value := qty
			line.QuantityApproved = &value
			s.approved[line.ID] = qty
		}
	}
	if effects.SupplyingEntityID != "" {
		supplying := effects.SupplyingEntityID
		s.order.SupplyingEntityID = &supplying
	}
	for _, line := range s.order.Lines {
		if qty, ok := effects.DeliveredQuantities[line.ID]; ok {
			value := qty
			line.QuantityDelivered = &value
		}
	}
	return s.order, nil
}

func newOrderService(store *fakeOrderStore) *service.OrderService {
	directory := &fakeDirectory{known: map[string]bool{"entity-1": true}}
	return service.NewOrderService(store, directory, nil, logger.New("test", "development"))
}

func asActor(role roles.Role, entityID string) context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{
		ID: "staff-" + string(role), Role: role, EntityID: entityID,
	})
}

func draftOrder() *repository.Order {
	return &repository.Order{
		ID:                 "order-1",
		RequestingEntityID: "entity-1",
		Status:             workflow.StatusDraft,
		Lines: []*repository.OrderLine{
			{ID: "line-1", OrderID: "order-1", MedicamentID: "med-1", QuantityRequested: 50},
			{ID: "line-2", OrderID: "order-1", MedicamentID: "med-2", QuantityRequested: 20},
		},
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newOrderService(&fakeOrderStore{})

	_, err := svc.Create(context.Background(), &service.CreateOrderInput{
		RequestingEntityID: "entity-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = svc.Create(context.Background(), &service.CreateOrderInput{
		RequestingEntityID: "entity-1",
		Lines:              []service.CreateOrderLineInput{{MedicamentID: "med-1", QuantityRequested: 0}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCreateOrderScopesActor(t *testing.T) {
	svc := newOrderService(&fakeOrderStore{})
	in := &service.CreateOrderInput{
		RequestingEntityID: "entity-1",
		Lines:              []service.CreateOrderLineInput{{MedicamentID: "med-1", QuantityRequested: 10}},
	}

	_, err := svc.Create(asActor(roles.PeripheralAgent, "entity-2"), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	order, err := svc.Create(asActor(roles.PeripheralAgent, "entity-1"), in)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, order.Status)
}

func TestTransitionHappyPath(t *testing.T) {
	store := &fakeOrderStore{order: draftOrder()}
	svc := newOrderService(store)

	steps := []struct {
		ctx    context.Context
		action workflow.Action
		want   workflow.Status
	}{
		{asActor(roles.PeripheralAgent, "entity-1"), workflow.ActionSubmit, workflow.StatusSubmitted},
		{asActor(roles.PrefectoralDirector, "entity-p"), workflow.ActionValidatePrefecture, workflow.StatusValidatedByPrefecture},
		{asActor(roles.RegionalAdmin, "entity-r"), workflow.ActionValidateRegion, workflow.StatusValidatedByRegion},
		{asActor(roles.NationalPurchasing, "entity-n"), workflow.ActionApproveCentral, workflow.StatusApprovedCentral},
		{asActor(roles.NationalStock, "entity-n"), workflow.ActionPrepare, workflow.StatusInPreparation},
		{asActor(roles.RegionalCourier, "entity-r"), workflow.ActionShip, workflow.StatusShipped},
		{asActor(roles.PeripheralAgent, "entity-1"), workflow.ActionDeliver, workflow.StatusDelivered},
	}

	for _, step := range steps {
		order, err := svc.Transition(step.ctx, &service.TransitionInput{
			OrderID: "order-1",
			Action:  step.action,
		})
		require.NoError(t, err, "action %s", step.action)
		assert.Equal(t, step.want, order.Status)
	}
}

func TestTransitionRejectsWrongRole(t *testing.T) {
	order := draftOrder()
	order.Status = workflow.StatusSubmitted
	svc := newOrderService(&fakeOrderStore{order: order})

	_, err := svc.Transition(asActor(roles.RegionalAdmin, "entity-r"), &service.TransitionInput{
		OrderID: "order-1",
		Action:  workflow.ActionValidatePrefecture,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestTransitionRejectsOutsiderOnOpenAction(t *testing.T) {
	svc := newOrderService(&fakeOrderStore{order: draftOrder()})

	// submit has no role gate but is scoped to the requesting entity.
	_, err := svc.Transition(asActor(roles.PeripheralAgent, "entity-2"), &service.TransitionInput{
		OrderID: "order-1",
		Action:  workflow.ActionSubmit,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestTransitionTerminalOrder(t *testing.T) {
	order := draftOrder()
	order.Status = workflow.StatusDelivered
	svc := newOrderService(&fakeOrderStore{order: order})

	for _, action := range []workflow.Action{
		workflow.ActionSubmit, workflow.ActionCancel, workflow.ActionApproveCentral,
	} {
		_, err := svc.Transition(asActor(roles.NationalAdmin, "entity-n"), &service.TransitionInput{
			OrderID: "order-1",
			Action:  action,
		})
		require.Error(t, err, "action %s", action)
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	}
}

func TestCentralApprovalBypassAndQuantities(t *testing.T) {
	order := draftOrder()
	order.Status = workflow.StatusSubmitted
	store := &fakeOrderStore{order: order}
	svc := newOrderService(store)

	updated, err := svc.Transition(asActor(roles.NationalAdmin, "entity-n"), &service.TransitionInput{
		OrderID:            "order-1",
		Action:             workflow.ActionApproveCentral,
		ApprovedQuantities: map[string]int{"line-1": 30},
		SupplyingEntityID:  "entity-n",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApprovedCentral, updated.Status)

	// Overridden line takes the approver's figure, the other defaults to
	// its requested quantity.
	assert.Equal(t, 30, store.approved["line-1"])
	assert.Equal(t, 20, store.approved["line-2"])
	require.NotNil(t, updated.SupplyingEntityID)
	assert.Equal(t, "entity-n", *updated.SupplyingEntityID)
}

func TestDeliverRecordsQuantities(t *testing.T) {
	order := draftOrder()
	order.Status = workflow.StatusShipped
	store := &fakeOrderStore{order: order}
	svc := newOrderService(store)

	updated, err := svc.Transition(asActor(roles.PeripheralAgent, "entity-1"), &service.TransitionInput{
		OrderID:             "order-1",
		Action:              workflow.ActionDeliver,
		DeliveredQuantities: map[string]int{"line-1": 28, "line-2": 20},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDelivered, updated.Status)
	require.NotNil(t, updated.Lines[0].QuantityDelivered)
	assert.Equal(t, 28, *updated.Lines[0].QuantityDelivered)
}

func TestAvailableActionsExactness(t *testing.T) {
	order := draftOrder()
	order.Status = workflow.StatusSubmitted
	svc := newOrderService(&fakeOrderStore{order: order})

	actions, err := svc.AvailableActions(asActor(roles.PrefectoralDirector, "entity-p"), "order-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []workflow.Action{workflow.ActionValidatePrefecture}, actions)

	actions, err = svc.AvailableActions(asActor(roles.NationalAdmin, "entity-n"), "order-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []workflow.Action{workflow.ActionApproveCentral, workflow.ActionCancel}, actions)

	actions, err = svc.AvailableActions(asActor(roles.PeripheralAgent, "entity-1"), "order-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []workflow.Action{workflow.ActionCancel}, actions)
}
