package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djiba142/Pharmacie-sub000/internal/stock/repository"
	"github.com/djiba142/Pharmacie-sub000/internal/stock/service"
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

type fakeStore struct {
	record    *repository.StockRecord
	movements []*repository.StockMovement
	recorded  *repository.StockMovement
	err       error
}

func (s *fakeStore) RecordMovement(_ context.Context, movement *repository.StockMovement, _ int) (*repository.StockRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	newQuantity, change := repository.ApplyMovement(s.record.CurrentQuantity, movement.MovementType, movement.Quantity)
	movement.AppliedChange = change
	movement.ResultingQuantity = newQuantity
	s.record.CurrentQuantity = newQuantity
	s.recorded = movement
	s.movements = append(s.movements, movement)
	return s.record, nil
}

func (s *fakeStore) GetRecord(_ context.Context, _, _ string) (*repository.StockRecord, error) {
	if s.record == nil {
		return nil, errors.NotFound("stock record")
	}
	return s.record, nil
}

func (s *fakeStore) UpdateThresholds(_ context.Context, _, _ string, alert, minimal int) (*repository.StockRecord, error) {
	s.record.AlertThreshold = alert
	s.record.MinimalThreshold = minimal
	return s.record, nil
}

func (s *fakeStore) ListByEntity(_ context.Context, _ string) ([]*repository.StockLine, error) {
	return nil, nil
}

func (s *fakeStore) ListMovements(_ context.Context, _, _ string) ([]*repository.StockMovement, error) {
	return s.movements, nil
}

func (s *fakeStore) ReplaySnapshot(_ context.Context, _, _ string) (*repository.StockRecord, []*repository.StockMovement, error) {
	if s.record == nil {
		return nil, nil, errors.NotFound("stock record")
	}
	return s.record, s.movements, nil
}

func newService(store *fakeStore, known ...string) *service.StockService {
	directory := &fakeDirectory{known: map[string]bool{}}
	for _, id := range known {
		directory.known[id] = true
	}
	return service.NewStockService(store, directory, directory, nil, 3, logger.New("test", "development"))
}

func TestRecordMovementValidation(t *testing.T) {
	store := &fakeStore{record: &repository.StockRecord{}}
	svc := newService(store, "entity-1", "lot-1")

	tests := []struct {
		name  string
		input *service.MovementInput
	}{
		{"unknown movement type", &service.MovementInput{
			EntityID: "entity-1", LotID: "lot-1", MovementType: "Transfer", Quantity: 1, ActorID: "a",
		}},
		{"zero quantity entree", &service.MovementInput{
			EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementEntree, Quantity: 0, ActorID: "a",
		}},
		{"negative quantity sortie", &service.MovementInput{
			EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementSortie, Quantity: -5, ActorID: "a",
		}},
		{"adjustment without comment", &service.MovementInput{
			EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementAdjustment, Quantity: 10, ActorID: "a",
		}},
		{"negative adjustment", &service.MovementInput{
			EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementAdjustment, Quantity: -1, ActorID: "a", Comment: "count",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordMovement(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
			assert.Nil(t, store.recorded, "no movement may be recorded on validation failure")
		})
	}
}

func TestRecordMovementUnknownEntityAndLot(t *testing.T) {
	store := &fakeStore{record: &repository.StockRecord{}}
	svc := newService(store, "entity-1", "lot-1")

	_, err := svc.RecordMovement(context.Background(), &service.MovementInput{
		EntityID: "ghost", LotID: "lot-1", MovementType: repository.MovementEntree, Quantity: 5, ActorID: "a",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.RecordMovement(context.Background(), &service.MovementInput{
		EntityID: "entity-1", LotID: "ghost", MovementType: repository.MovementEntree, Quantity: 5, ActorID: "a",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRecordMovementScopesActor(t *testing.T) {
	store := &fakeStore{record: &repository.StockRecord{}}
	svc := newService(store, "entity-1", "lot-1")

	outsider := actor.WithActor(context.Background(), &actor.Actor{
		ID: "staff-9", Role: roles.PeripheralAgent, EntityID: "entity-2",
	})
	_, err := svc.RecordMovement(outsider, &service.MovementInput{
		EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementEntree, Quantity: 5, ActorID: "staff-9",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	national := actor.WithActor(context.Background(), &actor.Actor{
		ID: "staff-1", Role: roles.NationalStock, EntityID: "entity-root",
	})
	_, err = svc.RecordMovement(national, &service.MovementInput{
		EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementEntree, Quantity: 5, ActorID: "staff-1",
	})
	require.NoError(t, err)
}

func TestVerifyReplayConsistent(t *testing.T) {
	store := &fakeStore{record: &repository.StockRecord{EntityID: "entity-1", LotID: "lot-1"}}
	svc := newService(store, "entity-1", "lot-1")
	ctx := context.Background()

	inputs := []*service.MovementInput{
		{EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementEntree, Quantity: 100, ActorID: "a"},
		{EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementSortie, Quantity: 30, ActorID: "a"},
		{EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementSortie, Quantity: 1000, ActorID: "a"},
		{EntityID: "entity-1", LotID: "lot-1", MovementType: repository.MovementAdjustment, Quantity: 42, ActorID: "a", Comment: "physical count"},
	}
	for _, in := range inputs {
		_, err := svc.RecordMovement(ctx, in)
		require.NoError(t, err)
	}

	result, err := svc.VerifyReplay(ctx, "entity-1", "lot-1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, 42, result.ProjectedQuantity)
	assert.Equal(t, 42, result.ReplayedQuantity)
	assert.Equal(t, 4, result.MovementCount)
}

func TestVerifyReplayDivergence(t *testing.T) {
	store := &fakeStore{
		record: &repository.StockRecord{EntityID: "entity-1", LotID: "lot-1", CurrentQuantity: 99},
		movements: []*repository.StockMovement{
			{MovementType: repository.MovementEntree, Quantity: 10, AppliedChange: 10, ResultingQuantity: 10},
		},
	}
	svc := newService(store, "entity-1", "lot-1")

	result, err := svc.VerifyReplay(context.Background(), "entity-1", "lot-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConsistencyViolation))
	require.NotNil(t, result)
	assert.False(t, result.Consistent)
	assert.Equal(t, 99, result.ProjectedQuantity)
	assert.Equal(t, 10, result.ReplayedQuantity)
}

// Verification reads the projection and the ledger from one snapshot: a
// record that has since moved on must not make the replay look divergent.
func TestVerifyReplayUsesOneSnapshot(t *testing.T) {
	store := &snapshotStore{
		fakeStore: fakeStore{
			record: &repository.StockRecord{EntityID: "entity-1", LotID: "lot-1", CurrentQuantity: 99},
		},
		snapRecord: &repository.StockRecord{EntityID: "entity-1", LotID: "lot-1", CurrentQuantity: 10},
		snapMovements: []*repository.StockMovement{
			{MovementType: repository.MovementEntree, Quantity: 10, AppliedChange: 10, ResultingQuantity: 10},
		},
	}
	directory := &fakeDirectory{known: map[string]bool{"entity-1": true}}
	svc := service.NewStockService(store, directory, directory, nil, 3, logger.New("test", "development"))

	result, err := svc.VerifyReplay(context.Background(), "entity-1", "lot-1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, 10, result.ProjectedQuantity)
	assert.Equal(t, 10, result.ReplayedQuantity)
}

type snapshotStore struct {
	fakeStore
	snapRecord    *repository.StockRecord
	snapMovements []*repository.StockMovement
}

func (s *snapshotStore) ReplaySnapshot(_ context.Context, _, _ string) (*repository.StockRecord, []*repository.StockMovement, error) {
	return s.snapRecord, s.snapMovements, nil
}

func TestListByEntityClassifiesLines(t *testing.T) {
	now := time.Now().UTC()
	store := &linesStore{lines: []*repository.StockLine{
		{StockRecord: repository.StockRecord{CurrentQuantity: 100, AlertThreshold: 20, MinimalThreshold: 5}, ExpiryDate: now.AddDate(1, 0, 0)},
		{StockRecord: repository.StockRecord{CurrentQuantity: 3, AlertThreshold: 20, MinimalThreshold: 5}, ExpiryDate: now.AddDate(1, 0, 0)},
		{StockRecord: repository.StockRecord{CurrentQuantity: 100, AlertThreshold: 20, MinimalThreshold: 5}, ExpiryDate: now.AddDate(0, 0, -1)},
	}}
	directory := &fakeDirectory{known: map[string]bool{"entity-1": true}}
	svc := service.NewStockService(store, directory, directory, nil, 3, logger.New("test", "development"))

	lines, err := svc.ListByEntity(context.Background(), "entity-1")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, string(service.StatusNormal), lines[0].Status)
	assert.Equal(t, string(service.StatusCritical), lines[1].Status)
	assert.Equal(t, string(service.StatusExpired), lines[2].Status)
}

type linesStore struct {
	fakeStore
	lines []*repository.StockLine
}

func (s *linesStore) ListByEntity(_ context.Context, _ string) ([]*repository.StockLine, error) {
	return s.lines, nil
}
