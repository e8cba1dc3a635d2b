package service

import (
	"context"
	"fmt"
	"time"

	"github.com/djiba142/Pharmacie-sub000/internal/stock/repository"
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

// LotDirectory resolves lots from the catalog.
type LotDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// StockStore is the persistence surface the service needs.
type StockStore interface {
	RecordMovement(ctx context.Context, movement *repository.StockMovement, attempts int) (*repository.StockRecord, error)
	GetRecord(ctx context.Context, entityID, lotID string) (*repository.StockRecord, error)
	UpdateThresholds(ctx context.Context, entityID, lotID string, alertThreshold, minimalThreshold int) (*repository.StockRecord, error)
	ListByEntity(ctx context.Context, entityID string) ([]*repository.StockLine, error)
	ListMovements(ctx context.Context, entityID, lotID string) ([]*repository.StockMovement, error)
	ReplaySnapshot(ctx context.Context, entityID, lotID string) (*repository.StockRecord, []*repository.StockMovement, error)
}

// MovementPublisher publishes stock domain events.
type MovementPublisher interface {
	PublishMovementRecorded(ctx context.Context, movement *repository.StockMovement)
}

// StockService handles stock ledger business logic
type StockService struct {
	store     StockStore
	entities  EntityDirectory
	lots      LotDirectory
	publisher MovementPublisher
	retries   int
	logger    *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	store StockStore,
	entities EntityDirectory,
	lots LotDirectory,
	publisher MovementPublisher,
	retries int,
	log *logger.Logger,
) *StockService {
	return &StockService{
		store:     store,
		entities:  entities,
		lots:      lots,
		publisher: publisher,
		retries:   retries,
		logger:    log,
	}
}

// MovementInput carries one movement command.
type MovementInput struct {
	EntityID     string
	LotID        string
	MovementType string
	Quantity     int
	ActorID      string
	Comment      string
}

func (in *MovementInput) validate() error {
	details := make(map[string]string)

	if !repository.ValidMovementType(in.MovementType) {
		details["movement_type"] = "must be one of: Entree, Sortie, Adjustment"
	}
	switch in.MovementType {
	case repository.MovementEntree, repository.MovementSortie:
		if in.Quantity <= 0 {
			details["quantity"] = "must be positive for Entree and Sortie"
		}
	case repository.MovementAdjustment:
		if in.Quantity < 0 {
			details["quantity"] = "must not be negative for Adjustment"
		}
		if in.Comment == "" {
			details["comment"] = "required for Adjustment movements"
		}
	}
	if in.ActorID == "" {
		details["actor_id"] = "this field is required"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// authorize checks that the acting staff member may touch the entity's
// stock: central-agency roles act anywhere, everyone else only within
// their own entity.
func authorize(ctx context.Context, entityID string) error {
	a := actor.FromContext(ctx)
	if a == nil {
		// System operations (scanners, tooling) carry no actor.
		return nil
	}
	if roles.IsNational(a.Role) || a.EntityID == entityID {
		return nil
	}
	return errors.Forbidden("actor is not in scope for this entity")
}

// RecordMovement validates and commits one stock movement. The projection
// update and the ledger append happen in one transaction; on success the
// post-mutation record is returned so callers never need a second read.
func (s *StockService) RecordMovement(ctx context.Context, in *MovementInput) (*repository.StockRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := authorize(ctx, in.EntityID); err != nil {
		return nil, err
	}

	exists, err := s.entities.Exists(ctx, in.EntityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("entity")
	}

	exists, err = s.lots.Exists(ctx, in.LotID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("lot")
	}

	movement := &repository.StockMovement{
		EntityID:     in.EntityID,
		LotID:        in.LotID,
		MovementType: in.MovementType,
		Quantity:     in.Quantity,
		ActorID:      in.ActorID,
		Comment:      in.Comment,
	}

	record, err := s.store.RecordMovement(ctx, movement, s.retries)
	if err != nil {
		if errors.Is(err, errors.ErrConcurrencyConflict) {
			metrics.SerializationConflictsTotal.Inc()
		}
		return nil, err
	}

	metrics.StockMovementsTotal.WithLabelValues(in.MovementType).Inc()

	s.logger.Info().
		Str("entity_id", in.EntityID).
		Str("lot_id", in.LotID).
		Str("movement_type", in.MovementType).
		Int("quantity", in.Quantity).
		Int("applied_change", movement.AppliedChange).
		Int("resulting_quantity", movement.ResultingQuantity).
		Str("actor_id", in.ActorID).
		Msg("stock movement recorded")

	if s.publisher != nil {
		s.publisher.PublishMovementRecorded(ctx, movement)
	}

	return record, nil
}

// GetRecord reads the projected stock record for one (entity, lot) pair.
func (s *StockService) GetRecord(ctx context.Context, entityID, lotID string) (*repository.StockRecord, error) {
	return s.store.GetRecord(ctx, entityID, lotID)
}

// GetCurrentQuantity reads the projected quantity on hand.
func (s *StockService) GetCurrentQuantity(ctx context.Context, entityID, lotID string) (int, error) {
	record, err := s.store.GetRecord(ctx, entityID, lotID)
	if err != nil {
		return 0, err
	}
	return record.CurrentQuantity, nil
}

// UpdateThresholds sets the alert/minimal thresholds for a stock line.
func (s *StockService) UpdateThresholds(ctx context.Context, entityID, lotID string, alertThreshold, minimalThreshold int) (*repository.StockRecord, error) {
	if err := authorize(ctx, entityID); err != nil {
		return nil, err
	}
	return s.store.UpdateThresholds(ctx, entityID, lotID, alertThreshold, minimalThreshold)
}

// ListByEntity lists the entity's stock lines with their classified status.
func (s *StockService) ListByEntity(ctx context.Context, entityID string) ([]*repository.StockLine, error) {
	exists, err := s.entities.Exists(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("entity")
	}

	lines, err := s.store.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, line := range lines {
		line.Status = string(Classify(
			line.CurrentQuantity, line.AlertThreshold, line.MinimalThreshold,
			line.ExpiryDate, now,
		))
	}
	return lines, nil
}

// ReplayResult reports a ledger replay against the projection.
type ReplayResult struct {
	EntityID          string `json:"entity_id"`
	LotID             string `json:"lot_id"`
	ProjectedQuantity int    `json:"projected_quantity"`
	ReplayedQuantity  int    `json:"replayed_quantity"`
	MovementCount     int    `json:"movement_count"`
	Consistent        bool   `json:"consistent"`
}

// VerifyReplay recomputes the quantity from the ledger and compares it with
// the projection. Both sides come from one snapshot read, so a movement
// committing mid-verification cannot fake a divergence. A real divergence is
// a ConsistencyViolation: it is logged and surfaced, never silently
// corrected, because rewriting either side would hide data corruption.
func (s *StockService) VerifyReplay(ctx context.Context, entityID, lotID string) (*ReplayResult, error) {
	record, movements, err := s.store.ReplaySnapshot(ctx, entityID, lotID)
	if err != nil {
		return nil, err
	}

	replayed := repository.ReplayMovements(movements)
	result := &ReplayResult{
		EntityID:          entityID,
		LotID:             lotID,
		ProjectedQuantity: record.CurrentQuantity,
		ReplayedQuantity:  replayed,
		MovementCount:     len(movements),
		Consistent:        replayed == record.CurrentQuantity,
	}

	if !result.Consistent {
		s.logger.Error().
			Str("entity_id", entityID).
			Str("lot_id", lotID).
			Int("projected", record.CurrentQuantity).
			Int("replayed", replayed).
			Msg("ledger replay diverged from stock projection")
		return result, errors.ConsistencyViolation(
			fmt.Sprintf("ledger replay yields %d but projection holds %d for (%s, %s)",
				replayed, record.CurrentQuantity, entityID, lotID))
	}

	return result, nil
}

// ListMovements lists the ledger for one stock line.
func (s *StockService) ListMovements(ctx context.Context, entityID, lotID string) ([]*repository.StockMovement, error) {
	return s.store.ListMovements(ctx, entityID, lotID)
}
