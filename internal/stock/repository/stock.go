package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
)

// Movement types
const (
	MovementEntree     = "Entree"
	MovementSortie     = "Sortie"
	MovementAdjustment = "Adjustment"
)

// ValidMovementType reports whether t is a known movement type.
func ValidMovementType(t string) bool {
	switch t {
	case MovementEntree, MovementSortie, MovementAdjustment:
		return true
	}
	return false
}

// StockRecord is the projected quantity on hand for one (entity, lot) pair.
// It is a cache over the movement ledger: replaying the movements must
// reproduce CurrentQuantity exactly.
type StockRecord struct {
	EntityID         string     `db:"entity_id" json:"entity_id"`
	LotID            string     `db:"lot_id" json:"lot_id"`
	CurrentQuantity  int        `db:"current_quantity" json:"current_quantity"`
	AlertThreshold   int        `db:"alert_threshold" json:"alert_threshold"`
	MinimalThreshold int        `db:"minimal_threshold" json:"minimal_threshold"`
	LastMovementAt   *time.Time `db:"last_movement_at" json:"last_movement_at,omitempty"`
	Version          int64      `db:"version" json:"version"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// StockMovement is one append-only ledger entry. Rows are never updated or
// deleted. AppliedChange carries the signed effect actually applied, so a
// replay reproduces the projection even when a Sortie was clamped at zero.
// For an Adjustment, Quantity is the absolute target and AppliedChange the
// delta it caused.
//
// Seq is assigned at insert time, while the projection row lock is held, so
// it reflects the order movements actually applied. CreatedAt is the
// transaction start timestamp and can disagree with that order when two
// transactions race for the lock; it is display metadata, never a sort key
// for replay.
type StockMovement struct {
	ID                string    `db:"id" json:"id"`
	Seq               int64     `db:"seq" json:"seq"`
	EntityID          string    `db:"entity_id" json:"entity_id"`
	LotID             string    `db:"lot_id" json:"lot_id"`
	MovementType      string    `db:"movement_type" json:"movement_type"`
	Quantity          int       `db:"quantity" json:"quantity"`
	AppliedChange     int       `db:"applied_change" json:"applied_change"`
	ResultingQuantity int       `db:"resulting_quantity" json:"resulting_quantity"`
	ActorID           string    `db:"actor_id" json:"actor_id"`
	Comment           string    `db:"comment" json:"comment"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ApplyMovement computes the new quantity and the signed effect of applying
// one movement to the current quantity.
//
// Entree adds, Adjustment sets the value absolutely, and Sortie clamps at
// zero: a deduction larger than the quantity on hand is silently absorbed.
// The clamp mirrors the observed behavior of the legacy system; whether a
// shortfall should instead be rejected is an open product question.
func ApplyMovement(current int, movementType string, quantity int) (newQuantity, appliedChange int) {
	switch movementType {
	case MovementEntree:
		return current + quantity, quantity
	case MovementSortie:
		newQuantity = current - quantity
		if newQuantity < 0 {
			newQuantity = 0
		}
		return newQuantity, newQuantity - current
	case MovementAdjustment:
		return quantity, quantity - current
	default:
		return current, 0
	}
}

// ReplayMovements folds a ledger slice (in application order, see Seq) into
// the quantity it produces. This is the ground truth the projection must match.
func ReplayMovements(movements []*StockMovement) int {
	quantity := 0
	for _, m := range movements {
		if m.MovementType == MovementAdjustment {
			quantity = m.Quantity
			continue
		}
		quantity += m.AppliedChange
	}
	return quantity
}

// StockRepository handles the stock projection and the movement ledger
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

const selectRecordForUpdate = `
	SELECT entity_id, lot_id, current_quantity, alert_threshold, minimal_threshold, last_movement_at, version, created_at
	FROM stock_records WHERE entity_id = $1 AND lot_id = $2
	FOR UPDATE
`

const insertRecord = `
	INSERT INTO stock_records (entity_id, lot_id, current_quantity, alert_threshold, minimal_threshold)
	VALUES ($1, $2, 0, 0, 0)
	RETURNING entity_id, lot_id, current_quantity, alert_threshold, minimal_threshold, last_movement_at, version, created_at
`

const updateRecordQuantity = `
	UPDATE stock_records
	SET current_quantity = $3, last_movement_at = $4, version = version + 1
	WHERE entity_id = $1 AND lot_id = $2
`

const insertMovement = `
	INSERT INTO stock_movements (id, entity_id, lot_id, movement_type, quantity, applied_change, resulting_quantity, actor_id, comment)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING seq, created_at
`

// RecordMovement applies one movement as a single transaction: lock (or
// lazily create) the stock row, compute the new quantity, update the
// projection and append the ledger entry. Projection and ledger succeed or
// fail together; serialization conflicts are retried up to the caller-supplied
// attempt count before surfacing as ConcurrencyConflict.
func (r *StockRepository) RecordMovement(ctx context.Context, movement *StockMovement, attempts int) (*StockRecord, error) {
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}

	var record StockRecord

	err := r.db.TransactionWithRetry(ctx, attempts, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &record, selectRecordForUpdate, movement.EntityID, movement.LotID)
		if err == sql.ErrNoRows {
			// Lazily create the projection row on first movement.
			err = tx.GetContext(ctx, &record, insertRecord, movement.EntityID, movement.LotID)
		}
		if err != nil {
			return err
		}

		newQuantity, appliedChange := ApplyMovement(record.CurrentQuantity, movement.MovementType, movement.Quantity)
		movement.AppliedChange = appliedChange
		movement.ResultingQuantity = newQuantity

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, updateRecordQuantity,
			movement.EntityID, movement.LotID, newQuantity, now); err != nil {
			return err
		}

		if err := tx.QueryRowxContext(ctx, insertMovement,
			movement.ID, movement.EntityID, movement.LotID, movement.MovementType,
			movement.Quantity, movement.AppliedChange, movement.ResultingQuantity,
			movement.ActorID, movement.Comment,
		).Scan(&movement.Seq, &movement.CreatedAt); err != nil {
			return err
		}

		record.CurrentQuantity = newQuantity
		record.LastMovementAt = &now
		record.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

const selectRecord = `
	SELECT entity_id, lot_id, current_quantity, alert_threshold, minimal_threshold, last_movement_at, version, created_at
	FROM stock_records WHERE entity_id = $1 AND lot_id = $2
`

// GetRecord gets the stock record for one (entity, lot) pair.
func (r *StockRepository) GetRecord(ctx context.Context, entityID, lotID string) (*StockRecord, error) {
	var record StockRecord
	err := r.db.GetContext(ctx, &record, selectRecord, entityID, lotID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock record")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateThresholds sets the alert and minimal thresholds of a stock record.
func (r *StockRepository) UpdateThresholds(ctx context.Context, entityID, lotID string, alertThreshold, minimalThreshold int) (*StockRecord, error) {
	if minimalThreshold > alertThreshold {
		return nil, errors.Validation(map[string]string{
			"minimal_threshold": "must not exceed the alert threshold",
		})
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE stock_records
		SET alert_threshold = $3, minimal_threshold = $4, version = version + 1
		WHERE entity_id = $1 AND lot_id = $2
	`, entityID, lotID, alertThreshold, minimalThreshold)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, errors.NotFound("stock record")
	}
	return r.GetRecord(ctx, entityID, lotID)
}

// StockLine is a stock record joined with its lot and medicament for display.
type StockLine struct {
	StockRecord
	BatchNumber    string    `db:"batch_number" json:"batch_number"`
	ExpiryDate     time.Time `db:"expiry_date" json:"expiry_date"`
	LotStatus      string    `db:"lot_status" json:"lot_status"`
	MedicamentID   string    `db:"medicament_id" json:"medicament_id"`
	DCI            string    `db:"dci" json:"dci"`
	CommercialName string    `db:"commercial_name" json:"commercial_name"`
	Status         string    `db:"-" json:"status"`
}

// ListByEntity lists all stock lines held by an entity.
func (r *StockRepository) ListByEntity(ctx context.Context, entityID string) ([]*StockLine, error) {
	var lines []*StockLine
	query := `
		SELECT sr.entity_id, sr.lot_id, sr.current_quantity, sr.alert_threshold, sr.minimal_threshold,
		       sr.last_movement_at, sr.version, sr.created_at,
		       l.batch_number, l.expiry_date, l.status AS lot_status,
		       m.id AS medicament_id, m.dci, m.commercial_name
		FROM stock_records sr
		JOIN lots l ON l.id = sr.lot_id
		JOIN medicaments m ON m.id = l.medicament_id
		WHERE sr.entity_id = $1
		ORDER BY m.dci, l.expiry_date
	`
	if err := r.db.SelectContext(ctx, &lines, query, entityID); err != nil {
		return nil, err
	}
	return lines, nil
}

const selectMovements = `
	SELECT id, seq, entity_id, lot_id, movement_type, quantity, applied_change, resulting_quantity, actor_id, comment, created_at
	FROM stock_movements
	WHERE entity_id = $1 AND lot_id = $2
	ORDER BY seq
`

// ListMovements lists the ledger for one (entity, lot) pair in application
// order.
func (r *StockRepository) ListMovements(ctx context.Context, entityID, lotID string) ([]*StockMovement, error) {
	var movements []*StockMovement
	if err := r.db.SelectContext(ctx, &movements, selectMovements, entityID, lotID); err != nil {
		return nil, err
	}
	return movements, nil
}

// ReplaySnapshot reads the projection and its complete ledger under one
// repeatable read transaction, so both sides describe the same point in
// time. Two separate reads could interleave with a committing movement and
// flag a healthy store as corrupt.
func (r *StockRepository) ReplaySnapshot(ctx context.Context, entityID, lotID string) (*StockRecord, []*StockMovement, error) {
	var (
		record    StockRecord
		movements []*StockMovement
	)
	err := r.db.TransactionWithOptions(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	}, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &record, selectRecord, entityID, lotID)
		if err == sql.ErrNoRows {
			return errors.NotFound("stock record")
		}
		if err != nil {
			return err
		}
		return tx.SelectContext(ctx, &movements, selectMovements, entityID, lotID)
	})
	if err != nil {
		return nil, nil, err
	}
	return &record, movements, nil
}
