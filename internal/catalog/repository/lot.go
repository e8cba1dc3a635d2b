package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
)

// Lot statuses
const (
	LotAvailable = "Available"
	LotRecalled  = "Recalled"
)

// Lot is a manufactured batch of a medicament. Created once per physical
// batch; only the status ever changes (recall). The expiry date is the sole
// input to expiry classification.
type Lot struct {
	ID              string    `db:"id" json:"id"`
	MedicamentID    string    `db:"medicament_id" json:"medicament_id"`
	BatchNumber     string    `db:"batch_number" json:"batch_number"`
	ManufactureDate time.Time `db:"manufacture_date" json:"manufacture_date"`
	ExpiryDate      time.Time `db:"expiry_date" json:"expiry_date"`
	InitialQuantity int       `db:"initial_quantity" json:"initial_quantity"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if lot.Status == "" {
		lot.Status = LotAvailable
	}

	query := `
		INSERT INTO lots (id, medicament_id, batch_number, manufacture_date, expiry_date, initial_quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.MedicamentID, lot.BatchNumber, lot.ManufactureDate,
		lot.ExpiryDate, lot.InitialQuantity, lot.Status,
	).Scan(&lot.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot
	query := `
		SELECT id, medicament_id, batch_number, manufacture_date, expiry_date, initial_quantity, status, created_at
		FROM lots WHERE id = $1
	`
	err := r.db.GetContext(ctx, &lot, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("lot")
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// Exists reports whether a lot with the given ID exists.
func (r *LotRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM lots WHERE id = $1)`, id)
	return exists, err
}

// ListByMedicament lists lots for a medicament, soonest expiry first.
func (r *LotRepository) ListByMedicament(ctx context.Context, medicamentID string) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT id, medicament_id, batch_number, manufacture_date, expiry_date, initial_quantity, status, created_at
		FROM lots WHERE medicament_id = $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, medicamentID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListExpiringWithin lists available lots whose expiry date falls before the
// given horizon, soonest first. Used by the expiry scanner.
func (r *LotRepository) ListExpiringWithin(ctx context.Context, horizon time.Time) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT id, medicament_id, batch_number, manufacture_date, expiry_date, initial_quantity, status, created_at
		FROM lots
		WHERE status = $1 AND expiry_date <= $2
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, LotAvailable, horizon); err != nil {
		return nil, err
	}
	return lots, nil
}

// Recall marks a lot as recalled. The status column is the only mutable
// attribute of a lot.
func (r *LotRepository) Recall(ctx context.Context, id string) (*Lot, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lots SET status = $2 WHERE id = $1`, id, LotRecalled)
	if err != nil {
		return nil, err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, errors.NotFound("lot")
	}
	return r.GetByID(ctx, id)
}
