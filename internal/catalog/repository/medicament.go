package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
)

// Medicament is a drug reference entry, immutable after creation except
// deactivation.
type Medicament struct {
	ID             string    `db:"id" json:"id"`
	DCI            string    `db:"dci" json:"dci"`
	CommercialName string    `db:"commercial_name" json:"commercial_name"`
	CategoryClass  string    `db:"category_class" json:"category_class"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MedicamentRepository handles medicament persistence
type MedicamentRepository struct {
	db *database.DB
}

// NewMedicamentRepository creates a new medicament repository
func NewMedicamentRepository(db *database.DB) *MedicamentRepository {
	return &MedicamentRepository{db: db}
}

// Create creates a new medicament
func (r *MedicamentRepository) Create(ctx context.Context, m *Medicament) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicaments (id, dci, commercial_name, category_class, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.DCI, m.CommercialName, m.CategoryClass, m.IsActive,
	).Scan(&m.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a medicament by ID
func (r *MedicamentRepository) GetByID(ctx context.Context, id string) (*Medicament, error) {
	var m Medicament
	query := `
		SELECT id, dci, commercial_name, category_class, is_active, created_at
		FROM medicaments WHERE id = $1
	`
	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("medicament")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List lists medicaments, optionally filtered by category class.
func (r *MedicamentRepository) List(ctx context.Context, categoryClass string) ([]*Medicament, error) {
	var medicaments []*Medicament

	query := `
		SELECT id, dci, commercial_name, category_class, is_active, created_at
		FROM medicaments
	`
	args := []interface{}{}
	if categoryClass != "" {
		query += ` WHERE category_class = $1`
		args = append(args, categoryClass)
	}
	query += ` ORDER BY dci`

	if err := r.db.SelectContext(ctx, &medicaments, query, args...); err != nil {
		return nil, err
	}
	return medicaments, nil
}

// Deactivate marks a medicament inactive
func (r *MedicamentRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE medicaments SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicament")
	}
	return nil
}
