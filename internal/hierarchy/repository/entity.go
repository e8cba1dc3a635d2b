package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
)

// Level is an administrative tier of the health system hierarchy.
type Level string

const (
	LevelNational    Level = "National"
	LevelRegional    Level = "Regional"
	LevelPrefectoral Level = "Prefectoral"
	LevelPeripheral  Level = "Peripheral"
)

// ParentLevel returns the immediate ancestor tier of l.
// The second return is false for National, which has no parent.
func ParentLevel(l Level) (Level, bool) {
	switch l {
	case LevelRegional:
		return LevelNational, true
	case LevelPrefectoral:
		return LevelRegional, true
	case LevelPeripheral:
		return LevelPrefectoral, true
	default:
		return "", false
	}
}

// ValidLevel reports whether l is a known tier.
func ValidLevel(l Level) bool {
	switch l {
	case LevelNational, LevelRegional, LevelPrefectoral, LevelPeripheral:
		return true
	}
	return false
}

// Entity is an organizational node: the national agency, a region, a
// prefecture, or a point-of-care structure.
type Entity struct {
	ID        string    `db:"id" json:"id"`
	Level     Level     `db:"level" json:"level"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EntityRepository handles organizational entity persistence
type EntityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *database.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// Create inserts a new entity after enforcing the tree invariant: every
// non-National entity has exactly one parent sitting one tier above, and
// there is a single National root.
func (r *EntityRepository) Create(ctx context.Context, entity *Entity) error {
	if !ValidLevel(entity.Level) {
		return errors.Validation(map[string]string{
			"level": "must be one of: National, Regional, Prefectoral, Peripheral",
		})
	}

	wantParent, hasParent := ParentLevel(entity.Level)
	if hasParent {
		if entity.ParentID == nil || *entity.ParentID == "" {
			return errors.Validation(map[string]string{
				"parent_id": "required for non-National entities",
			})
		}
		parent, err := r.GetByID(ctx, *entity.ParentID)
		if err != nil {
			return err
		}
		if parent.Level != wantParent {
			return errors.Validation(map[string]string{
				"parent_id": "parent must be at level " + string(wantParent),
			})
		}
		if !parent.IsActive {
			return errors.BadRequest("parent entity is not active")
		}
	} else {
		if entity.ParentID != nil {
			return errors.Validation(map[string]string{
				"parent_id": "must be empty for the National entity",
			})
		}
		exists, err := r.rootExists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return errors.BadRequest("a National entity already exists")
		}
	}

	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}

	query := `
		INSERT INTO entities (id, level, parent_id, name, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		entity.ID, entity.Level, entity.ParentID, entity.Name, entity.IsActive,
	).Scan(&entity.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func (r *EntityRepository) rootExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM entities WHERE level = $1)`, LevelNational)
	return exists, err
}

// GetByID gets an entity by ID
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	var entity Entity
	query := `
		SELECT id, level, parent_id, name, is_active, created_at
		FROM entities WHERE id = $1
	`
	err := r.db.GetContext(ctx, &entity, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("entity")
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Exists reports whether an active entity with the given ID exists.
func (r *EntityRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1 AND is_active = true)`, id)
	return exists, err
}

// ListChildren lists the immediate children of an entity.
func (r *EntityRepository) ListChildren(ctx context.Context, parentID string) ([]*Entity, error) {
	var entities []*Entity
	query := `
		SELECT id, level, parent_id, name, is_active, created_at
		FROM entities WHERE parent_id = $1
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &entities, query, parentID); err != nil {
		return nil, err
	}
	return entities, nil
}

// ListSubtree lists the entity and every descendant, breadth independent:
// one recursive query, not one round trip per child.
func (r *EntityRepository) ListSubtree(ctx context.Context, rootID string) ([]*Entity, error) {
	var entities []*Entity
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id, level, parent_id, name, is_active, created_at
			FROM entities WHERE id = $1
			UNION ALL
			SELECT e.id, e.level, e.parent_id, e.name, e.is_active, e.created_at
			FROM entities e
			JOIN subtree s ON e.parent_id = s.id
		)
		SELECT id, level, parent_id, name, is_active, created_at FROM subtree
	`
	if err := r.db.SelectContext(ctx, &entities, query, rootID); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, errors.NotFound("entity")
	}
	return entities, nil
}

// Deactivate marks an entity inactive. History (stock records, orders)
// stays untouched.
func (r *EntityRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entities SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("entity")
	}
	return nil
}
