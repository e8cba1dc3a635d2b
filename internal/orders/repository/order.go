package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/djiba142/Pharmacie-sub000/internal/orders/workflow"
	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
)

// Order priorities
const (
	PriorityNormal = "Normal"
	PriorityUrgent = "Urgent"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	return p == PriorityNormal || p == PriorityUrgent
}

// Order is a purchase order moving through the approval workflow. Orders are
// never physically deleted; cancellation is a terminal state.
type Order struct {
	ID                 string          `db:"id" json:"id"`
	RequestingEntityID string          `db:"requesting_entity_id" json:"requesting_entity_id"`
	SupplyingEntityID  *string         `db:"supplying_entity_id" json:"supplying_entity_id,omitempty"`
	Priority           string          `db:"priority" json:"priority"`
	Status             workflow.Status `db:"status" json:"status"`
	Comment            string          `db:"comment" json:"comment"`
	ValidatedAt        *time.Time      `db:"validated_at" json:"validated_at,omitempty"`
	ApproverID         *string         `db:"approver_id" json:"approver_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`

	Lines []*OrderLine `db:"-" json:"lines,omitempty"`
}

// OrderLine is one requested medicament on an order. Lines are created with
// the order and never move between orders. Approved and delivered quantities
// stay null until the corresponding workflow step sets them.
type OrderLine struct {
	ID                string `db:"id" json:"id"`
	OrderID           string `db:"order_id" json:"order_id"`
	MedicamentID      string `db:"medicament_id" json:"medicament_id"`
	QuantityRequested int    `db:"quantity_requested" json:"quantity_requested"`
	QuantityApproved  *int   `db:"quantity_approved" json:"quantity_approved,omitempty"`
	QuantityDelivered *int   `db:"quantity_delivered" json:"quantity_delivered,omitempty"`
}

// OrderRepository handles order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its lines in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = workflow.StatusDraft
	}
	if order.Priority == "" {
		order.Priority = PriorityNormal
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO orders (id, requesting_entity_id, supplying_entity_id, priority, status, comment)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`, order.ID, order.RequestingEntityID, order.SupplyingEntityID,
			order.Priority, order.Status, order.Comment,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		for _, line := range order.Lines {
			if line.ID == "" {
				line.ID = uuid.New().String()
			}
			line.OrderID = order.ID
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_lines (id, order_id, medicament_id, quantity_requested)
				VALUES ($1, $2, $3, $4)
			`, line.ID, line.OrderID, line.MedicamentID, line.QuantityRequested); err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}
		return nil
	})
}

const selectOrder = `
	SELECT id, requesting_entity_id, supplying_entity_id, priority, status, comment,
	       validated_at, approver_id, created_at, updated_at
	FROM orders
`

// GetByID gets an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	var order Order
	err := r.db.GetContext(ctx, &order, selectOrder+` WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("order")
	}
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &order.Lines, `
		SELECT id, order_id, medicament_id, quantity_requested, quantity_approved, quantity_delivered
		FROM order_lines WHERE order_id = $1
		ORDER BY id
	`, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByRequestingEntity lists an entity's orders, newest first. Lines are
// not loaded; list views only need the header.
func (r *OrderRepository) ListByRequestingEntity(ctx context.Context, entityID string, status workflow.Status) ([]*Order, error) {
	var orders []*Order
	query := selectOrder + ` WHERE requesting_entity_id = $1`
	args := []interface{}{entityID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionEffects are the order and line updates that ride in the same
// transaction as the status change. A failed side effect rolls the whole
// transition back, so a caller never sees an order in the target state with
// its quantities half written.
type TransitionEffects struct {
	// ApproveLines defaults quantity_approved to quantity_requested and then
	// applies the per-line overrides.
	ApproveLines       bool
	ApprovedQuantities map[string]int

	// SupplyingEntityID assigns the fulfilling entity when non-empty.
	SupplyingEntityID string

	// DeliveredQuantities records quantity_delivered per line id. Under- and
	// over-delivery against the approved quantity are both representable;
	// reconciling them is a reporting concern, not a persistence constraint.
	DeliveredQuantities map[string]int
}

// ApplyTransition moves the order from one of the allowed source states to
// the target state as a single compare-and-set, applying the effects in the
// same transaction. The WHERE clause re-checks the source state inside the
// UPDATE, so of two racing approvers exactly one matches a row; the loser
// gets zero rows and an InvalidTransition error built from the state the
// winner left behind.
func (r *OrderRepository) ApplyTransition(ctx context.Context, orderID string, t workflow.Transition, actorID string, effects *TransitionEffects) (*Order, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	var affected int64
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var (
			result sql.Result
			err    error
		)
		if workflow.IsValidationStep(t.To) {
			result, err = tx.ExecContext(ctx, `
				UPDATE orders
				SET status = $3, validated_at = NOW(), approver_id = $4, updated_at = NOW()
				WHERE id = $1 AND status = ANY($2)
			`, orderID, pq.Array(from), t.To, actorID)
		} else {
			result, err = tx.ExecContext(ctx, `
				UPDATE orders
				SET status = $3, updated_at = NOW()
				WHERE id = $1 AND status = ANY($2)
			`, orderID, pq.Array(from), t.To)
		}
		if err != nil {
			return err
		}

		affected, _ = result.RowsAffected()
		if affected == 0 || effects == nil {
			return nil
		}

		if effects.ApproveLines {
			if err := approveLines(ctx, tx, orderID, effects.ApprovedQuantities); err != nil {
				return err
			}
		}
		if effects.SupplyingEntityID != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE orders SET supplying_entity_id = $2, updated_at = NOW() WHERE id = $1
			`, orderID, effects.SupplyingEntityID); err != nil {
				return err
			}
		}
		if len(effects.DeliveredQuantities) > 0 {
			if err := deliverLines(ctx, tx, orderID, effects.DeliveredQuantities); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		order, getErr := r.GetByID(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errors.InvalidTransition(string(t.Action), string(order.Status))
	}

	return r.GetByID(ctx, orderID)
}

// approveLines sets quantity_approved per line. Lines absent from the
// overrides map default to their requested quantity.
func approveLines(ctx context.Context, tx *sqlx.Tx, orderID string, overrides map[string]int) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE order_lines SET quantity_approved = quantity_requested
		WHERE order_id = $1 AND quantity_approved IS NULL
	`, orderID); err != nil {
		return err
	}
	for lineID, qty := range overrides {
		if _, err := tx.ExecContext(ctx, `
			UPDATE order_lines SET quantity_approved = $3
			WHERE id = $1 AND order_id = $2
		`, lineID, orderID, qty); err != nil {
			return err
		}
	}
	return nil
}

// deliverLines records quantity_delivered per line.
func deliverLines(ctx context.Context, tx *sqlx.Tx, orderID string, delivered map[string]int) error {
	for lineID, qty := range delivered {
		result, err := tx.ExecContext(ctx, `
			UPDATE order_lines SET quantity_delivered = $3
			WHERE id = $1 AND order_id = $2
		`, lineID, orderID, qty)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("order line")
		}
	}
	return nil
}
