package repository

import (
	"context"
	"time"

	"github.com/djiba142/Pharmacie-sub000/pkg/database"
)

// SubtreeStockRow is one stock record inside a rollup subtree, tagged with
// the immediate child of the root it descends from. BranchID equals the
// root's own id for stock held by the root itself.
type SubtreeStockRow struct {
	EntityID         string    `db:"entity_id"`
	BranchID         string    `db:"branch_id"`
	BranchName       string    `db:"branch_name"`
	CurrentQuantity  int       `db:"current_quantity"`
	AlertThreshold   int       `db:"alert_threshold"`
	MinimalThreshold int       `db:"minimal_threshold"`
	ExpiryDate       time.Time `db:"expiry_date"`
}

// RollupRepository reads stock rows across an entity subtree
type RollupRepository struct {
	db *database.DB
}

// NewRollupRepository creates a new rollup repository
func NewRollupRepository(db *database.DB) *RollupRepository {
	return &RollupRepository{db: db}
}

// The CTE walks the tree from the root and carries the branch along: the
// root maps to itself, each immediate child starts its own branch, and every
// deeper descendant inherits its parent's branch. Aggregation then only
// needs a GROUP BY on branch_id.
const subtreeStockQuery = `
	WITH RECURSIVE subtree AS (
		SELECT e.id, e.id AS branch_id
		FROM entities e
		WHERE e.id = $1
		UNION ALL
		SELECT e.id,
		       CASE WHEN s.id = $1 THEN e.id ELSE s.branch_id END AS branch_id
		FROM entities e
		JOIN subtree s ON e.parent_id = s.id
	)
	SELECT sr.entity_id, s.branch_id, b.name AS branch_name,
	       sr.current_quantity, sr.alert_threshold, sr.minimal_threshold,
	       l.expiry_date
	FROM subtree s
	JOIN stock_records sr ON sr.entity_id = s.id
	JOIN lots l ON l.id = sr.lot_id
	JOIN entities b ON b.id = s.branch_id
`

// ListSubtreeStock lists every stock record in the subtree rooted at
// entityID, each tagged with its branch. An empty result is valid; isolated
// entities simply have no rows.
func (r *RollupRepository) ListSubtreeStock(ctx context.Context, entityID string) ([]*SubtreeStockRow, error) {
	var rows []*SubtreeStockRow
	if err := r.db.SelectContext(ctx, &rows, subtreeStockQuery, entityID); err != nil {
		return nil, err
	}
	return rows, nil
}
