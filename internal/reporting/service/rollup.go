package service

import (
	"context"
	"sort"
	"time"

	hierarchy "github.com/djiba142/Pharmacie-sub000/internal/hierarchy/repository"
	"github.com/djiba142/Pharmacie-sub000/internal/reporting/repository"
	stockservice "github.com/djiba142/Pharmacie-sub000/internal/stock/service"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
)

// EntityDirectory resolves organizational entities.
type EntityDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
	ListChildren(ctx context.Context, parentID string) ([]*hierarchy.Entity, error)
}

// SubtreeStockReader reads stock rows across an entity subtree.
type SubtreeStockReader interface {
	ListSubtreeStock(ctx context.Context, entityID string) ([]*repository.SubtreeStockRow, error)
}

// TierCounts holds per-status stock record counts.
type TierCounts struct {
	StockCount    int `json:"stock_count"`
	NormalCount   int `json:"normal_count"`
	AlertCount    int `json:"alert_count"`
	CriticalCount int `json:"critical_count"`
	ExpiredCount  int `json:"expired_count"`
}

func (c *TierCounts) add(status stockservice.Status) {
	c.StockCount++
	switch status {
	case stockservice.StatusNormal:
		c.NormalCount++
	case stockservice.StatusAlert:
		c.AlertCount++
	case stockservice.StatusCritical:
		c.CriticalCount++
	case stockservice.StatusExpired:
		c.ExpiredCount++
	}
}

// Performance is the share of stock lines not in Alert or Critical. An
// empty branch scores 1.0: no stock means no known problem, which is a
// policy decision so empty structures do not drag a region's figures down.
func (c *TierCounts) Performance() float64 {
	if c.StockCount == 0 {
		return 1.0
	}
	return 1.0 - float64(c.AlertCount+c.CriticalCount)/float64(c.StockCount)
}

// ChildRollup is the rollup of one immediate child's branch.
type ChildRollup struct {
	EntityID   string  `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	TierCounts
	Performance float64 `json:"performance"`
}

// Rollup aggregates a subtree's stock by classifier tier.
type Rollup struct {
	EntityID string `json:"entity_id"`
	TierCounts
	Performance    float64        `json:"performance"`
	ChildBreakdown []*ChildRollup `json:"child_breakdown"`
}

// RollupService computes hierarchical stock aggregations
type RollupService struct {
	entities EntityDirectory
	reader   SubtreeStockReader
	logger   *logger.Logger
}

// NewRollupService creates a new rollup service
func NewRollupService(entities EntityDirectory, reader SubtreeStockReader, log *logger.Logger) *RollupService {
	return &RollupService{entities: entities, reader: reader, logger: log}
}

// Rollup classifies every stock record in the subtree rooted at entityID and
// aggregates the counts, overall and per immediate-child branch. Read only;
// an empty subtree yields all-zero counts.
func (s *RollupService) Rollup(ctx context.Context, entityID string) (*Rollup, error) {
	exists, err := s.entities.Exists(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("entity")
	}

	rows, err := s.reader.ListSubtreeStock(ctx, entityID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &Rollup{EntityID: entityID}
	branches := make(map[string]*ChildRollup)

	// Seed every immediate child so a branch with no stock still shows up
	// in the breakdown, at the empty-branch performance of 1.0.
	children, err := s.entities.ListChildren(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		branches[child.ID] = &ChildRollup{EntityID: child.ID, EntityName: child.Name}
	}

	for _, row := range rows {
		status := stockservice.Classify(
			row.CurrentQuantity, row.AlertThreshold, row.MinimalThreshold,
			row.ExpiryDate, now,
		)
		result.TierCounts.add(status)

		// Stock held by the root itself counts in the totals only.
		if row.BranchID == entityID {
			continue
		}
		branch, ok := branches[row.BranchID]
		if !ok {
			branch = &ChildRollup{EntityID: row.BranchID, EntityName: row.BranchName}
			branches[row.BranchID] = branch
		}
		branch.TierCounts.add(status)
	}

	result.Performance = result.TierCounts.Performance()
	result.ChildBreakdown = make([]*ChildRollup, 0, len(branches))
	for _, branch := range branches {
		branch.Performance = branch.TierCounts.Performance()
		result.ChildBreakdown = append(result.ChildBreakdown, branch)
	}
	sort.Slice(result.ChildBreakdown, func(i, j int) bool {
		return result.ChildBreakdown[i].EntityName < result.ChildBreakdown[j].EntityName
	})

	return result, nil
}
