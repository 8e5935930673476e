package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const reconcilePageSize = 200

// PositionDiscrepancy describes a position whose counters disagree with the ledger
type PositionDiscrepancy struct {
	ProductID        uuid.UUID       `json:"product_id"`
	WarehouseID      uuid.UUID       `json:"warehouse_id"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	QuantityReserved decimal.Decimal `json:"quantity_reserved"`
	LedgerSum        decimal.Decimal `json:"ledger_sum"`
	Difference       decimal.Decimal `json:"difference"`
	Problem          string          `json:"problem"`
}

// ReconciliationReport is the result of one reconciliation run
type ReconciliationReport struct {
	CheckedPositions int                   `json:"checked_positions"`
	Discrepancies    []PositionDiscrepancy `json:"discrepancies"`
	CheckedAt        time.Time             `json:"checked_at"`
}

// Consistent reports whether no discrepancy was found
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}

// ReconciliationService checks that every position's on-hand count equals
// the sum of its applied movements and that its reservation is in bounds.
type ReconciliationService struct {
	repos  TransactionalRepositories
	clock  shared.Clock
	logger *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(repos TransactionalRepositories, clock shared.Clock, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{repos: repos, clock: clock, logger: logger}
}

// Reconcile walks all positions page by page
func (s *ReconciliationService) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Discrepancies: make([]PositionDiscrepancy, 0),
		CheckedAt:     s.clock.Now(),
	}
	filter := inventory.PositionFilter{
		Filter: shared.Filter{Page: 1, PageSize: reconcilePageSize, OrderBy: "id", OrderDir: "asc"},
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		positions, _, err := s.repos.Positions().List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range positions {
			d, err := s.check(ctx, &positions[i])
			if err != nil {
				return nil, err
			}
			report.CheckedPositions++
			if d != nil {
				report.Discrepancies = append(report.Discrepancies, *d)
			}
		}
		if len(positions) < filter.PageSize {
			break
		}
		filter.Page++
	}

	if report.Consistent() {
		s.logger.Info("Ledger reconciled",
			zap.Int("positions", report.CheckedPositions),
		)
	} else {
		s.logger.Error("Ledger discrepancies found",
			zap.Int("positions", report.CheckedPositions),
			zap.Int("discrepancies", len(report.Discrepancies)),
		)
	}
	return report, nil
}

func (s *ReconciliationService) check(ctx context.Context, p *inventory.InventoryPosition) (*PositionDiscrepancy, error) {
	sum, err := s.repos.Movements().SumApplied(ctx, p.Key())
	if err != nil {
		return nil, err
	}
	d := &PositionDiscrepancy{
		ProductID:        p.ProductID,
		WarehouseID:      p.WarehouseID,
		QuantityOnHand:   p.QuantityOnHand,
		QuantityReserved: p.QuantityReserved,
		LedgerSum:        sum,
		Difference:       p.QuantityOnHand.Sub(sum),
	}
	switch {
	case !d.Difference.IsZero():
		d.Problem = "on hand differs from applied movements"
	case p.QuantityOnHand.IsNegative():
		d.Problem = "on hand is negative"
	case p.QuantityReserved.IsNegative() || p.QuantityReserved.GreaterThan(p.QuantityOnHand):
		d.Problem = "reserved out of bounds"
	default:
		return nil, nil
	}
	s.logger.Warn("Position discrepancy",
		zap.String("position", p.Key().String()),
		zap.String("on_hand", p.QuantityOnHand.String()),
		zap.String("reserved", p.QuantityReserved.String()),
		zap.String("ledger_sum", sum.String()),
		zap.String("problem", d.Problem),
	)
	return d, nil
}
