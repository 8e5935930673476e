package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweep defaults
const (
	DefaultSweepBatchSize   = 500
	DefaultSweepParallelism = 8
)

// AllocationExpirationService releases allocations whose lifetime has lapsed
type AllocationExpirationService struct {
	allocations *AllocationService
	repos       TransactionalRepositories
	batchSize   int
	parallelism int
	logger      *zap.Logger
}

// NewAllocationExpirationService creates a new AllocationExpirationService
func NewAllocationExpirationService(
	allocations *AllocationService,
	repos TransactionalRepositories,
	logger *zap.Logger,
) *AllocationExpirationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationExpirationService{
		allocations: allocations,
		repos:       repos,
		batchSize:   DefaultSweepBatchSize,
		parallelism: DefaultSweepParallelism,
		logger:      logger,
	}
}

// WithLimits overrides the batch size and the number of lines released in parallel
func (s *AllocationExpirationService) WithLimits(batchSize, parallelism int) *AllocationExpirationService {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if parallelism > 0 {
		s.parallelism = parallelism
	}
	return s
}

// ExpirationStats contains statistics about one sweep
type ExpirationStats struct {
	TotalExpired    int       `json:"total_expired"`
	SuccessReleased int       `json:"success_released"`
	Skipped         int       `json:"skipped"`
	FailedReleases  int       `json:"failed_releases"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// ExpireSweep releases every allocation that expired before now, still
// requires allocation and is unfulfilled. Candidates are loaded batchSize at a
// time until a batch comes back short or releases nothing, the latter
// leaving lines that keep failing for the next sweep. Each line is re-read
// under its position lock, so running sweeps concurrently, or alongside
// consume and release, never releases a line twice.
func (s *AllocationExpirationService) ExpireSweep(ctx context.Context, now time.Time) (*ExpirationStats, error) {
	stats := &ExpirationStats{ProcessedAt: now}

	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		candidates, err := s.repos.Allocations().FindExpired(ctx, now, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to find expired allocations", zap.Int("batch", batch), zap.Error(err))
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}
		s.logger.Info("Found expired allocations",
			zap.Int("batch", batch),
			zap.Int("count", len(candidates)),
		)

		released := s.releaseBatch(ctx, candidates, now, stats)
		if len(candidates) < s.batchSize || released == 0 {
			break
		}
	}

	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired allocations found")
		return stats, nil
	}
	s.logger.Info("Completed expired allocation release",
		zap.Int("total", stats.TotalExpired),
		zap.Int("released", stats.SuccessReleased),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.FailedReleases),
	)
	return stats, nil
}

// releaseBatch expires candidates with bounded parallelism, folds the
// outcomes into stats and returns how many lines it released
func (s *AllocationExpirationService) releaseBatch(ctx context.Context, candidates []inventory.OrderItemAllocation, now time.Time, stats *ExpirationStats) int {
	var (
		mu       sync.Mutex
		released int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range candidates {
		candidate := candidates[i]
		g.Go(func() error {
			ok, err := s.expireOne(gctx, &candidate, now)
			mu.Lock()
			defer mu.Unlock()
			stats.TotalExpired++
			switch {
			case err != nil:
				stats.FailedReleases++
			case ok:
				stats.SuccessReleased++
				released++
			default:
				stats.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()
	return released
}

func (s *AllocationExpirationService) expireOne(ctx context.Context, candidate *inventory.OrderItemAllocation, now time.Time) (bool, error) {
	_, released, err := s.allocations.releaseOne(ctx, candidate.ID, true, &now)
	if err != nil {
		s.logger.Error("Failed to release expired allocation",
			zap.String("allocation_id", candidate.ID.String()),
			zap.String("order_id", candidate.OrderID.String()),
			zap.Error(err),
		)
		return false, err
	}
	if released {
		s.logger.Debug("Released expired allocation",
			zap.String("allocation_id", candidate.ID.String()),
			zap.String("order_id", candidate.OrderID.String()),
			zap.String("quantity", candidate.AllocatedQuantity.String()),
		)
	}
	return released, nil
}
