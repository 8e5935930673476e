package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/locking"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ledger wires every service over one SQLite database
type ledger struct {
	db           *gorm.DB
	clock        *shared.ManualClock
	events       *testutil.RecordingPublisher
	repos        appinv.TransactionalRepositories
	movements    *appinv.MovementService
	allocations  *appinv.AllocationService
	expiration   *appinv.AllocationExpirationService
	adjustments  *appinv.AdjustmentService
	transfers    *appinv.TransferService
	receiving    *appinv.ReceivingService
	reconciler   *appinv.ReconciliationService
	locker       *hookedLocker
	actor        uuid.UUID
	otherActor   uuid.UUID
	productID    uuid.UUID
	warehouseA   uuid.UUID
	warehouseB   uuid.UUID
}

type ledgerOption func(*ledgerOptions)

type ledgerOptions struct {
	requireDistinctApprover bool
}

func withDistinctApprover() ledgerOption {
	return func(o *ledgerOptions) { o.requireDistinctApprover = true }
}

func newLedger(t *testing.T, opts ...ledgerOption) *ledger {
	t.Helper()
	var o ledgerOptions
	for _, opt := range opts {
		opt(&o)
	}

	db := testutil.NewTestDB(t)
	clock := testutil.NewClock()
	events := testutil.NewRecordingPublisher()
	logger := zap.NewNop()
	repos := persistence.NewRepositories(db)
	policy := appinv.RetryPolicy{
		MaxRetries:  3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		LockTimeout: 5 * time.Second,
	}
	locker := &hookedLocker{inner: locking.NewMemoryLocker()}
	executor := appinv.NewPositionExecutor(persistence.NewGormTransactionScope(db, 0), locker, policy, logger)

	l := &ledger{
		db:          db,
		clock:       clock,
		events:      events,
		repos:       repos,
		movements:   appinv.NewMovementService(repos, executor, clock, logger),
		allocations: appinv.NewAllocationService(repos, executor, clock, time.Hour, logger),
		adjustments: appinv.NewAdjustmentService(repos, executor, clock, logger),
		transfers:   appinv.NewTransferService(repos, executor, clock, o.requireDistinctApprover, logger),
		receiving:   appinv.NewReceivingService(repos, executor, clock, logger),
		reconciler:  appinv.NewReconciliationService(repos, clock, logger),
		locker:      locker,
		actor:       uuid.New(),
		otherActor:  uuid.New(),
		productID:   uuid.New(),
		warehouseA:  uuid.New(),
		warehouseB:  uuid.New(),
	}
	l.expiration = appinv.NewAllocationExpirationService(l.allocations, repos, logger).WithLimits(100, 4)
	l.movements.SetEventPublisher(events)
	l.allocations.SetEventPublisher(events)
	l.adjustments.SetEventPublisher(events)
	l.transfers.SetEventPublisher(events)
	l.receiving.SetEventPublisher(events)
	return l
}

// hookedLocker runs a one-shot hook before the next lock is taken, letting a
// test change a line between the moment it is read and the moment it is locked
type hookedLocker struct {
	inner appinv.PositionLocker
	mu    sync.Mutex
	hook  func()
}

func (h *hookedLocker) beforeNextLock(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hook = fn
}

func (h *hookedLocker) Lock(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	h.mu.Lock()
	fn := h.hook
	h.hook = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.inner.Lock(ctx, key, timeout)
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// receive books stock at a warehouse with a purchase_receive movement
func (l *ledger) receive(t *testing.T, warehouseID uuid.UUID, n int64) *appinv.MovementResponse {
	t.Helper()
	resp, err := l.movements.RecordMovement(context.Background(), appinv.RecordMovementRequest{
		ProductID:    l.productID,
		WarehouseID:  warehouseID,
		ActorID:      l.actor,
		MovementType: string(inventory.MovementTypePurchaseReceive),
		Quantity:     qty(n),
		UnitCost:     decimal.RequireFromString("2.50"),
	})
	require.NoError(t, err)
	return resp
}

func (l *ledger) position(t *testing.T, warehouseID uuid.UUID) *appinv.PositionResponse {
	t.Helper()
	resp, err := l.movements.GetPosition(context.Background(), l.productID, warehouseID)
	require.NoError(t, err)
	return resp
}

// requirePosition asserts on hand and reserved at a warehouse
func (l *ledger) requirePosition(t *testing.T, warehouseID uuid.UUID, onHand, reserved int64) {
	t.Helper()
	p := l.position(t, warehouseID)
	require.Truef(t, p.QuantityOnHand.Equal(qty(onHand)), "on hand: want %d, got %s", onHand, p.QuantityOnHand)
	require.Truef(t, p.QuantityReserved.Equal(qty(reserved)), "reserved: want %d, got %s", reserved, p.QuantityReserved)
}

// requireReconciled asserts that every position agrees with its movements
func (l *ledger) requireReconciled(t *testing.T) {
	t.Helper()
	report, err := l.reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	require.Truef(t, report.Consistent(), "unexpected discrepancies: %+v", report.Discrepancies)
}

func (l *ledger) confirmLine(t *testing.T, ordered int64) *appinv.AllocationResponse {
	t.Helper()
	resp, err := l.allocations.ConfirmOrderLine(context.Background(), appinv.ConfirmOrderLineRequest{
		OrderID:         uuid.New(),
		LineID:          uuid.New(),
		ProductID:       l.productID,
		QuantityOrdered: qty(ordered),
	})
	require.NoError(t, err)
	return resp
}
