package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMeterName is the instrumentation scope of the ledger instruments
const LedgerMeterName = "github.com/erp/stockledger/ledger"

// ReservedQuantitySource reports reserved stock per warehouse
type ReservedQuantitySource interface {
	ReservedByWarehouse(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

// LedgerMetrics holds the ledger's counters and gauges.
type LedgerMetrics struct {
	movements   *Counter
	allocations *Counter
	transfers   *Counter
	received    *FloatCounter
	jobs        *Counter
	jobDuration *Histogram

	reserved     metric.Float64ObservableGauge
	registration metric.Registration
	logger       *zap.Logger
}

// NewLedgerMetrics creates the ledger instruments on meter. When source is
// non-nil the reserved quantity gauge is observed from it on every collection.
func NewLedgerMetrics(meter metric.Meter, source ReservedQuantitySource, logger *zap.Logger) (*LedgerMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger}

	var err error
	if m.movements, err = NewCounter(meter, "ledger_movements_total",
		"Stock movements by type and resulting status", "{movement}"); err != nil {
		return nil, err
	}
	if m.allocations, err = NewCounter(meter, "ledger_allocations_total",
		"Allocation lifecycle transitions by outcome", "{allocation}"); err != nil {
		return nil, err
	}
	if m.transfers, err = NewCounter(meter, "ledger_transfers_total",
		"Transfer lifecycle transitions by status", "{transfer}"); err != nil {
		return nil, err
	}
	if m.received, err = NewFloatCounter(meter, "ledger_receipts_quantity_total",
		"Received quantity split into accepted and rejected", "{unit}"); err != nil {
		return nil, err
	}
	if m.jobs, err = NewCounter(meter, "ledger_jobs_total",
		"Background job attempts by task and status", "{job}"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_job_duration_seconds",
		Description: "Background job duration",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if m.reserved, err = meter.Float64ObservableGauge("ledger_reserved_quantity",
		metric.WithDescription("Quantity reserved by allocations per warehouse"),
		metric.WithUnit("{unit}"),
	); err != nil {
		return nil, err
	}
	if source != nil {
		m.registration, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			return m.observeReserved(ctx, o, source)
		}, m.reserved)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *LedgerMetrics) observeReserved(ctx context.Context, o metric.Observer, source ReservedQuantitySource) error {
	totals, err := source.ReservedByWarehouse(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect reserved quantities", zap.Error(err))
		return err
	}
	for warehouseID, qty := range totals {
		o.ObserveFloat64(m.reserved, qty.InexactFloat64(),
			metric.WithAttributes(AttrWarehouseID.String(warehouseID.String())))
	}
	return nil
}

// RecordMovement counts a movement transition
func (m *LedgerMetrics) RecordMovement(ctx context.Context, movementType, status string) {
	m.movements.Inc(ctx, AttrMovementType.String(movementType), AttrStatus.String(status))
}

// RecordAllocation counts an allocation transition
func (m *LedgerMetrics) RecordAllocation(ctx context.Context, outcome string) {
	m.allocations.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordTransfer counts a transfer transition
func (m *LedgerMetrics) RecordTransfer(ctx context.Context, status string) {
	m.transfers.Inc(ctx, AttrStatus.String(status))
}

// RecordReceipt adds the accepted and rejected quantities of one receipt
func (m *LedgerMetrics) RecordReceipt(ctx context.Context, accepted, rejected decimal.Decimal) {
	if accepted.IsPositive() {
		m.received.Add(ctx, accepted.InexactFloat64(), AttrKind.String("accepted"))
	}
	if rejected.IsPositive() {
		m.received.Add(ctx, rejected.InexactFloat64(), AttrKind.String("rejected"))
	}
}

// RecordJob counts a background job attempt and its duration
func (m *LedgerMetrics) RecordJob(ctx context.Context, task, status string, d time.Duration) {
	m.jobs.Inc(ctx, AttrTask.String(task), AttrStatus.String(status))
	m.jobDuration.RecordDuration(ctx, d, AttrTask.String(task))
}

// Close unregisters the reserved quantity callback
func (m *LedgerMetrics) Close() error {
	if m.registration == nil {
		return nil
	}
	err := m.registration.Unregister()
	m.registration = nil
	if err != nil {
		return fmt.Errorf("unregister reserved quantity callback: %w", err)
	}
	return nil
}
