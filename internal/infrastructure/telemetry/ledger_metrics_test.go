package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type reservedTotals struct {
	totals map[uuid.UUID]decimal.Decimal
	err    error
}

func (r reservedTotals) ReservedByWarehouse(context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	return r.totals, r.err
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func intSum(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func newTestLedgerMetrics(t *testing.T, source ReservedQuantitySource) (*LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, nil)
	m, err := NewLedgerMetrics(mp.Meter(LedgerMeterName), source, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, reader
}

func TestLedgerMetrics_Counters(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestLedgerMetrics(t, nil)

	m.RecordMovement(ctx, "purchase_receive", "applied")
	m.RecordMovement(ctx, "purchase_receive", "applied")
	m.RecordMovement(ctx, "adjustment_decrease", "rejected")
	m.RecordAllocation(ctx, "expired")
	m.RecordTransfer(ctx, "in_transit")
	m.RecordReceipt(ctx, decimal.NewFromInt(30), decimal.RequireFromString("2.5"))
	m.RecordReceipt(ctx, decimal.Zero, decimal.NewFromInt(1))
	m.RecordJob(ctx, "ledger-reconcile", "SUCCESS", 40*time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(2), intSum(t, got["ledger_movements_total"],
		AttrMovementType.String("purchase_receive"), AttrStatus.String("applied")))
	assert.Equal(t, int64(1), intSum(t, got["ledger_movements_total"],
		AttrMovementType.String("adjustment_decrease"), AttrStatus.String("rejected")))
	assert.Equal(t, int64(1), intSum(t, got["ledger_allocations_total"], AttrOutcome.String("expired")))
	assert.Equal(t, int64(1), intSum(t, got["ledger_transfers_total"], AttrStatus.String("in_transit")))
	assert.Equal(t, int64(1), intSum(t, got["ledger_jobs_total"],
		AttrTask.String("ledger-reconcile"), AttrStatus.String("SUCCESS")))

	received, ok := got["ledger_receipts_quantity_total"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	byKind := map[string]float64{}
	for _, dp := range received.DataPoints {
		kind, _ := dp.Attributes.Value(AttrKind)
		byKind[kind.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]float64{"accepted": 30, "rejected": 3.5}, byKind)

	hist, ok := got["ledger_job_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestLedgerMetrics_ReservedGauge(t *testing.T) {
	warehouse := uuid.New()
	_, reader := newTestLedgerMetrics(t, reservedTotals{totals: map[uuid.UUID]decimal.Decimal{
		warehouse: decimal.NewFromInt(7),
	}})

	got := collect(t, reader)
	gauge, ok := got["ledger_reserved_quantity"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 7.0, gauge.DataPoints[0].Value)
	id, _ := gauge.DataPoints[0].Attributes.Value(AttrWarehouseID)
	assert.Equal(t, warehouse.String(), id.AsString())
}

func TestLedgerMetrics_ReservedGaugeSourceError(t *testing.T) {
	_, reader := newTestLedgerMetrics(t, reservedTotals{err: errors.New("db closed")})

	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	assert.ErrorContains(t, err, "db closed")
}

type fixedPool sql.DBStats

func (p fixedPool) Stats() sql.DBStats { return sql.DBStats(p) }

func TestDBPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, nil)

	pool, err := NewDBPoolMetrics(mp.Meter("db"), fixedPool{
		MaxOpenConnections: 25,
		OpenConnections:    4,
		InUse:              3,
		Idle:               1,
		WaitCount:          9,
	})
	require.NoError(t, err)
	defer pool.Close()

	got := collect(t, reader)
	gauge, ok := got["db_pool_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	byState := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		state, _ := dp.Attributes.Value(AttrDBState)
		byState[state.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"idle": 1, "in_use": 3, "open": 4}, byState)
	assert.Equal(t, int64(9), intSum(t, got["db_pool_wait_total"]))
}
