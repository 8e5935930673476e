package inventory_test

import (
	"context"
	"testing"

	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationService_Reconcile(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	report, err := l.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 0, report.CheckedPositions)

	l.receive(t, l.warehouseA, 8)
	l.receive(t, l.warehouseB, 3)

	report, err = l.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 2, report.CheckedPositions)
	assert.Equal(t, l.clock.Now(), report.CheckedAt)

	// Drift the stored counter away from the ledger.
	require.NoError(t, l.db.Model(&models.PositionModel{}).
		Where("product_id = ? AND warehouse_id = ?", l.productID, l.warehouseA).
		Update("quantity_on_hand", qty(11)).Error)

	report, err = l.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	require.Len(t, report.Discrepancies, 1)

	d := report.Discrepancies[0]
	assert.Equal(t, l.warehouseA, d.WarehouseID)
	assert.True(t, d.LedgerSum.Equal(qty(8)))
	assert.True(t, d.Difference.Equal(qty(3)))
	assert.Equal(t, "on hand differs from applied movements", d.Problem)
}

func TestReconciliationService_ReservedOutOfBounds(t *testing.T) {
	l := newLedger(t)
	l.receive(t, l.warehouseA, 2)

	require.NoError(t, l.db.Model(&models.PositionModel{}).
		Where("product_id = ? AND warehouse_id = ?", l.productID, l.warehouseA).
		Update("quantity_reserved", qty(5)).Error)

	report, err := l.reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "reserved out of bounds", report.Discrepancies[0].Problem)
}
