package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPosition(t *testing.T, repo *GormPositionRepository, key inventory.PositionKey, onHand, reserved int64) *inventory.InventoryPosition {
	t.Helper()
	ctx := context.Background()
	position, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	position, err = repo.ApplyDelta(ctx, key, inventory.PositionDelta{
		OnHand:   decimal.NewFromInt(onHand),
		Reserved: decimal.NewFromInt(reserved),
	}, position.Version)
	require.NoError(t, err)
	return position
}

func newAppliedMovement(t *testing.T, key inventory.PositionKey, movementType inventory.MovementType, qty int64, at time.Time) *inventory.MovementRecord {
	t.Helper()
	position, err := inventory.NewInventoryPosition(key, at)
	require.NoError(t, err)
	position.QuantityOnHand = decimal.NewFromInt(1000)
	record, err := inventory.NewMovementRecord(inventory.MovementInput{
		ProductID:    key.ProductID,
		WarehouseID:  key.WarehouseID,
		ActorID:      uuid.New(),
		MovementType: movementType,
		Quantity:     decimal.NewFromInt(qty),
		Metadata:     map[string]string{"source": "test"},
	}, position, at)
	require.NoError(t, err)
	require.NoError(t, record.Apply(position, at))
	return record
}

func TestPositionRepository_GetOrCreate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormPositionRepository(db)
	ctx := context.Background()
	key := newTestKey()

	first, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.QuantityOnHand.IsZero())
	assert.True(t, first.QuantityReserved.IsZero())
	assert.Equal(t, 1, first.Version)

	second, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Table("inventory_positions").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPositionRepository_ApplyDelta(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormPositionRepository(db)
	ctx := context.Background()
	key := newTestKey()

	position := seedPosition(t, repo, key, 10, 4)
	assert.Equal(t, 2, position.Version)

	t.Run("stale version is refused", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, key, inventory.PositionDelta{OnHand: decimal.NewFromInt(1)}, 1)
		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	})

	t.Run("reserved above on hand is refused", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, key, inventory.PositionDelta{Reserved: decimal.NewFromInt(7)}, 2)
		assert.ErrorIs(t, err, shared.ErrInsufficientAvailable)
	})

	stored, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	assert.True(t, stored.QuantityOnHand.Equal(decimal.NewFromInt(10)))
	assert.True(t, stored.QuantityReserved.Equal(decimal.NewFromInt(4)))
	assert.True(t, stored.Available().Equal(decimal.NewFromInt(6)))
	assert.Equal(t, 2, stored.Version)
}

func TestPositionRepository_ListAndReservedByWarehouse(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormPositionRepository(db)
	ctx := context.Background()

	productID := uuid.New()
	warehouseA := uuid.New()
	warehouseB := uuid.New()
	seedPosition(t, repo, inventory.PositionKey{ProductID: productID, WarehouseID: warehouseA}, 10, 3)
	seedPosition(t, repo, inventory.PositionKey{ProductID: productID, WarehouseID: warehouseB}, 5, 0)
	seedPosition(t, repo, inventory.PositionKey{ProductID: uuid.New(), WarehouseID: warehouseA}, 8, 2)

	t.Run("filters by product", func(t *testing.T) {
		positions, total, err := repo.List(ctx, inventory.PositionFilter{
			Filter:    shared.Filter{Page: 1, PageSize: 10},
			ProductID: &productID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, positions, 2)
	})

	t.Run("only reserved", func(t *testing.T) {
		positions, total, err := repo.List(ctx, inventory.PositionFilter{
			Filter:       shared.Filter{Page: 1, PageSize: 10},
			OnlyReserved: true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, p := range positions {
			assert.True(t, p.QuantityReserved.IsPositive())
		}
	})

	t.Run("pages keep the total", func(t *testing.T) {
		positions, total, err := repo.List(ctx, inventory.PositionFilter{
			Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "quantity_on_hand", OrderDir: "asc"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, positions, 1)
		assert.True(t, positions[0].QuantityOnHand.Equal(decimal.NewFromInt(10)))
	})

	t.Run("reserved totals per warehouse", func(t *testing.T) {
		totals, err := repo.ReservedByWarehouse(ctx)
		require.NoError(t, err)
		assert.True(t, totals[warehouseA].Equal(decimal.NewFromInt(5)), "got %s", totals[warehouseA])
		assert.True(t, totals[warehouseB].IsZero())
	})
}

func TestMovementRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormMovementRepository(db)
	ctx := context.Background()
	key := newTestKey()
	at := testutil.Epoch

	receive := newAppliedMovement(t, key, inventory.MovementTypePurchaseReceive, 20, at)
	writeOff := newAppliedMovement(t, key, inventory.MovementTypeDamageWriteOff, 3, at.Add(time.Hour))
	_, err := repo.Append(ctx, receive)
	require.NoError(t, err)
	_, err = repo.Append(ctx, writeOff)
	require.NoError(t, err)

	t.Run("round trips a record", func(t *testing.T) {
		found, err := repo.FindByReference(ctx, receive.ReferenceNumber)
		require.NoError(t, err)
		assert.Equal(t, receive.ID, found.ID)
		assert.Equal(t, inventory.MovementStatusApplied, found.Status)
		assert.True(t, found.QuantityMoved.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, "test", found.Metadata["source"])
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate reference is refused", func(t *testing.T) {
		dup := newAppliedMovement(t, key, inventory.MovementTypePurchaseReceive, 1, at)
		dup.ReferenceNumber = receive.ReferenceNumber
		_, err := repo.Append(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrDuplicateReference)

		exists, err := repo.ExistsByReference(ctx, receive.ReferenceNumber)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("sums applied quantities", func(t *testing.T) {
		sum, err := repo.SumApplied(ctx, key)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(17)), "got %s", sum)
	})

	t.Run("filters by type and time window", func(t *testing.T) {
		writeOffType := inventory.MovementTypeDamageWriteOff
		records, total, err := repo.List(ctx, inventory.MovementFilter{
			Filter:       shared.Filter{Page: 1, PageSize: 10},
			ProductID:    &key.ProductID,
			MovementType: &writeOffType,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, writeOff.ID, records[0].ID)

		from := at.Add(30 * time.Minute)
		records, total, err = repo.List(ctx, inventory.MovementFilter{
			Filter: shared.Filter{Page: 1, PageSize: 10},
			From:   &from,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, writeOff.ID, records[0].ID)
	})
}

func TestMovementRepository_SaveChecksVersion(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormMovementRepository(db)
	ctx := context.Background()
	key := newTestKey()

	position, err := inventory.NewInventoryPosition(key, testutil.Epoch)
	require.NoError(t, err)
	record, err := inventory.NewMovementRecord(inventory.MovementInput{
		ProductID:    key.ProductID,
		WarehouseID:  key.WarehouseID,
		ActorID:      uuid.New(),
		MovementType: inventory.MovementTypeAdjustmentIncrease,
		Quantity:     decimal.NewFromInt(4),
	}, position, testutil.Epoch)
	require.NoError(t, err)
	_, err = repo.Append(ctx, record)
	require.NoError(t, err)

	stale, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)

	require.NoError(t, record.Reject(uuid.New(), "not needed", testutil.Epoch))
	require.NoError(t, repo.Save(ctx, record))
	assert.Equal(t, 2, record.Version)

	require.NoError(t, stale.Approve(uuid.New(), testutil.Epoch))
	err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	stored, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.MovementStatusRejected, stored.Status)
	assert.Equal(t, "not needed", stored.RejectionReason)
}

func TestAllocationRepository_FindExpired(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormAllocationRepository(db)
	ctx := context.Background()
	now := testutil.Epoch
	warehouseID := uuid.New()

	newLine := func(requires bool, ttl time.Duration) *inventory.OrderItemAllocation {
		item, err := inventory.NewOrderItemAllocation(inventory.OrderLineInput{
			OrderID:            uuid.New(),
			LineID:             uuid.New(),
			ProductID:          uuid.New(),
			QuantityOrdered:    decimal.NewFromInt(5),
			RequiresAllocation: requires,
		}, now.Add(-48*time.Hour))
		require.NoError(t, err)
		require.NoError(t, item.Allocate(warehouseID, decimal.NewFromInt(2), ttl, now.Add(-48*time.Hour)))
		require.NoError(t, repo.Create(ctx, item))
		return item
	}

	older := newLine(true, time.Hour)
	newer := newLine(true, 2*time.Hour)
	newLine(true, 72*time.Hour)
	newLine(false, time.Hour)

	expired, err := repo.FindExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, older.ID, expired[0].ID)
	assert.Equal(t, newer.ID, expired[1].ID)

	limited, err := repo.FindExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	t.Run("order line is unique", func(t *testing.T) {
		dup, err := inventory.NewOrderItemAllocation(inventory.OrderLineInput{
			OrderID:            older.OrderID,
			LineID:             older.LineID,
			ProductID:          older.ProductID,
			QuantityOrdered:    decimal.NewFromInt(1),
			RequiresAllocation: true,
		}, now)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrDuplicateReference)

		found, err := repo.FindByOrderLine(ctx, older.OrderID, older.LineID)
		require.NoError(t, err)
		assert.Equal(t, older.ID, found.ID)
	})
}

func TestReceiptRepository_RoundTrip(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormReceiptRepository(db)
	ctx := context.Background()
	purchaseOrderID := uuid.New()

	item, err := inventory.NewPurchaseOrderItemReceipt(inventory.PurchaseItemInput{
		PurchaseOrderID: purchaseOrderID,
		LineID:          uuid.New(),
		ProductID:       uuid.New(),
		WarehouseID:     uuid.New(),
		QuantityOrdered: decimal.NewFromInt(100),
		UnitCost:        decimal.NewFromFloat(2.5),
	}, testutil.Epoch)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, item))

	require.NoError(t, item.Receive(decimal.NewFromInt(30), decimal.NewFromInt(5), testutil.Epoch.Add(time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, item))

	items, err := repo.FindByPurchaseOrder(ctx, purchaseOrderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].QuantityReceived.Equal(decimal.NewFromInt(30)))
	assert.True(t, items[0].QuantityRejected.Equal(decimal.NewFromInt(5)))
	assert.True(t, items[0].QuantityPending().Equal(decimal.NewFromInt(65)))
	assert.Equal(t, inventory.ReceiptStatusPartiallyReceived, items[0].Status())
	assert.Equal(t, 2, items[0].Version)
}

func TestTransferRepository_ListMatchesEitherWarehouse(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormTransferRepository(db)
	ctx := context.Background()
	hub := uuid.New()

	for i := 0; i < 3; i++ {
		from, to := hub, uuid.New()
		if i == 1 {
			from, to = uuid.New(), hub
		}
		if i == 2 {
			from, to = uuid.New(), uuid.New()
		}
		transfer, err := inventory.NewTransferRecord(inventory.TransferInput{
			ProductID:       uuid.New(),
			FromWarehouseID: from,
			ToWarehouseID:   to,
			Quantity:        decimal.NewFromInt(int64(i + 1)),
			InitiatedBy:     uuid.New(),
			ReferenceNumber: fmt.Sprintf("TR-TEST-%d", i),
		}, testutil.Epoch.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, transfer))
	}

	records, total, err := repo.List(ctx, inventory.TransferFilter{
		Filter:      shared.Filter{Page: 1, PageSize: 10, OrderBy: "created_at", OrderDir: "desc"},
		WarehouseID: &hub,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, "TR-TEST-1", records[0].ReferenceNumber)
	assert.Equal(t, "TR-TEST-0", records[1].ReferenceNumber)
}

func TestTransactionScope_RollsBackOnError(t *testing.T) {
	db := testutil.NewTestDB(t)
	scope := NewGormTransactionScope(db, 0)
	ctx := context.Background()
	key := newTestKey()
	boom := errors.New("boom")

	err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		position, err := repos.Positions().GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if _, err := repos.Positions().ApplyDelta(ctx, key, inventory.PositionDelta{OnHand: decimal.NewFromInt(9)}, position.Version); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Table("inventory_positions").Count(&count).Error)
	assert.Zero(t, count)
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"record not found", gorm.ErrRecordNotFound, shared.ErrNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, shared.ErrDuplicateReference},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, shared.ErrLockTimeout},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, shared.ErrConcurrentModification},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, shared.ErrConcurrentModification},
		{"unique violation", &pgconn.PgError{Code: "23505", Detail: "Key (reference_number)"}, shared.ErrDuplicateReference},
		{"wrapped not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), shared.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.err), tt.target)
		})
	}

	t.Run("passes through nil and unknown errors", func(t *testing.T) {
		assert.NoError(t, translateError(nil))
		other := errors.New("connection reset")
		assert.Same(t, other, translateError(other))
		domain := shared.Errorf(shared.ErrInsufficientStock, "short")
		assert.Same(t, domain, translateError(domain))
	})
}
