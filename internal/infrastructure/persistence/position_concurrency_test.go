package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var positionColumns = []string{
	"id", "created_at", "updated_at", "version",
	"product_id", "warehouse_id", "quantity_on_hand", "quantity_reserved",
}

func positionRow(id uuid.UUID, key inventory.PositionKey, version int, onHand, reserved string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(positionColumns).
		AddRow(id.String(), now, now, version, key.ProductID.String(), key.WarehouseID.String(), onHand, reserved)
}

func newTestKey() inventory.PositionKey {
	return inventory.PositionKey{ProductID: uuid.New(), WarehouseID: uuid.New()}
}

func TestApplyDelta_CompareAndSwap(t *testing.T) {
	t.Run("applies delta when version matches", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB)
		key := newTestKey()
		id := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "inventory_positions" WHERE product_id = \$1 AND warehouse_id = \$2`).
			WillReturnRows(positionRow(id, key, 3, "10", "4"))
		mock.ExpectExec(`UPDATE "inventory_positions" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		position, err := repo.ApplyDelta(context.Background(), key, inventory.PositionDelta{
			OnHand:   decimal.NewFromInt(-2),
			Reserved: decimal.NewFromInt(-2),
		}, 3)

		require.NoError(t, err)
		assert.Equal(t, 4, position.Version)
		assert.True(t, position.QuantityOnHand.Equal(decimal.NewFromInt(8)))
		assert.True(t, position.QuantityReserved.Equal(decimal.NewFromInt(2)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects stale expected version without writing", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB)
		key := newTestKey()

		mock.ExpectQuery(`SELECT \* FROM "inventory_positions"`).
			WillReturnRows(positionRow(uuid.New(), key, 5, "10", "0"))

		_, err := repo.ApplyDelta(context.Background(), key, inventory.PositionDelta{OnHand: decimal.NewFromInt(1)}, 4)

		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports conflict when the row changed between read and write", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB)
		key := newTestKey()

		mock.ExpectQuery(`SELECT \* FROM "inventory_positions"`).
			WillReturnRows(positionRow(uuid.New(), key, 1, "10", "0"))
		mock.ExpectExec(`UPDATE "inventory_positions" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.ApplyDelta(context.Background(), key, inventory.PositionDelta{OnHand: decimal.NewFromInt(1)}, 1)

		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses a delta that would break invariants", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB)
		key := newTestKey()

		mock.ExpectQuery(`SELECT \* FROM "inventory_positions"`).
			WillReturnRows(positionRow(uuid.New(), key, 1, "3", "0"))

		_, err := repo.ApplyDelta(context.Background(), key, inventory.PositionDelta{OnHand: decimal.NewFromInt(-5)}, 1)

		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetForUpdate_Postgres(t *testing.T) {
	t.Run("sets lock timeout and selects for update", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB).WithLockTimeout(250 * time.Millisecond)
		key := newTestKey()

		mock.ExpectExec(`SET LOCAL lock_timeout = '250ms'`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "inventory_positions" WHERE .* FOR UPDATE`).
			WillReturnRows(positionRow(uuid.New(), key, 2, "7", "1"))

		position, err := repo.GetForUpdate(context.Background(), key)

		require.NoError(t, err)
		assert.Equal(t, key, position.Key())
		assert.True(t, position.Available().Equal(decimal.NewFromInt(6)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps lock_not_available to lock timeout", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB)

		mock.ExpectQuery(`SELECT \* FROM "inventory_positions" WHERE .* FOR UPDATE`).
			WillReturnError(&pgconn.PgError{Code: "55P03", Message: "could not obtain lock on row"})

		_, err := repo.GetForUpdate(context.Background(), newTestKey())

		assert.ErrorIs(t, err, shared.ErrLockTimeout)
		assert.True(t, shared.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects an incomplete key before querying", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormPositionRepository(gormDB)

		_, err := repo.GetForUpdate(context.Background(), inventory.PositionKey{ProductID: uuid.New()})

		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVersionedSave_Conflict(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormTransferRepository(gormDB)

	transfer := &inventory.TransferRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(time.Now().UTC()),
		ReferenceNumber:   "TR-20260101-0000abcd",
		Status:            inventory.TransferStatusApproved,
	}

	mock.ExpectExec(`UPDATE "transfer_records" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveWithLock(context.Background(), transfer)

	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.Equal(t, 1, transfer.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
