package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionRepository is the ledger store for inventory positions.
// Positions are created on first reference, so lookups by key never return
// shared.ErrNotFound.
type PositionRepository interface {
	// GetOrCreate returns the position for key, inserting a zeroed one if absent
	GetOrCreate(ctx context.Context, key PositionKey) (*InventoryPosition, error)

	// GetForUpdate is GetOrCreate that also takes a row lock where the
	// database supports it. Must be called inside a transaction.
	GetForUpdate(ctx context.Context, key PositionKey) (*InventoryPosition, error)

	// ApplyDelta adds delta to the position if its stored version still equals
	// expectedVersion. Returns shared.ErrConcurrentModification otherwise.
	ApplyDelta(ctx context.Context, key PositionKey, delta PositionDelta, expectedVersion int) (*InventoryPosition, error)

	// List returns positions matching the filter
	List(ctx context.Context, filter PositionFilter) ([]InventoryPosition, int64, error)

	// ReservedByWarehouse returns the total reserved quantity per warehouse
	ReservedByWarehouse(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

// PositionFilter narrows position queries
type PositionFilter struct {
	shared.Filter
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID
	// OnlyReserved keeps positions with quantity_reserved > 0
	OnlyReserved bool
}

// MovementRepository stores movement records
type MovementRepository interface {
	// Append inserts a new record. Returns shared.ErrDuplicateReference when
	// the reference number is taken.
	Append(ctx context.Context, record *MovementRecord) (uuid.UUID, error)

	// Save persists a status transition of an existing record
	Save(ctx context.Context, record *MovementRecord) error

	// FindByID finds a movement by ID
	FindByID(ctx context.Context, id uuid.UUID) (*MovementRecord, error)

	// FindByReference finds a movement by its reference number
	FindByReference(ctx context.Context, reference string) (*MovementRecord, error)

	// ExistsByReference checks whether a reference number is taken
	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// List returns records matching the filter, newest first
	List(ctx context.Context, filter MovementFilter) ([]MovementRecord, int64, error)

	// SumApplied sums quantity_moved of applied records for a position
	SumApplied(ctx context.Context, key PositionKey) (decimal.Decimal, error)
}

// MovementFilter narrows movement queries
type MovementFilter struct {
	shared.Filter
	ProductID    *uuid.UUID
	WarehouseID  *uuid.UUID
	Status       *MovementStatus
	MovementType *MovementType
	From         *time.Time
	To           *time.Time
}

// AdjustmentRepository stores adjustment records
type AdjustmentRepository interface {
	Create(ctx context.Context, record *AdjustmentRecord) error
	// SaveWithLock persists a mutated record, checking its version
	SaveWithLock(ctx context.Context, record *AdjustmentRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*AdjustmentRecord, error)
	List(ctx context.Context, filter AdjustmentFilter) ([]AdjustmentRecord, int64, error)
}

// AdjustmentFilter narrows adjustment queries
type AdjustmentFilter struct {
	shared.Filter
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID
	Status      *AdjustmentStatus
}

// TransferRepository stores transfer records
type TransferRepository interface {
	Create(ctx context.Context, record *TransferRecord) error
	SaveWithLock(ctx context.Context, record *TransferRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*TransferRecord, error)
	List(ctx context.Context, filter TransferFilter) ([]TransferRecord, int64, error)
}

// TransferFilter narrows transfer queries
type TransferFilter struct {
	shared.Filter
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID // matches either side
	Status      *TransferStatus
}

// AllocationRepository stores order item allocations
type AllocationRepository interface {
	Create(ctx context.Context, item *OrderItemAllocation) error
	SaveWithLock(ctx context.Context, item *OrderItemAllocation) error
	FindByID(ctx context.Context, id uuid.UUID) (*OrderItemAllocation, error)
	FindByOrderLine(ctx context.Context, orderID, lineID uuid.UUID) (*OrderItemAllocation, error)

	// FindExpired returns allocated lines whose expiry is before now and that
	// still require allocation, up to limit rows
	FindExpired(ctx context.Context, now time.Time, limit int) ([]OrderItemAllocation, error)
}

// ReceiptRepository stores purchase order item receipts
type ReceiptRepository interface {
	Create(ctx context.Context, item *PurchaseOrderItemReceipt) error
	SaveWithLock(ctx context.Context, item *PurchaseOrderItemReceipt) error
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrderItemReceipt, error)
	FindByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]PurchaseOrderItemReceipt, error)
}
