package inventory

import (
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeMovement   = "MovementRecord"
	AggregateTypeAdjustment = "AdjustmentRecord"
	AggregateTypeTransfer   = "TransferRecord"
	AggregateTypeAllocation = "OrderItemAllocation"
	AggregateTypeReceipt    = "PurchaseOrderItemReceipt"
)

// Event type constants
const (
	EventTypeMovementRecorded = "inventory.movement.recorded"
	EventTypeMovementApplied  = "inventory.movement.applied"
	EventTypeMovementRejected = "inventory.movement.rejected"

	EventTypeAllocationCreated     = "inventory.allocation.created"
	EventTypeAllocationReleased    = "inventory.allocation.released"
	EventTypeAllocationExpired     = "inventory.allocation.expired"
	EventTypeAllocationConsumed    = "inventory.allocation.consumed"
	EventTypeAllocationBackordered = "inventory.allocation.backordered"

	EventTypeAdjustmentSubmitted = "inventory.adjustment.submitted"
	EventTypeAdjustmentApplied   = "inventory.adjustment.applied"
	EventTypeAdjustmentRejected  = "inventory.adjustment.rejected"
	EventTypeAdjustmentCancelled = "inventory.adjustment.cancelled"

	EventTypeTransferInitiated  = "inventory.transfer.initiated"
	EventTypeTransferApproved   = "inventory.transfer.approved"
	EventTypeTransferDispatched = "inventory.transfer.dispatched"
	EventTypeTransferCompleted  = "inventory.transfer.completed"
	EventTypeTransferCancelled  = "inventory.transfer.cancelled"

	EventTypeReceiptRecorded = "inventory.receipt.recorded"
)

// MovementEvent is raised when a movement record is created, applied or rejected
type MovementEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID       `json:"product_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	ReferenceNumber string          `json:"reference_number"`
	MovementType    MovementType    `json:"movement_type"`
	Status          MovementStatus  `json:"status"`
	QuantityMoved   decimal.Decimal `json:"quantity_moved"`
	QuantityAfter   decimal.Decimal `json:"quantity_after"`
	TotalValue      decimal.Decimal `json:"total_value"`
}

func newMovementEvent(eventType string, m *MovementRecord) *MovementEvent {
	return &MovementEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeMovement, m.ID),
		ProductID:       m.ProductID,
		WarehouseID:     m.WarehouseID,
		ReferenceNumber: m.ReferenceNumber,
		MovementType:    m.MovementType,
		Status:          m.Status,
		QuantityMoved:   m.QuantityMoved,
		QuantityAfter:   m.QuantityAfter,
		TotalValue:      m.TotalValue,
	}
}

// NewMovementRecordedEvent creates the event for a newly created movement
func NewMovementRecordedEvent(m *MovementRecord) *MovementEvent {
	return newMovementEvent(EventTypeMovementRecorded, m)
}

// NewMovementAppliedEvent creates the event for a movement that changed its position
func NewMovementAppliedEvent(m *MovementRecord) *MovementEvent {
	return newMovementEvent(EventTypeMovementApplied, m)
}

// NewMovementRejectedEvent creates the event for a rejected movement
func NewMovementRejectedEvent(m *MovementRecord) *MovementEvent {
	return newMovementEvent(EventTypeMovementRejected, m)
}

// AllocationEvent is raised on every change to a line's reservation
type AllocationEvent struct {
	shared.BaseDomainEvent
	OrderID           uuid.UUID        `json:"order_id"`
	LineID            uuid.UUID        `json:"line_id"`
	ProductID         uuid.UUID        `json:"product_id"`
	WarehouseID       uuid.UUID        `json:"warehouse_id"`
	Quantity          decimal.Decimal  `json:"quantity"`
	AllocatedQuantity decimal.Decimal  `json:"allocated_quantity"`
	Status            AllocationStatus `json:"status"`
}

// NewAllocationEvent creates an allocation event of the given type
func NewAllocationEvent(eventType string, a *OrderItemAllocation, quantity decimal.Decimal) *AllocationEvent {
	var warehouseID uuid.UUID
	if a.WarehouseID != nil {
		warehouseID = *a.WarehouseID
	}
	return &AllocationEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(eventType, AggregateTypeAllocation, a.ID),
		OrderID:           a.OrderID,
		LineID:            a.LineID,
		ProductID:         a.ProductID,
		WarehouseID:       warehouseID,
		Quantity:          quantity,
		AllocatedQuantity: a.AllocatedQuantity,
		Status:            a.Status,
	}
}

// AdjustmentEvent is raised on adjustment workflow transitions
type AdjustmentEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID        `json:"product_id"`
	WarehouseID     uuid.UUID        `json:"warehouse_id"`
	ReferenceNumber string           `json:"reference_number"`
	AdjustmentType  AdjustmentType   `json:"adjustment_type"`
	Quantity        decimal.Decimal  `json:"quantity"`
	ReasonCode      ReasonCode       `json:"reason_code"`
	Status          AdjustmentStatus `json:"status"`
}

// NewAdjustmentEvent creates an adjustment event of the given type
func NewAdjustmentEvent(eventType string, a *AdjustmentRecord) *AdjustmentEvent {
	return &AdjustmentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeAdjustment, a.ID),
		ProductID:       a.ProductID,
		WarehouseID:     a.WarehouseID,
		ReferenceNumber: a.ReferenceNumber,
		AdjustmentType:  a.AdjustmentType,
		Quantity:        a.QuantityAdjusted,
		ReasonCode:      a.ReasonCode,
		Status:          a.Status,
	}
}

// TransferEvent is raised on transfer workflow transitions
type TransferEvent struct {
	shared.BaseDomainEvent
	ReferenceNumber string          `json:"reference_number"`
	ProductID       uuid.UUID       `json:"product_id"`
	FromWarehouseID uuid.UUID       `json:"from_warehouse_id"`
	ToWarehouseID   uuid.UUID       `json:"to_warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Status          TransferStatus  `json:"status"`
}

// NewTransferEvent creates a transfer event of the given type
func NewTransferEvent(eventType string, t *TransferRecord) *TransferEvent {
	return &TransferEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeTransfer, t.ID),
		ReferenceNumber: t.ReferenceNumber,
		ProductID:       t.ProductID,
		FromWarehouseID: t.FromWarehouseID,
		ToWarehouseID:   t.ToWarehouseID,
		Quantity:        t.Quantity,
		Status:          t.Status,
	}
}

// ReceiptRecordedEvent is raised when goods are received against a purchase line
type ReceiptRecordedEvent struct {
	shared.BaseDomainEvent
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id"`
	LineID          uuid.UUID       `json:"line_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	Accepted        decimal.Decimal `json:"accepted"`
	Rejected        decimal.Decimal `json:"rejected"`
	QuantityPending decimal.Decimal `json:"quantity_pending"`
	Status          ReceiptStatus   `json:"status"`
}

// NewReceiptRecordedEvent creates a new ReceiptRecordedEvent
func NewReceiptRecordedEvent(r *PurchaseOrderItemReceipt, accepted, rejected decimal.Decimal) *ReceiptRecordedEvent {
	return &ReceiptRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceiptRecorded, AggregateTypeReceipt, r.ID),
		PurchaseOrderID: r.PurchaseOrderID,
		LineID:          r.LineID,
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		Accepted:        accepted,
		Rejected:        rejected,
		QuantityPending: r.QuantityPending(),
		Status:          r.Status(),
	}
}
