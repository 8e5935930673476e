package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentModel is the persistence model for the AdjustmentRecord aggregate root.
type AdjustmentModel struct {
	AggregateModel
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_adjustment_position,priority:1"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_adjustment_position,priority:2"`
	ReferenceNumber  string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	AdjustmentType   string          `gorm:"type:varchar(16);not null"`
	QuantityAdjusted decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityBefore   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityAfter    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReasonCode       string          `gorm:"type:varchar(32);not null"`
	Reason           string          `gorm:"type:varchar(500)"`
	Status           string          `gorm:"type:varchar(16);not null;index"`
	MovementID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	RequestedBy      uuid.UUID       `gorm:"type:uuid;not null"`
	ApprovedBy       *uuid.UUID      `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	ResolvedBy       *uuid.UUID `gorm:"type:uuid"`
	ResolvedAt       *time.Time
	ResolutionNote   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (AdjustmentModel) TableName() string {
	return "adjustment_records"
}

// ToDomain converts the persistence model to a domain AdjustmentRecord.
func (m *AdjustmentModel) ToDomain() *inventory.AdjustmentRecord {
	return &inventory.AdjustmentRecord{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		ReferenceNumber:   m.ReferenceNumber,
		AdjustmentType:    inventory.AdjustmentType(m.AdjustmentType),
		QuantityAdjusted:  m.QuantityAdjusted,
		QuantityBefore:    m.QuantityBefore,
		QuantityAfter:     m.QuantityAfter,
		ReasonCode:        inventory.ReasonCode(m.ReasonCode),
		Reason:            m.Reason,
		Status:            inventory.AdjustmentStatus(m.Status),
		MovementID:        m.MovementID,
		RequestedBy:       m.RequestedBy,
		ApprovedBy:        m.ApprovedBy,
		ApprovedAt:        m.ApprovedAt,
		ResolvedBy:        m.ResolvedBy,
		ResolvedAt:        m.ResolvedAt,
		ResolutionNote:    m.ResolutionNote,
	}
}

// FromDomain populates the persistence model from a domain AdjustmentRecord.
func (m *AdjustmentModel) FromDomain(a *inventory.AdjustmentRecord) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.ProductID = a.ProductID
	m.WarehouseID = a.WarehouseID
	m.ReferenceNumber = a.ReferenceNumber
	m.AdjustmentType = string(a.AdjustmentType)
	m.QuantityAdjusted = a.QuantityAdjusted
	m.QuantityBefore = a.QuantityBefore
	m.QuantityAfter = a.QuantityAfter
	m.ReasonCode = string(a.ReasonCode)
	m.Reason = a.Reason
	m.Status = string(a.Status)
	m.MovementID = a.MovementID
	m.RequestedBy = a.RequestedBy
	m.ApprovedBy = a.ApprovedBy
	m.ApprovedAt = a.ApprovedAt
	m.ResolvedBy = a.ResolvedBy
	m.ResolvedAt = a.ResolvedAt
	m.ResolutionNote = a.ResolutionNote
}

// AdjustmentModelFromDomain creates a new persistence model from a domain AdjustmentRecord.
func AdjustmentModelFromDomain(a *inventory.AdjustmentRecord) *AdjustmentModel {
	m := &AdjustmentModel{}
	m.FromDomain(a)
	return m
}

// TransferModel is the persistence model for the TransferRecord aggregate root.
type TransferModel struct {
	AggregateModel
	ReferenceNumber    string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	FromWarehouseID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ToWarehouseID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status             string          `gorm:"type:varchar(16);not null;index"`
	Reason             string          `gorm:"type:varchar(500)"`
	InitiatedBy        uuid.UUID       `gorm:"type:uuid;not null"`
	ApprovedBy         *uuid.UUID      `gorm:"type:uuid"`
	ApprovedAt         *time.Time
	DispatchedBy       *uuid.UUID `gorm:"type:uuid"`
	DispatchedAt       *time.Time
	CompletedBy        *uuid.UUID `gorm:"type:uuid"`
	CompletedAt        *time.Time
	CancelledBy        *uuid.UUID `gorm:"type:uuid"`
	CancelledAt        *time.Time
	CancelReason       string     `gorm:"type:varchar(500)"`
	OutMovementID      *uuid.UUID `gorm:"type:uuid"`
	InMovementID       *uuid.UUID `gorm:"type:uuid"`
	ReversalMovementID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TransferModel) TableName() string {
	return "transfer_records"
}

// ToDomain converts the persistence model to a domain TransferRecord.
func (m *TransferModel) ToDomain() *inventory.TransferRecord {
	return &inventory.TransferRecord{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		ReferenceNumber:    m.ReferenceNumber,
		ProductID:          m.ProductID,
		FromWarehouseID:    m.FromWarehouseID,
		ToWarehouseID:      m.ToWarehouseID,
		Quantity:           m.Quantity,
		Status:             inventory.TransferStatus(m.Status),
		Reason:             m.Reason,
		InitiatedBy:        m.InitiatedBy,
		ApprovedBy:         m.ApprovedBy,
		ApprovedAt:         m.ApprovedAt,
		DispatchedBy:       m.DispatchedBy,
		DispatchedAt:       m.DispatchedAt,
		CompletedBy:        m.CompletedBy,
		CompletedAt:        m.CompletedAt,
		CancelledBy:        m.CancelledBy,
		CancelledAt:        m.CancelledAt,
		CancelReason:       m.CancelReason,
		OutMovementID:      m.OutMovementID,
		InMovementID:       m.InMovementID,
		ReversalMovementID: m.ReversalMovementID,
	}
}

// FromDomain populates the persistence model from a domain TransferRecord.
func (m *TransferModel) FromDomain(t *inventory.TransferRecord) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.ReferenceNumber = t.ReferenceNumber
	m.ProductID = t.ProductID
	m.FromWarehouseID = t.FromWarehouseID
	m.ToWarehouseID = t.ToWarehouseID
	m.Quantity = t.Quantity
	m.Status = string(t.Status)
	m.Reason = t.Reason
	m.InitiatedBy = t.InitiatedBy
	m.ApprovedBy = t.ApprovedBy
	m.ApprovedAt = t.ApprovedAt
	m.DispatchedBy = t.DispatchedBy
	m.DispatchedAt = t.DispatchedAt
	m.CompletedBy = t.CompletedBy
	m.CompletedAt = t.CompletedAt
	m.CancelledBy = t.CancelledBy
	m.CancelledAt = t.CancelledAt
	m.CancelReason = t.CancelReason
	m.OutMovementID = t.OutMovementID
	m.InMovementID = t.InMovementID
	m.ReversalMovementID = t.ReversalMovementID
}

// TransferModelFromDomain creates a new persistence model from a domain TransferRecord.
func TransferModelFromDomain(t *inventory.TransferRecord) *TransferModel {
	m := &TransferModel{}
	m.FromDomain(t)
	return m
}

// AllocationModel is the persistence model for the OrderItemAllocation aggregate root.
type AllocationModel struct {
	AggregateModel
	OrderID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_order_line,priority:1"`
	LineID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_order_line,priority:2"`
	ProductID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	WarehouseID         *uuid.UUID      `gorm:"type:uuid"`
	QuantityOrdered     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AllocatedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityFulfilled   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityShipped     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityBackordered decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	RequiresAllocation  bool            `gorm:"not null"`
	AllocationExpiresAt *time.Time      `gorm:"index:idx_allocation_expiry,priority:2"`
	Status              string          `gorm:"type:varchar(16);not null;index:idx_allocation_expiry,priority:1"`
	LastAllocatedAt     *time.Time
	ReleasedAt          *time.Time
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "order_item_allocations"
}

// ToDomain converts the persistence model to a domain OrderItemAllocation.
func (m *AllocationModel) ToDomain() *inventory.OrderItemAllocation {
	return &inventory.OrderItemAllocation{
		BaseAggregateRoot:   m.ToAggregateRoot(),
		OrderID:             m.OrderID,
		LineID:              m.LineID,
		ProductID:           m.ProductID,
		WarehouseID:         m.WarehouseID,
		QuantityOrdered:     m.QuantityOrdered,
		AllocatedQuantity:   m.AllocatedQuantity,
		QuantityFulfilled:   m.QuantityFulfilled,
		QuantityShipped:     m.QuantityShipped,
		QuantityBackordered: m.QuantityBackordered,
		RequiresAllocation:  m.RequiresAllocation,
		AllocationExpiresAt: m.AllocationExpiresAt,
		Status:              inventory.AllocationStatus(m.Status),
		LastAllocatedAt:     m.LastAllocatedAt,
		ReleasedAt:          m.ReleasedAt,
	}
}

// FromDomain populates the persistence model from a domain OrderItemAllocation.
func (m *AllocationModel) FromDomain(a *inventory.OrderItemAllocation) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.OrderID = a.OrderID
	m.LineID = a.LineID
	m.ProductID = a.ProductID
	m.WarehouseID = a.WarehouseID
	m.QuantityOrdered = a.QuantityOrdered
	m.AllocatedQuantity = a.AllocatedQuantity
	m.QuantityFulfilled = a.QuantityFulfilled
	m.QuantityShipped = a.QuantityShipped
	m.QuantityBackordered = a.QuantityBackordered
	m.RequiresAllocation = a.RequiresAllocation
	m.AllocationExpiresAt = a.AllocationExpiresAt
	m.Status = string(a.Status)
	m.LastAllocatedAt = a.LastAllocatedAt
	m.ReleasedAt = a.ReleasedAt
}

// AllocationModelFromDomain creates a new persistence model from a domain OrderItemAllocation.
func AllocationModelFromDomain(a *inventory.OrderItemAllocation) *AllocationModel {
	m := &AllocationModel{}
	m.FromDomain(a)
	return m
}

// ReceiptModel is the persistence model for the PurchaseOrderItemReceipt aggregate root.
// Status is derived from the quantities and flags, so it is stored for querying only.
type ReceiptModel struct {
	AggregateModel
	PurchaseOrderID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_order_line,priority:1"`
	LineID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_order_line,priority:2"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityOrdered  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityReceived decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityRejected decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Backordered      bool            `gorm:"not null;default:false"`
	Cancelled        bool            `gorm:"not null;default:false"`
	CancelReason     string          `gorm:"type:varchar(500)"`
	Status           string          `gorm:"type:varchar(24);not null;index"`
	LastReceivedAt   *time.Time
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "purchase_order_item_receipts"
}

// ToDomain converts the persistence model to a domain PurchaseOrderItemReceipt.
func (m *ReceiptModel) ToDomain() *inventory.PurchaseOrderItemReceipt {
	return &inventory.PurchaseOrderItemReceipt{
		BaseAggregateRoot: m.ToAggregateRoot(),
		PurchaseOrderID:   m.PurchaseOrderID,
		LineID:            m.LineID,
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		UnitCost:          m.UnitCost,
		QuantityOrdered:   m.QuantityOrdered,
		QuantityReceived:  m.QuantityReceived,
		QuantityRejected:  m.QuantityRejected,
		Backordered:       m.Backordered,
		Cancelled:         m.Cancelled,
		CancelReason:      m.CancelReason,
		LastReceivedAt:    m.LastReceivedAt,
	}
}

// FromDomain populates the persistence model from a domain PurchaseOrderItemReceipt.
func (m *ReceiptModel) FromDomain(r *inventory.PurchaseOrderItemReceipt) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.PurchaseOrderID = r.PurchaseOrderID
	m.LineID = r.LineID
	m.ProductID = r.ProductID
	m.WarehouseID = r.WarehouseID
	m.UnitCost = r.UnitCost
	m.QuantityOrdered = r.QuantityOrdered
	m.QuantityReceived = r.QuantityReceived
	m.QuantityRejected = r.QuantityRejected
	m.Backordered = r.Backordered
	m.Cancelled = r.Cancelled
	m.CancelReason = r.CancelReason
	m.Status = string(r.Status())
	m.LastReceivedAt = r.LastReceivedAt
}

// ReceiptModelFromDomain creates a new persistence model from a domain PurchaseOrderItemReceipt.
func ReceiptModelFromDomain(r *inventory.PurchaseOrderItemReceipt) *ReceiptModel {
	m := &ReceiptModel{}
	m.FromDomain(r)
	return m
}
