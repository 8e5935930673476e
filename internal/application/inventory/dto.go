package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionResponse represents an inventory position in API responses
type PositionResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	WarehouseID      uuid.UUID       `json:"warehouse_id"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	QuantityReserved decimal.Decimal `json:"quantity_reserved"`
	Available        decimal.Decimal `json:"available"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PositionListFilter represents filter options for position list
type PositionListFilter struct {
	ProductID    *uuid.UUID `form:"-"`
	WarehouseID  *uuid.UUID `form:"-"`
	OnlyReserved bool       `form:"only_reserved"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RecordMovementRequest represents a request to record a ledger movement
type RecordMovementRequest struct {
	ProductID           uuid.UUID         `json:"product_id" binding:"required"`
	WarehouseID         uuid.UUID         `json:"warehouse_id" binding:"required"`
	ActorID             uuid.UUID         `json:"actor_id" binding:"required"`
	MovementType        string            `json:"movement_type" binding:"required"`
	Quantity            decimal.Decimal   `json:"quantity" binding:"required"`
	UnitCost            decimal.Decimal   `json:"unit_cost"`
	Reason              string            `json:"reason" binding:"max=500"`
	Metadata            map[string]string `json:"metadata"`
	RelatedDocumentType string            `json:"related_document_type" binding:"omitempty,oneof=sales_order purchase_order return manual"`
	RelatedDocumentID   string            `json:"related_document_id" binding:"max=64"`
	ReferenceNumber     string            `json:"reference_number" binding:"max=64"`
}

func (r RecordMovementRequest) toInput() inventory.MovementInput {
	return inventory.MovementInput{
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		ActorID:         r.ActorID,
		MovementType:    inventory.MovementType(r.MovementType),
		Quantity:        r.Quantity,
		UnitCost:        r.UnitCost,
		Reason:          r.Reason,
		Metadata:        r.Metadata,
		RelatedDocument: inventory.RelatedDocument{Type: r.RelatedDocumentType, ID: r.RelatedDocumentID},
		ReferenceNumber: r.ReferenceNumber,
	}
}

// ApproveRequest carries the approving actor
type ApproveRequest struct {
	ApproverID uuid.UUID `json:"approver_id" binding:"required"`
}

// RejectRequest carries the rejecting actor and reason
type RejectRequest struct {
	ActorID uuid.UUID `json:"actor_id" binding:"required"`
	Reason  string    `json:"reason" binding:"max=500"`
}

// CancelRequest carries the cancelling actor and the mandatory reason
type CancelRequest struct {
	ActorID uuid.UUID `json:"actor_id" binding:"required"`
	Reason  string    `json:"reason" binding:"required,max=500"`
}

// MovementResponse represents a movement record in API responses
type MovementResponse struct {
	ID                  uuid.UUID         `json:"id"`
	ReferenceNumber     string            `json:"reference_number"`
	ProductID           uuid.UUID         `json:"product_id"`
	WarehouseID         uuid.UUID         `json:"warehouse_id"`
	ActorID             uuid.UUID         `json:"actor_id"`
	MovementType        string            `json:"movement_type"`
	Status              string            `json:"status"`
	QuantityBefore      decimal.Decimal   `json:"quantity_before"`
	QuantityMoved       decimal.Decimal   `json:"quantity_moved"`
	QuantityAfter       decimal.Decimal   `json:"quantity_after"`
	UnitCost            decimal.Decimal   `json:"unit_cost"`
	TotalValue          decimal.Decimal   `json:"total_value"`
	Reason              string            `json:"reason,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	RelatedDocumentType string            `json:"related_document_type,omitempty"`
	RelatedDocumentID   string            `json:"related_document_id,omitempty"`
	FromReserved        bool              `json:"from_reserved"`
	ApprovedBy          *uuid.UUID        `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time        `json:"approved_at,omitempty"`
	AppliedAt           *time.Time        `json:"applied_at,omitempty"`
	RejectedBy          *uuid.UUID        `json:"rejected_by,omitempty"`
	RejectedAt          *time.Time        `json:"rejected_at,omitempty"`
	RejectionReason     string            `json:"rejection_reason,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// MovementListFilter represents filter options for movement queries
type MovementListFilter struct {
	ProductID    *uuid.UUID `form:"-"`
	WarehouseID  *uuid.UUID `form:"-"`
	Status       string     `form:"status" binding:"omitempty,oneof=pending approved rejected applied"`
	MovementType string     `form:"movement_type"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir     string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ConfirmOrderLineRequest registers a sales-order line for allocation
type ConfirmOrderLineRequest struct {
	OrderID            uuid.UUID       `json:"order_id" binding:"required"`
	LineID             uuid.UUID       `json:"line_id" binding:"required"`
	ProductID          uuid.UUID       `json:"product_id" binding:"required"`
	QuantityOrdered    decimal.Decimal `json:"quantity_ordered" binding:"required"`
	RequiresAllocation *bool           `json:"requires_allocation"`
}

// AllocateRequest reserves stock for a line at one warehouse
type AllocateRequest struct {
	WarehouseID uuid.UUID       `json:"warehouse_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	TTLSeconds  int             `json:"ttl_seconds" binding:"omitempty,min=1"`
}

// ConsumeRequest converts reserved stock into a fulfilled shipment
type ConsumeRequest struct {
	ActorID         uuid.UUID       `json:"actor_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ReferenceNumber string          `json:"reference_number" binding:"max=64"`
}

// QuantityRequest carries a single quantity
type QuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

// AllocationResponse represents an order item allocation in API responses
type AllocationResponse struct {
	ID                  uuid.UUID       `json:"id"`
	OrderID             uuid.UUID       `json:"order_id"`
	LineID              uuid.UUID       `json:"line_id"`
	ProductID           uuid.UUID       `json:"product_id"`
	WarehouseID         *uuid.UUID      `json:"warehouse_id,omitempty"`
	QuantityOrdered     decimal.Decimal `json:"quantity_ordered"`
	AllocatedQuantity   decimal.Decimal `json:"allocated_quantity"`
	QuantityFulfilled   decimal.Decimal `json:"quantity_fulfilled"`
	QuantityShipped     decimal.Decimal `json:"quantity_shipped"`
	QuantityBackordered decimal.Decimal `json:"quantity_backordered"`
	RequiresAllocation  bool            `json:"requires_allocation"`
	AllocationExpiresAt *time.Time      `json:"allocation_expires_at,omitempty"`
	Status              string          `json:"status"`
	Version             int             `json:"version"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ConsumeResponse is the result of a consume call
type ConsumeResponse struct {
	Allocation AllocationResponse `json:"allocation"`
	Movement   MovementResponse   `json:"movement"`
}

// SubmitAdjustmentRequest represents a request to adjust one position
type SubmitAdjustmentRequest struct {
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	WarehouseID     uuid.UUID       `json:"warehouse_id" binding:"required"`
	AdjustmentType  string          `json:"adjustment_type" binding:"required,oneof=increase decrease"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	ReasonCode      string          `json:"reason_code" binding:"required"`
	Reason          string          `json:"reason" binding:"max=500"`
	RequestedBy     uuid.UUID       `json:"requested_by" binding:"required"`
	ReferenceNumber string          `json:"reference_number" binding:"max=64"`
}

func (r SubmitAdjustmentRequest) toInput() inventory.AdjustmentInput {
	return inventory.AdjustmentInput{
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		AdjustmentType:  inventory.AdjustmentType(r.AdjustmentType),
		Quantity:        r.Quantity,
		ReasonCode:      inventory.ReasonCode(r.ReasonCode),
		Reason:          r.Reason,
		RequestedBy:     r.RequestedBy,
		ReferenceNumber: r.ReferenceNumber,
	}
}

// AdjustmentResponse represents an adjustment record in API responses
type AdjustmentResponse struct {
	ID               uuid.UUID       `json:"id"`
	ReferenceNumber  string          `json:"reference_number"`
	ProductID        uuid.UUID       `json:"product_id"`
	WarehouseID      uuid.UUID       `json:"warehouse_id"`
	AdjustmentType   string          `json:"adjustment_type"`
	QuantityAdjusted decimal.Decimal `json:"quantity_adjusted"`
	QuantityBefore   decimal.Decimal `json:"quantity_before"`
	QuantityAfter    decimal.Decimal `json:"quantity_after"`
	ReasonCode       string          `json:"reason_code"`
	Reason           string          `json:"reason,omitempty"`
	Status           string          `json:"status"`
	MovementID       uuid.UUID       `json:"movement_id"`
	RequestedBy      uuid.UUID       `json:"requested_by"`
	ApprovedBy       *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	ResolvedBy       *uuid.UUID      `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNote   string          `json:"resolution_note,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AdjustmentListFilter represents filter options for adjustment queries
type AdjustmentListFilter struct {
	ProductID   *uuid.UUID `form:"-"`
	WarehouseID *uuid.UUID `form:"-"`
	Status      string     `form:"status" binding:"omitempty,oneof=pending approved applied rejected cancelled"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// InitiateTransferRequest represents a request to move stock between warehouses
type InitiateTransferRequest struct {
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	FromWarehouseID uuid.UUID       `json:"from_warehouse_id" binding:"required"`
	ToWarehouseID   uuid.UUID       `json:"to_warehouse_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	InitiatedBy     uuid.UUID       `json:"initiated_by" binding:"required"`
	Reason          string          `json:"reason" binding:"max=500"`
	ReferenceNumber string          `json:"reference_number" binding:"max=60"`
}

// ActorRequest carries the acting user
type ActorRequest struct {
	ActorID uuid.UUID `json:"actor_id" binding:"required"`
}

// TransferResponse represents a transfer record in API responses
type TransferResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ReferenceNumber    string          `json:"reference_number"`
	ProductID          uuid.UUID       `json:"product_id"`
	FromWarehouseID    uuid.UUID       `json:"from_warehouse_id"`
	ToWarehouseID      uuid.UUID       `json:"to_warehouse_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	Status             string          `json:"status"`
	Reason             string          `json:"reason,omitempty"`
	InitiatedBy        uuid.UUID       `json:"initiated_by"`
	ApprovedBy         *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	DispatchedBy       *uuid.UUID      `json:"dispatched_by,omitempty"`
	DispatchedAt       *time.Time      `json:"dispatched_at,omitempty"`
	CompletedBy        *uuid.UUID      `json:"completed_by,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CancelledBy        *uuid.UUID      `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason       string          `json:"cancel_reason,omitempty"`
	OutMovementID      *uuid.UUID      `json:"out_movement_id,omitempty"`
	InMovementID       *uuid.UUID      `json:"in_movement_id,omitempty"`
	ReversalMovementID *uuid.UUID      `json:"reversal_movement_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TransferListFilter represents filter options for transfer queries
type TransferListFilter struct {
	ProductID   *uuid.UUID `form:"-"`
	WarehouseID *uuid.UUID `form:"-"`
	Status      string     `form:"status" binding:"omitempty,oneof=pending approved in_transit completed cancelled"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RegisterPurchaseItemRequest registers a purchase-order line for receiving
type RegisterPurchaseItemRequest struct {
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id" binding:"required"`
	LineID          uuid.UUID       `json:"line_id" binding:"required"`
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	WarehouseID     uuid.UUID       `json:"warehouse_id" binding:"required"`
	QuantityOrdered decimal.Decimal `json:"quantity_ordered" binding:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

// ReceivePurchaseItemRequest records goods arriving against a purchase line
type ReceivePurchaseItemRequest struct {
	ActorID          uuid.UUID       `json:"actor_id" binding:"required"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
	QualityNote      string          `json:"quality_note" binding:"max=500"`
}

// ReceiptResponse represents a purchase-order item receipt in API responses
type ReceiptResponse struct {
	ID               uuid.UUID       `json:"id"`
	PurchaseOrderID  uuid.UUID       `json:"purchase_order_id"`
	LineID           uuid.UUID       `json:"line_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	WarehouseID      uuid.UUID       `json:"warehouse_id"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	QuantityOrdered  decimal.Decimal `json:"quantity_ordered"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	QuantityRejected decimal.Decimal `json:"quantity_rejected"`
	QuantityPending  decimal.Decimal `json:"quantity_pending"`
	Status           string          `json:"status"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	LastReceivedAt   *time.Time      `json:"last_received_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ReceiveResponse is the result of a receipt
type ReceiveResponse struct {
	Receipt  ReceiptResponse   `json:"receipt"`
	Movement *MovementResponse `json:"movement,omitempty"`
}

// ToPositionResponse converts a domain InventoryPosition to response DTO
func ToPositionResponse(p *inventory.InventoryPosition) PositionResponse {
	return PositionResponse{
		ID:               p.ID,
		ProductID:        p.ProductID,
		WarehouseID:      p.WarehouseID,
		QuantityOnHand:   p.QuantityOnHand,
		QuantityReserved: p.QuantityReserved,
		Available:        p.Available(),
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ToPositionResponses converts a slice of positions to responses
func ToPositionResponses(positions []inventory.InventoryPosition) []PositionResponse {
	responses := make([]PositionResponse, len(positions))
	for i := range positions {
		responses[i] = ToPositionResponse(&positions[i])
	}
	return responses
}

// ToMovementResponse converts a domain MovementRecord to response DTO
func ToMovementResponse(m *inventory.MovementRecord) MovementResponse {
	return MovementResponse{
		ID:                  m.ID,
		ReferenceNumber:     m.ReferenceNumber,
		ProductID:           m.ProductID,
		WarehouseID:         m.WarehouseID,
		ActorID:             m.ActorID,
		MovementType:        string(m.MovementType),
		Status:              string(m.Status),
		QuantityBefore:      m.QuantityBefore,
		QuantityMoved:       m.QuantityMoved,
		QuantityAfter:       m.QuantityAfter,
		UnitCost:            m.UnitCost,
		TotalValue:          m.TotalValue,
		Reason:              m.Reason,
		Metadata:            m.Metadata,
		RelatedDocumentType: m.RelatedDocument.Type,
		RelatedDocumentID:   m.RelatedDocument.ID,
		FromReserved:        m.FromReserved,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		AppliedAt:           m.AppliedAt,
		RejectedBy:          m.RejectedBy,
		RejectedAt:          m.RejectedAt,
		RejectionReason:     m.RejectionReason,
		CreatedAt:           m.CreatedAt,
	}
}

// ToMovementResponses converts a slice of movements to responses
func ToMovementResponses(records []inventory.MovementRecord) []MovementResponse {
	responses := make([]MovementResponse, len(records))
	for i := range records {
		responses[i] = ToMovementResponse(&records[i])
	}
	return responses
}

// ToAllocationResponse converts a domain OrderItemAllocation to response DTO
func ToAllocationResponse(a *inventory.OrderItemAllocation) AllocationResponse {
	return AllocationResponse{
		ID:                  a.ID,
		OrderID:             a.OrderID,
		LineID:              a.LineID,
		ProductID:           a.ProductID,
		WarehouseID:         a.WarehouseID,
		QuantityOrdered:     a.QuantityOrdered,
		AllocatedQuantity:   a.AllocatedQuantity,
		QuantityFulfilled:   a.QuantityFulfilled,
		QuantityShipped:     a.QuantityShipped,
		QuantityBackordered: a.QuantityBackordered,
		RequiresAllocation:  a.RequiresAllocation,
		AllocationExpiresAt: a.AllocationExpiresAt,
		Status:              string(a.Status),
		Version:             a.Version,
		UpdatedAt:           a.UpdatedAt,
	}
}

// ToAdjustmentResponse converts a domain AdjustmentRecord to response DTO
func ToAdjustmentResponse(a *inventory.AdjustmentRecord) AdjustmentResponse {
	return AdjustmentResponse{
		ID:               a.ID,
		ReferenceNumber:  a.ReferenceNumber,
		ProductID:        a.ProductID,
		WarehouseID:      a.WarehouseID,
		AdjustmentType:   string(a.AdjustmentType),
		QuantityAdjusted: a.QuantityAdjusted,
		QuantityBefore:   a.QuantityBefore,
		QuantityAfter:    a.QuantityAfter,
		ReasonCode:       string(a.ReasonCode),
		Reason:           a.Reason,
		Status:           string(a.Status),
		MovementID:       a.MovementID,
		RequestedBy:      a.RequestedBy,
		ApprovedBy:       a.ApprovedBy,
		ApprovedAt:       a.ApprovedAt,
		ResolvedBy:       a.ResolvedBy,
		ResolvedAt:       a.ResolvedAt,
		ResolutionNote:   a.ResolutionNote,
		CreatedAt:        a.CreatedAt,
	}
}

// ToAdjustmentResponses converts a slice of adjustments to responses
func ToAdjustmentResponses(records []inventory.AdjustmentRecord) []AdjustmentResponse {
	responses := make([]AdjustmentResponse, len(records))
	for i := range records {
		responses[i] = ToAdjustmentResponse(&records[i])
	}
	return responses
}

// ToTransferResponse converts a domain TransferRecord to response DTO
func ToTransferResponse(t *inventory.TransferRecord) TransferResponse {
	return TransferResponse{
		ID:                 t.ID,
		ReferenceNumber:    t.ReferenceNumber,
		ProductID:          t.ProductID,
		FromWarehouseID:    t.FromWarehouseID,
		ToWarehouseID:      t.ToWarehouseID,
		Quantity:           t.Quantity,
		Status:             string(t.Status),
		Reason:             t.Reason,
		InitiatedBy:        t.InitiatedBy,
		ApprovedBy:         t.ApprovedBy,
		ApprovedAt:         t.ApprovedAt,
		DispatchedBy:       t.DispatchedBy,
		DispatchedAt:       t.DispatchedAt,
		CompletedBy:        t.CompletedBy,
		CompletedAt:        t.CompletedAt,
		CancelledBy:        t.CancelledBy,
		CancelledAt:        t.CancelledAt,
		CancelReason:       t.CancelReason,
		OutMovementID:      t.OutMovementID,
		InMovementID:       t.InMovementID,
		ReversalMovementID: t.ReversalMovementID,
		CreatedAt:          t.CreatedAt,
	}
}

// ToTransferResponses converts a slice of transfers to responses
func ToTransferResponses(records []inventory.TransferRecord) []TransferResponse {
	responses := make([]TransferResponse, len(records))
	for i := range records {
		responses[i] = ToTransferResponse(&records[i])
	}
	return responses
}

// ToReceiptResponse converts a domain PurchaseOrderItemReceipt to response DTO
func ToReceiptResponse(r *inventory.PurchaseOrderItemReceipt) ReceiptResponse {
	return ReceiptResponse{
		ID:               r.ID,
		PurchaseOrderID:  r.PurchaseOrderID,
		LineID:           r.LineID,
		ProductID:        r.ProductID,
		WarehouseID:      r.WarehouseID,
		UnitCost:         r.UnitCost,
		QuantityOrdered:  r.QuantityOrdered,
		QuantityReceived: r.QuantityReceived,
		QuantityRejected: r.QuantityRejected,
		QuantityPending:  r.QuantityPending(),
		Status:           string(r.Status()),
		CancelReason:     r.CancelReason,
		LastReceivedAt:   r.LastReceivedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// ToReceiptResponses converts a slice of receipts to responses
func ToReceiptResponses(items []inventory.PurchaseOrderItemReceipt) []ReceiptResponse {
	responses := make([]ReceiptResponse, len(items))
	for i := range items {
		responses[i] = ToReceiptResponse(&items[i])
	}
	return responses
}

func pageOrDefault(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
