package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptStatus is the receiving state of a purchase-order line. It is
// always derived from the quantity totals and the explicit flags.
type ReceiptStatus string

const (
	ReceiptStatusPending           ReceiptStatus = "pending"
	ReceiptStatusPartiallyReceived ReceiptStatus = "partially_received"
	ReceiptStatusFullyReceived     ReceiptStatus = "fully_received"
	ReceiptStatusBackordered       ReceiptStatus = "backordered"
	ReceiptStatusCancelled         ReceiptStatus = "cancelled"
)

// IsValid checks if the status is a valid ReceiptStatus
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptStatusPending, ReceiptStatusPartiallyReceived, ReceiptStatusFullyReceived,
		ReceiptStatusBackordered, ReceiptStatusCancelled:
		return true
	}
	return false
}

// PurchaseOrderItemReceipt tracks receiving against one purchase-order line.
//
// Invariant: QuantityReceived + QuantityRejected <= QuantityOrdered.
type PurchaseOrderItemReceipt struct {
	shared.BaseAggregateRoot
	PurchaseOrderID  uuid.UUID
	LineID           uuid.UUID
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	UnitCost         decimal.Decimal
	QuantityOrdered  decimal.Decimal
	QuantityReceived decimal.Decimal
	QuantityRejected decimal.Decimal
	Backordered      bool
	Cancelled        bool
	CancelReason     string
	LastReceivedAt   *time.Time
}

// PurchaseItemInput registers a purchase-order line for receiving
type PurchaseItemInput struct {
	PurchaseOrderID uuid.UUID
	LineID          uuid.UUID
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	QuantityOrdered decimal.Decimal
	UnitCost        decimal.Decimal
}

// NewPurchaseOrderItemReceipt creates a pending receipt line
func NewPurchaseOrderItemReceipt(in PurchaseItemInput, at time.Time) (*PurchaseOrderItemReceipt, error) {
	if in.PurchaseOrderID == uuid.Nil || in.LineID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrValidation, "purchase order id and line id are required")
	}
	if _, err := NewPositionKey(in.ProductID, in.WarehouseID); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(in.QuantityOrdered, "quantity ordered"); err != nil {
		return nil, err
	}
	if err := ValidateUnitCost(in.UnitCost); err != nil {
		return nil, err
	}
	return &PurchaseOrderItemReceipt{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		PurchaseOrderID:   in.PurchaseOrderID,
		LineID:            in.LineID,
		ProductID:         in.ProductID,
		WarehouseID:       in.WarehouseID,
		UnitCost:          in.UnitCost,
		QuantityOrdered:   in.QuantityOrdered,
		QuantityReceived:  decimal.Zero,
		QuantityRejected:  decimal.Zero,
	}, nil
}

// Key returns the receiving position
func (r *PurchaseOrderItemReceipt) Key() PositionKey {
	return PositionKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID}
}

// QuantityPending returns ordered minus received minus rejected
func (r *PurchaseOrderItemReceipt) QuantityPending() decimal.Decimal {
	return r.QuantityOrdered.Sub(r.QuantityReceived).Sub(r.QuantityRejected)
}

// Status computes the receiving status from the totals and flags
func (r *PurchaseOrderItemReceipt) Status() ReceiptStatus {
	switch {
	case r.Cancelled:
		return ReceiptStatusCancelled
	case r.QuantityPending().IsZero():
		return ReceiptStatusFullyReceived
	case r.Backordered:
		return ReceiptStatusBackordered
	case r.QuantityReceived.IsPositive() || r.QuantityRejected.IsPositive():
		return ReceiptStatusPartiallyReceived
	}
	return ReceiptStatusPending
}

// CheckReceive validates an incoming receipt
func (r *PurchaseOrderItemReceipt) CheckReceive(accepted, rejected decimal.Decimal) error {
	if err := ValidateNonNegativeQuantity(accepted, "accepted quantity"); err != nil {
		return err
	}
	if err := ValidateNonNegativeQuantity(rejected, "rejected quantity"); err != nil {
		return err
	}
	if accepted.IsZero() && rejected.IsZero() {
		return shared.Errorf(shared.ErrValidation, "accepted or rejected quantity must be positive")
	}
	if r.Cancelled {
		return shared.Errorf(shared.ErrInvalidTransition, "purchase item %s is cancelled", r.LineID.String())
	}
	incoming := accepted.Add(rejected)
	if incoming.GreaterThan(r.QuantityPending()) {
		return shared.Errorf(shared.ErrOverReceipt,
			"over receipt: ordered %s, received %s, rejected %s, incoming %s",
			r.QuantityOrdered.String(), r.QuantityReceived.String(), r.QuantityRejected.String(), incoming.String())
	}
	return nil
}

// Receive adds accepted and rejected quantities to the totals
func (r *PurchaseOrderItemReceipt) Receive(accepted, rejected decimal.Decimal, at time.Time) error {
	if err := r.CheckReceive(accepted, rejected); err != nil {
		return err
	}
	r.QuantityReceived = r.QuantityReceived.Add(accepted)
	r.QuantityRejected = r.QuantityRejected.Add(rejected)
	r.LastReceivedAt = &at
	r.Touch(at)
	r.AddDomainEvent(NewReceiptRecordedEvent(r, accepted, rejected))
	return nil
}

// MarkBackordered flags the outstanding quantity as backordered by the supplier
func (r *PurchaseOrderItemReceipt) MarkBackordered(at time.Time) error {
	if r.Cancelled {
		return shared.Errorf(shared.ErrInvalidTransition, "purchase item %s is cancelled", r.LineID.String())
	}
	if r.QuantityPending().IsZero() {
		return shared.Errorf(shared.ErrInvalidTransition, "purchase item %s has nothing pending", r.LineID.String())
	}
	r.Backordered = true
	r.Touch(at)
	return nil
}

// Cancel stops further receiving on the line
func (r *PurchaseOrderItemReceipt) Cancel(reason string, at time.Time) error {
	if reason == "" {
		return shared.Errorf(shared.ErrValidation, "cancellation reason is required")
	}
	if r.Cancelled {
		return shared.Errorf(shared.ErrInvalidTransition, "purchase item %s is already cancelled", r.LineID.String())
	}
	if r.QuantityPending().IsZero() {
		return shared.Errorf(shared.ErrInvalidTransition, "purchase item %s is fully received", r.LineID.String())
	}
	r.Cancelled = true
	r.CancelReason = reason
	r.Touch(at)
	return nil
}
