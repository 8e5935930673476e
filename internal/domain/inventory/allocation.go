package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStatus tracks the reservation held by a sales-order line
type AllocationStatus string

const (
	AllocationStatusUnallocated AllocationStatus = "unallocated"
	AllocationStatusAllocated   AllocationStatus = "allocated"
	AllocationStatusConsumed    AllocationStatus = "consumed"
	AllocationStatusReleased    AllocationStatus = "released"
	AllocationStatusExpired     AllocationStatus = "expired"
)

// IsValid checks if the status is a valid AllocationStatus
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusUnallocated, AllocationStatusAllocated, AllocationStatusConsumed,
		AllocationStatusReleased, AllocationStatusExpired:
		return true
	}
	return false
}

// OrderItemAllocation is the allocation state of one sales-order line.
//
// Invariant: AllocatedQuantity <= QuantityOrdered - QuantityFulfilled.
type OrderItemAllocation struct {
	shared.BaseAggregateRoot
	OrderID             uuid.UUID
	LineID              uuid.UUID
	ProductID           uuid.UUID
	WarehouseID         *uuid.UUID
	QuantityOrdered     decimal.Decimal
	AllocatedQuantity   decimal.Decimal
	QuantityFulfilled   decimal.Decimal
	QuantityShipped     decimal.Decimal
	QuantityBackordered decimal.Decimal
	RequiresAllocation  bool
	AllocationExpiresAt *time.Time
	Status              AllocationStatus
	LastAllocatedAt     *time.Time
	ReleasedAt          *time.Time
}

// OrderLineInput confirms a sales-order line for allocation
type OrderLineInput struct {
	OrderID            uuid.UUID
	LineID             uuid.UUID
	ProductID          uuid.UUID
	QuantityOrdered    decimal.Decimal
	RequiresAllocation bool
}

// NewOrderItemAllocation creates the allocation record for a confirmed line
func NewOrderItemAllocation(in OrderLineInput, at time.Time) (*OrderItemAllocation, error) {
	if in.OrderID == uuid.Nil || in.LineID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrValidation, "order id and line id are required")
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrValidation, "product id is required")
	}
	if err := ValidateQuantity(in.QuantityOrdered, "quantity ordered"); err != nil {
		return nil, err
	}
	return &OrderItemAllocation{
		BaseAggregateRoot:   shared.NewBaseAggregateRootAt(at),
		OrderID:             in.OrderID,
		LineID:              in.LineID,
		ProductID:           in.ProductID,
		QuantityOrdered:     in.QuantityOrdered,
		AllocatedQuantity:   decimal.Zero,
		QuantityFulfilled:   decimal.Zero,
		QuantityShipped:     decimal.Zero,
		QuantityBackordered: decimal.Zero,
		RequiresAllocation:  in.RequiresAllocation,
		Status:              AllocationStatusUnallocated,
	}, nil
}

// Key returns the position the line is allocated against, if any
func (a *OrderItemAllocation) Key() (PositionKey, bool) {
	if a.WarehouseID == nil {
		return PositionKey{}, false
	}
	return PositionKey{ProductID: a.ProductID, WarehouseID: *a.WarehouseID}, true
}

// Outstanding returns the quantity still to be fulfilled
func (a *OrderItemAllocation) Outstanding() decimal.Decimal {
	return a.QuantityOrdered.Sub(a.QuantityFulfilled)
}

// Unallocated returns outstanding demand not covered by the reservation
func (a *OrderItemAllocation) Unallocated() decimal.Decimal {
	return a.Outstanding().Sub(a.AllocatedQuantity)
}

// IsLive reports whether the line currently holds a reservation
func (a *OrderItemAllocation) IsLive() bool {
	return a.Status == AllocationStatusAllocated && a.AllocatedQuantity.IsPositive()
}

// IsExpired reports whether the reservation lapsed at or before now
func (a *OrderItemAllocation) IsExpired(now time.Time) bool {
	return a.AllocationExpiresAt != nil && !now.Before(*a.AllocationExpiresAt)
}

// CheckAllocate validates an allocation request against the line
func (a *OrderItemAllocation) CheckAllocate(warehouseID uuid.UUID, quantity decimal.Decimal, ttl time.Duration) error {
	if warehouseID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "warehouse id is required")
	}
	if err := ValidateQuantity(quantity, "quantity"); err != nil {
		return err
	}
	if ttl <= 0 {
		return shared.Errorf(shared.ErrValidation, "allocation ttl must be positive")
	}
	if a.IsLive() && a.WarehouseID != nil && *a.WarehouseID != warehouseID {
		return shared.Errorf(shared.ErrValidation,
			"line is already allocated at warehouse %s; release it first", a.WarehouseID.String())
	}
	if quantity.GreaterThan(a.Unallocated()) {
		return shared.Errorf(shared.ErrValidation,
			"allocation exceeds outstanding demand: requested %s, unallocated %s",
			quantity.String(), a.Unallocated().String())
	}
	return nil
}

// Allocate adds quantity to the reservation and refreshes its expiry
func (a *OrderItemAllocation) Allocate(warehouseID uuid.UUID, quantity decimal.Decimal, ttl time.Duration, now time.Time) error {
	if err := a.CheckAllocate(warehouseID, quantity, ttl); err != nil {
		return err
	}
	expires := now.Add(ttl)
	a.WarehouseID = &warehouseID
	a.AllocatedQuantity = a.AllocatedQuantity.Add(quantity)
	a.AllocationExpiresAt = &expires
	a.LastAllocatedAt = &now
	a.Status = AllocationStatusAllocated
	a.ReleasedAt = nil
	a.Touch(now)
	a.AddDomainEvent(NewAllocationEvent(EventTypeAllocationCreated, a, quantity))
	return nil
}

// ReleaseOutcome says what Release did
type ReleaseOutcome int

const (
	// ReleaseNoop means there was nothing to release
	ReleaseNoop ReleaseOutcome = iota
	// ReleaseApplied means a live reservation was returned to available
	ReleaseApplied
)

// Release zeroes the reservation and returns the quantity to give back to
// the position. Releasing an already released or expired line is a no-op;
// a fully consumed line is rejected.
func (a *OrderItemAllocation) Release(expired bool, now time.Time) (decimal.Decimal, ReleaseOutcome, error) {
	switch a.Status {
	case AllocationStatusUnallocated, AllocationStatusReleased, AllocationStatusExpired:
		return decimal.Zero, ReleaseNoop, nil
	case AllocationStatusConsumed:
		return decimal.Zero, ReleaseNoop, shared.Errorf(shared.ErrInvalidTransition,
			"allocation for line %s was consumed and holds no reservation", a.LineID.String())
	}
	released := a.AllocatedQuantity
	a.AllocatedQuantity = decimal.Zero
	a.AllocationExpiresAt = nil
	a.ReleasedAt = &now
	eventType := EventTypeAllocationReleased
	a.Status = AllocationStatusReleased
	if expired {
		a.Status = AllocationStatusExpired
		eventType = EventTypeAllocationExpired
	}
	a.Touch(now)
	a.AddDomainEvent(NewAllocationEvent(eventType, a, released))
	return released, ReleaseApplied, nil
}

// CheckConsume validates conversion of quantity from reservation to fulfillment
func (a *OrderItemAllocation) CheckConsume(quantity decimal.Decimal, now time.Time) error {
	if err := ValidateQuantity(quantity, "quantity"); err != nil {
		return err
	}
	if quantity.GreaterThan(a.AllocatedQuantity) {
		return shared.Errorf(shared.ErrValidation,
			"consume exceeds allocated quantity: requested %s, allocated %s",
			quantity.String(), a.AllocatedQuantity.String())
	}
	if a.Status != AllocationStatusAllocated {
		return shared.Errorf(shared.ErrInvalidTransition, "allocation is %s", a.Status)
	}
	if a.IsExpired(now) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"allocation expired at %s", a.AllocationExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Consume moves quantity from the reservation into fulfilled
func (a *OrderItemAllocation) Consume(quantity decimal.Decimal, now time.Time) error {
	if err := a.CheckConsume(quantity, now); err != nil {
		return err
	}
	a.AllocatedQuantity = a.AllocatedQuantity.Sub(quantity)
	a.QuantityFulfilled = a.QuantityFulfilled.Add(quantity)
	if a.AllocatedQuantity.IsZero() {
		a.Status = AllocationStatusConsumed
		a.AllocationExpiresAt = nil
	}
	a.Touch(now)
	a.AddDomainEvent(NewAllocationEvent(EventTypeAllocationConsumed, a, quantity))
	return nil
}

// MarkBackordered records quantity that could not be allocated
func (a *OrderItemAllocation) MarkBackordered(quantity decimal.Decimal, now time.Time) error {
	if err := ValidateNonNegativeQuantity(quantity, "quantity backordered"); err != nil {
		return err
	}
	if quantity.GreaterThan(a.Unallocated()) {
		return shared.Errorf(shared.ErrValidation,
			"backorder exceeds unallocated demand: requested %s, unallocated %s",
			quantity.String(), a.Unallocated().String())
	}
	a.QuantityBackordered = quantity
	a.Touch(now)
	a.AddDomainEvent(NewAllocationEvent(EventTypeAllocationBackordered, a, quantity))
	return nil
}

// RecordShipment records quantity shipped out of what was fulfilled
func (a *OrderItemAllocation) RecordShipment(quantity decimal.Decimal, now time.Time) error {
	if err := ValidateQuantity(quantity, "quantity"); err != nil {
		return err
	}
	if a.QuantityShipped.Add(quantity).GreaterThan(a.QuantityFulfilled) {
		return shared.Errorf(shared.ErrValidation,
			"shipment exceeds fulfilled quantity: shipped %s, fulfilled %s, requested %s",
			a.QuantityShipped.String(), a.QuantityFulfilled.String(), quantity.String())
	}
	a.QuantityShipped = a.QuantityShipped.Add(quantity)
	a.Touch(now)
	return nil
}
