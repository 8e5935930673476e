package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionKey identifies an inventory position.
type PositionKey struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
}

// NewPositionKey creates a validated position key
func NewPositionKey(productID, warehouseID uuid.UUID) (PositionKey, error) {
	k := PositionKey{ProductID: productID, WarehouseID: warehouseID}
	if err := k.Validate(); err != nil {
		return PositionKey{}, err
	}
	return k, nil
}

// Validate checks that both halves of the key are set
func (k PositionKey) Validate() error {
	if k.ProductID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "product id is required")
	}
	if k.WarehouseID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "warehouse id is required")
	}
	return nil
}

// String returns the key in "product:warehouse" form, used as a lock name.
func (k PositionKey) String() string {
	return k.ProductID.String() + ":" + k.WarehouseID.String()
}

// PositionDelta is a signed change to a position's counters.
type PositionDelta struct {
	OnHand   decimal.Decimal
	Reserved decimal.Decimal
}

// IsZero reports whether the delta changes nothing
func (d PositionDelta) IsZero() bool {
	return d.OnHand.IsZero() && d.Reserved.IsZero()
}

// InventoryPosition holds the authoritative on-hand and reserved counts for one
// product in one warehouse. Available is derived, never stored.
//
// Invariants: 0 <= QuantityReserved <= QuantityOnHand.
type InventoryPosition struct {
	shared.BaseAggregateRoot
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	QuantityOnHand   decimal.Decimal
	QuantityReserved decimal.Decimal
}

// NewInventoryPosition creates a zeroed position for key
func NewInventoryPosition(key PositionKey, at time.Time) (*InventoryPosition, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &InventoryPosition{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		ProductID:         key.ProductID,
		WarehouseID:       key.WarehouseID,
		QuantityOnHand:    decimal.Zero,
		QuantityReserved:  decimal.Zero,
	}, nil
}

// Key returns the position key
func (p *InventoryPosition) Key() PositionKey {
	return PositionKey{ProductID: p.ProductID, WarehouseID: p.WarehouseID}
}

// Available returns on hand minus reserved
func (p *InventoryPosition) Available() decimal.Decimal {
	return p.QuantityOnHand.Sub(p.QuantityReserved)
}

// CheckReserve verifies that quantity can be reserved from available stock.
func (p *InventoryPosition) CheckReserve(quantity decimal.Decimal) error {
	if p.Available().LessThan(quantity) {
		return shared.Errorf(shared.ErrInsufficientAvailable,
			"insufficient available stock: requested %s, available %s",
			quantity.String(), p.Available().String())
	}
	return nil
}

// CheckDecrease verifies that quantity can leave the position. Stock drawn
// from a reservation is bounded by on hand; any other decrease is bounded by
// available so that reserved never exceeds on hand.
func (p *InventoryPosition) CheckDecrease(quantity decimal.Decimal, fromReserved bool) error {
	if fromReserved {
		if p.QuantityReserved.LessThan(quantity) {
			return shared.Errorf(shared.ErrInsufficientStock,
				"insufficient reserved stock: requested %s, reserved %s",
				quantity.String(), p.QuantityReserved.String())
		}
		return nil
	}
	if p.Available().LessThan(quantity) {
		return shared.Errorf(shared.ErrInsufficientStock,
			"insufficient stock: requested %s, available %s",
			quantity.String(), p.Available().String())
	}
	return nil
}

// CanApply validates that applying delta keeps the invariants.
func (p *InventoryPosition) CanApply(delta PositionDelta) error {
	onHand := p.QuantityOnHand.Add(delta.OnHand)
	reserved := p.QuantityReserved.Add(delta.Reserved)
	if onHand.IsNegative() {
		return shared.Errorf(shared.ErrInsufficientStock,
			"insufficient stock: on hand %s, change %s", p.QuantityOnHand.String(), delta.OnHand.String())
	}
	if reserved.IsNegative() {
		return shared.Errorf(shared.ErrValidation,
			"reserved quantity cannot go below zero: reserved %s, change %s", p.QuantityReserved.String(), delta.Reserved.String())
	}
	if reserved.GreaterThan(onHand) {
		return shared.Errorf(shared.ErrInsufficientAvailable,
			"insufficient available stock: requested %s, available %s", delta.Reserved.Sub(delta.OnHand).String(), p.Available().String())
	}
	return nil
}

// Apply mutates the counters by delta and bumps the version.
func (p *InventoryPosition) Apply(delta PositionDelta, at time.Time) error {
	if err := p.CanApply(delta); err != nil {
		return err
	}
	p.QuantityOnHand = p.QuantityOnHand.Add(delta.OnHand)
	p.QuantityReserved = p.QuantityReserved.Add(delta.Reserved)
	p.Touch(at)
	p.IncrementVersion()
	return nil
}

// ValidateQuantity checks that q is a positive whole number.
func ValidateQuantity(q decimal.Decimal, field string) error {
	if !q.IsPositive() {
		return shared.Errorf(shared.ErrValidation, "%s must be positive, got %s", field, q.String())
	}
	if !q.IsInteger() {
		return shared.Errorf(shared.ErrValidation, "%s must be a whole number, got %s", field, q.String())
	}
	return nil
}

// MaxCostPlaces is the scale of unit_cost and total_value columns
const MaxCostPlaces = 4

// ValidateUnitCost checks that c is >= 0 and fits MaxCostPlaces decimals, so
// the stored total_value stays equal to quantity x unit_cost.
func ValidateUnitCost(c decimal.Decimal) error {
	if c.IsNegative() {
		return shared.Errorf(shared.ErrValidation, "unit cost cannot be negative")
	}
	if !c.Equal(c.Truncate(MaxCostPlaces)) {
		return shared.Errorf(shared.ErrValidation, "unit cost %s has more than %d decimal places", c.String(), MaxCostPlaces)
	}
	return nil
}

// ValidateNonNegativeQuantity checks that q is a whole number >= 0.
func ValidateNonNegativeQuantity(q decimal.Decimal, field string) error {
	if q.IsNegative() {
		return shared.Errorf(shared.ErrValidation, "%s cannot be negative, got %s", field, q.String())
	}
	if !q.IsInteger() {
		return shared.Errorf(shared.ErrValidation, "%s must be a whole number, got %s", field, q.String())
	}
	return nil
}
