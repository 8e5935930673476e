package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType is the closed set of ledger movement kinds
type MovementType string

const (
	MovementTypeAdjustmentIncrease MovementType = "adjustment_increase"
	MovementTypeAdjustmentDecrease MovementType = "adjustment_decrease"
	MovementTypeTransferIn         MovementType = "transfer_in"
	MovementTypeTransferOut        MovementType = "transfer_out"
	MovementTypePurchaseReceive    MovementType = "purchase_receive"
	MovementTypeSaleFulfill        MovementType = "sale_fulfill"
	MovementTypeReturnCustomer     MovementType = "return_customer"
	MovementTypeReturnSupplier     MovementType = "return_supplier"
	MovementTypeDamageWriteOff     MovementType = "damage_write_off"
	MovementTypeExpiryWriteOff     MovementType = "expiry_write_off"
)

// AllMovementTypes lists every movement type
var AllMovementTypes = []MovementType{
	MovementTypeAdjustmentIncrease,
	MovementTypeAdjustmentDecrease,
	MovementTypeTransferIn,
	MovementTypeTransferOut,
	MovementTypePurchaseReceive,
	MovementTypeSaleFulfill,
	MovementTypeReturnCustomer,
	MovementTypeReturnSupplier,
	MovementTypeDamageWriteOff,
	MovementTypeExpiryWriteOff,
}

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	for _, v := range AllMovementTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsIncrease returns true if the movement adds stock to the position
func (t MovementType) IsIncrease() bool {
	switch t {
	case MovementTypeAdjustmentIncrease,
		MovementTypeTransferIn,
		MovementTypePurchaseReceive,
		MovementTypeReturnCustomer:
		return true
	}
	return false
}

// Signed applies the movement's direction to a positive magnitude
func (t MovementType) Signed(magnitude decimal.Decimal) decimal.Decimal {
	if t.IsIncrease() {
		return magnitude.Abs()
	}
	return magnitude.Abs().Neg()
}

// RequiresApproval reports whether movements of this type are created pending
// and only touch the position once explicitly approved.
func (t MovementType) RequiresApproval() bool {
	switch t {
	case MovementTypeAdjustmentIncrease,
		MovementTypeAdjustmentDecrease,
		MovementTypeTransferIn,
		MovementTypeTransferOut:
		return true
	}
	return false
}

// ReferencePrefix returns the prefix used for generated reference numbers
func (t MovementType) ReferencePrefix() string {
	switch t {
	case MovementTypeAdjustmentIncrease:
		return "MV-ADJI"
	case MovementTypeAdjustmentDecrease:
		return "MV-ADJD"
	case MovementTypeTransferIn:
		return "MV-TRI"
	case MovementTypeTransferOut:
		return "MV-TRO"
	case MovementTypePurchaseReceive:
		return "MV-RCV"
	case MovementTypeSaleFulfill:
		return "MV-FUL"
	case MovementTypeReturnCustomer:
		return "MV-RTC"
	case MovementTypeReturnSupplier:
		return "MV-RTS"
	case MovementTypeDamageWriteOff:
		return "MV-DMG"
	case MovementTypeExpiryWriteOff:
		return "MV-EXP"
	}
	return "MV"
}

// MovementStatus represents the lifecycle state of a movement record
type MovementStatus string

const (
	MovementStatusPending  MovementStatus = "pending"
	MovementStatusApproved MovementStatus = "approved"
	MovementStatusRejected MovementStatus = "rejected"
	MovementStatusApplied  MovementStatus = "applied"
)

// IsValid checks if the status is a valid MovementStatus
func (s MovementStatus) IsValid() bool {
	switch s {
	case MovementStatusPending, MovementStatusApproved, MovementStatusRejected, MovementStatusApplied:
		return true
	}
	return false
}

// String returns the string representation of MovementStatus
func (s MovementStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// Pending records that need no approval go straight to applied.
func (s MovementStatus) CanTransitionTo(target MovementStatus) bool {
	switch s {
	case MovementStatusPending:
		return target == MovementStatusApproved || target == MovementStatusRejected || target == MovementStatusApplied
	case MovementStatusApproved:
		return target == MovementStatusApplied
	case MovementStatusRejected, MovementStatusApplied:
		return false
	}
	return false
}

// Related document types
const (
	DocumentTypeSalesOrder    = "sales_order"
	DocumentTypePurchaseOrder = "purchase_order"
	DocumentTypeAdjustment    = "adjustment"
	DocumentTypeTransfer      = "transfer"
	DocumentTypeReturn        = "return"
	DocumentTypeManual        = "manual"
)

// RelatedDocument points at the upstream document a movement stems from
type RelatedDocument struct {
	Type string
	ID   string
}

// IsEmpty reports whether no document is referenced
func (d RelatedDocument) IsEmpty() bool {
	return d.Type == "" && d.ID == ""
}

// MovementInput is the request to record a movement
type MovementInput struct {
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	ActorID         uuid.UUID
	MovementType    MovementType
	Quantity        decimal.Decimal // magnitude, direction comes from MovementType
	UnitCost        decimal.Decimal
	Reason          string
	Metadata        map[string]string
	RelatedDocument RelatedDocument
	ReferenceNumber string

	// PreApproved applies a movement of an approval-requiring type at once,
	// on behalf of an upstream document that has already been approved.
	PreApproved bool
	// FromReserved draws the quantity out of the position's reservation.
	// Only sale_fulfill movements may set it.
	FromReserved bool
}

// Validate checks input constraints
func (in MovementInput) Validate() error {
	if _, err := NewPositionKey(in.ProductID, in.WarehouseID); err != nil {
		return err
	}
	if in.ActorID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "actor id is required")
	}
	if !in.MovementType.IsValid() {
		return shared.Errorf(shared.ErrValidation, "unknown movement type %q", string(in.MovementType))
	}
	if err := ValidateQuantity(in.Quantity, "quantity"); err != nil {
		return err
	}
	if err := ValidateUnitCost(in.UnitCost); err != nil {
		return err
	}
	if in.FromReserved && in.MovementType != MovementTypeSaleFulfill {
		return shared.Errorf(shared.ErrValidation, "only sale_fulfill movements can draw from reserved stock")
	}
	if len(in.ReferenceNumber) > 64 {
		return shared.Errorf(shared.ErrValidation, "reference number exceeds 64 characters")
	}
	return nil
}

// MovementRecord is an append-only ledger entry. Once applied it is never
// altered; corrections are recorded as new movements.
type MovementRecord struct {
	shared.BaseAggregateRoot
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	ActorID         uuid.UUID
	ReferenceNumber string
	MovementType    MovementType
	QuantityBefore  decimal.Decimal
	QuantityMoved   decimal.Decimal // signed
	QuantityAfter   decimal.Decimal
	UnitCost        decimal.Decimal
	TotalValue      decimal.Decimal
	Reason          string
	Metadata        map[string]string
	RelatedDocument RelatedDocument
	Status          MovementStatus
	FromReserved    bool
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	AppliedAt       *time.Time
	RejectedBy      *uuid.UUID
	RejectedAt      *time.Time
	RejectionReason string
}

// NewMovementRecord creates a pending movement with a before/after snapshot
// projected from the position's current on-hand quantity.
func NewMovementRecord(in MovementInput, position *InventoryPosition, at time.Time) (*MovementRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if position == nil || position.Key() != (PositionKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}) {
		return nil, shared.Errorf(shared.ErrValidation, "movement does not match position")
	}
	ref := in.ReferenceNumber
	if ref == "" {
		ref = GenerateReference(in.MovementType.ReferencePrefix(), at)
	}
	metadata := make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		metadata[k] = v
	}

	moved := in.MovementType.Signed(in.Quantity)
	m := &MovementRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		ProductID:         in.ProductID,
		WarehouseID:       in.WarehouseID,
		ActorID:           in.ActorID,
		ReferenceNumber:   ref,
		MovementType:      in.MovementType,
		QuantityMoved:     moved,
		UnitCost:          in.UnitCost,
		TotalValue:        moved.Abs().Mul(in.UnitCost),
		Reason:            in.Reason,
		Metadata:          metadata,
		RelatedDocument:   in.RelatedDocument,
		Status:            MovementStatusPending,
		FromReserved:      in.FromReserved,
	}
	m.stamp(position)
	m.AddDomainEvent(NewMovementRecordedEvent(m))
	return m, nil
}

// Key returns the position key the movement targets
func (m *MovementRecord) Key() PositionKey {
	return PositionKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID}
}

// Quantity returns the unsigned quantity moved
func (m *MovementRecord) Quantity() decimal.Decimal {
	return m.QuantityMoved.Abs()
}

// Delta returns the change the movement makes to its position
func (m *MovementRecord) Delta() PositionDelta {
	d := PositionDelta{OnHand: m.QuantityMoved, Reserved: decimal.Zero}
	if m.FromReserved {
		d.Reserved = m.QuantityMoved.Abs().Neg()
	}
	return d
}

func (m *MovementRecord) stamp(position *InventoryPosition) {
	m.QuantityBefore = position.QuantityOnHand
	m.QuantityAfter = position.QuantityOnHand.Add(m.QuantityMoved)
}

// NeedsApproval reports whether the record has to wait for an approver.
func (m *MovementRecord) NeedsApproval(preApproved bool) bool {
	return m.MovementType.RequiresApproval() && !preApproved
}

// Approve records the approver. The position is not touched until Apply.
func (m *MovementRecord) Approve(approverID uuid.UUID, at time.Time) error {
	if approverID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "approver id is required")
	}
	if !m.Status.CanTransitionTo(MovementStatusApproved) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"cannot approve movement %s in status %s", m.ReferenceNumber, m.Status)
	}
	m.Status = MovementStatusApproved
	m.ApprovedBy = &approverID
	m.ApprovedAt = &at
	m.Touch(at)
	return nil
}

// Apply re-stamps the snapshot against the live position, mutates the
// position and marks the record applied. On error neither is changed.
func (m *MovementRecord) Apply(position *InventoryPosition, at time.Time) error {
	if !m.Status.CanTransitionTo(MovementStatusApplied) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"cannot apply movement %s in status %s", m.ReferenceNumber, m.Status)
	}
	if position.Key() != m.Key() {
		return shared.Errorf(shared.ErrValidation, "movement does not match position")
	}
	if !m.MovementType.IsIncrease() {
		if err := position.CheckDecrease(m.Quantity(), m.FromReserved); err != nil {
			return err
		}
	}
	if err := position.Apply(m.Delta(), at); err != nil {
		return err
	}
	m.QuantityBefore = position.QuantityOnHand.Sub(m.QuantityMoved)
	m.QuantityAfter = position.QuantityOnHand
	m.Status = MovementStatusApplied
	m.AppliedAt = &at
	m.Touch(at)
	m.AddDomainEvent(NewMovementAppliedEvent(m))
	return nil
}

// Reject marks a movement that was never applied as rejected
func (m *MovementRecord) Reject(by uuid.UUID, reason string, at time.Time) error {
	if !m.Status.CanTransitionTo(MovementStatusRejected) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"cannot reject movement %s in status %s", m.ReferenceNumber, m.Status)
	}
	m.Status = MovementStatusRejected
	if by != uuid.Nil {
		m.RejectedBy = &by
	}
	m.RejectedAt = &at
	m.RejectionReason = reason
	m.Touch(at)
	m.AddDomainEvent(NewMovementRejectedEvent(m))
	return nil
}

// IsApplied reports whether the movement has changed its position
func (m *MovementRecord) IsApplied() bool {
	return m.Status == MovementStatusApplied
}
