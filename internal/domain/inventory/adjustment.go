package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentType is the direction of a manual adjustment
type AdjustmentType string

const (
	AdjustmentTypeIncrease AdjustmentType = "increase"
	AdjustmentTypeDecrease AdjustmentType = "decrease"
)

// IsValid returns true if the adjustment type is valid
func (t AdjustmentType) IsValid() bool {
	return t == AdjustmentTypeIncrease || t == AdjustmentTypeDecrease
}

// MovementType maps the adjustment direction to its ledger movement type
func (t AdjustmentType) MovementType() MovementType {
	if t == AdjustmentTypeIncrease {
		return MovementTypeAdjustmentIncrease
	}
	return MovementTypeAdjustmentDecrease
}

// ReasonCode classifies why stock was adjusted
type ReasonCode string

const (
	ReasonCodeCountCorrection ReasonCode = "count_correction"
	ReasonCodeDamage          ReasonCode = "damage"
	ReasonCodeExpiry          ReasonCode = "expiry"
	ReasonCodeTheft           ReasonCode = "theft"
	ReasonCodeFound           ReasonCode = "found"
	ReasonCodeOther           ReasonCode = "other"
)

// IsValid returns true if the reason code is known
func (c ReasonCode) IsValid() bool {
	switch c {
	case ReasonCodeCountCorrection, ReasonCodeDamage, ReasonCodeExpiry,
		ReasonCodeTheft, ReasonCodeFound, ReasonCodeOther:
		return true
	}
	return false
}

// AdjustmentStatus represents the workflow state of an adjustment
type AdjustmentStatus string

const (
	AdjustmentStatusPending   AdjustmentStatus = "pending"
	AdjustmentStatusApproved  AdjustmentStatus = "approved"
	AdjustmentStatusApplied   AdjustmentStatus = "applied"
	AdjustmentStatusRejected  AdjustmentStatus = "rejected"
	AdjustmentStatusCancelled AdjustmentStatus = "cancelled"
)

// IsValid checks if the status is a valid AdjustmentStatus
func (s AdjustmentStatus) IsValid() bool {
	switch s {
	case AdjustmentStatusPending, AdjustmentStatusApproved, AdjustmentStatusApplied,
		AdjustmentStatusRejected, AdjustmentStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s AdjustmentStatus) CanTransitionTo(target AdjustmentStatus) bool {
	switch s {
	case AdjustmentStatusPending:
		return target == AdjustmentStatusApproved || target == AdjustmentStatusRejected || target == AdjustmentStatusCancelled
	case AdjustmentStatusApproved:
		return target == AdjustmentStatusApplied || target == AdjustmentStatusRejected
	}
	return false // applied, rejected and cancelled are terminal
}

// AdjustmentRecord is a manual correction of one position, resolved through
// a linked movement record.
type AdjustmentRecord struct {
	shared.BaseAggregateRoot
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	ReferenceNumber  string
	AdjustmentType   AdjustmentType
	QuantityAdjusted decimal.Decimal // always positive
	QuantityBefore   decimal.Decimal
	QuantityAfter    decimal.Decimal
	ReasonCode       ReasonCode
	Reason           string
	Status           AdjustmentStatus
	MovementID       uuid.UUID
	RequestedBy      uuid.UUID
	ApprovedBy       *uuid.UUID
	ApprovedAt       *time.Time
	ResolvedBy       *uuid.UUID
	ResolvedAt       *time.Time
	ResolutionNote   string
}

// AdjustmentInput is the request to submit an adjustment
type AdjustmentInput struct {
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	AdjustmentType  AdjustmentType
	Quantity        decimal.Decimal
	ReasonCode      ReasonCode
	Reason          string
	RequestedBy     uuid.UUID
	ReferenceNumber string
}

// Validate checks input constraints
func (in AdjustmentInput) Validate() error {
	if _, err := NewPositionKey(in.ProductID, in.WarehouseID); err != nil {
		return err
	}
	if !in.AdjustmentType.IsValid() {
		return shared.Errorf(shared.ErrValidation, "unknown adjustment type %q", string(in.AdjustmentType))
	}
	if err := ValidateQuantity(in.Quantity, "quantity"); err != nil {
		return err
	}
	if !in.ReasonCode.IsValid() {
		return shared.Errorf(shared.ErrValidation, "unknown reason code %q", string(in.ReasonCode))
	}
	if in.RequestedBy == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "requested by is required")
	}
	return nil
}

// NewAdjustmentRecord creates a pending adjustment linked to its pending movement
func NewAdjustmentRecord(in AdjustmentInput, movement *MovementRecord, at time.Time) (*AdjustmentRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if movement == nil || movement.MovementType != in.AdjustmentType.MovementType() {
		return nil, shared.Errorf(shared.ErrValidation, "adjustment requires a matching movement")
	}
	a := &AdjustmentRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		ProductID:         in.ProductID,
		WarehouseID:       in.WarehouseID,
		ReferenceNumber:   movement.ReferenceNumber,
		AdjustmentType:    in.AdjustmentType,
		QuantityAdjusted:  in.Quantity,
		QuantityBefore:    movement.QuantityBefore,
		QuantityAfter:     movement.QuantityAfter,
		ReasonCode:        in.ReasonCode,
		Reason:            in.Reason,
		Status:            AdjustmentStatusPending,
		MovementID:        movement.ID,
		RequestedBy:       in.RequestedBy,
	}
	a.AddDomainEvent(NewAdjustmentEvent(EventTypeAdjustmentSubmitted, a))
	return a, nil
}

// Key returns the position key the adjustment targets
func (a *AdjustmentRecord) Key() PositionKey {
	return PositionKey{ProductID: a.ProductID, WarehouseID: a.WarehouseID}
}

func (a *AdjustmentRecord) transition(target AdjustmentStatus) error {
	if !a.Status.CanTransitionTo(target) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"adjustment %s cannot move from %s to %s", a.ReferenceNumber, a.Status, target)
	}
	a.Status = target
	return nil
}

// MarkApplied records approval and the snapshot of the applied movement
func (a *AdjustmentRecord) MarkApplied(approverID uuid.UUID, movement *MovementRecord, at time.Time) error {
	if err := a.transition(AdjustmentStatusApproved); err != nil {
		return err
	}
	a.ApprovedBy = &approverID
	a.ApprovedAt = &at
	if err := a.transition(AdjustmentStatusApplied); err != nil {
		return err
	}
	a.QuantityBefore = movement.QuantityBefore
	a.QuantityAfter = movement.QuantityAfter
	a.ResolvedBy = &approverID
	a.ResolvedAt = &at
	a.Touch(at)
	a.AddDomainEvent(NewAdjustmentEvent(EventTypeAdjustmentApplied, a))
	return nil
}

// Reject ends the adjustment without touching the ledger
func (a *AdjustmentRecord) Reject(by uuid.UUID, note string, at time.Time) error {
	if err := a.transition(AdjustmentStatusRejected); err != nil {
		return err
	}
	a.ResolvedBy = &by
	a.ResolvedAt = &at
	a.ResolutionNote = note
	a.Touch(at)
	a.AddDomainEvent(NewAdjustmentEvent(EventTypeAdjustmentRejected, a))
	return nil
}

// Cancel withdraws a pending adjustment
func (a *AdjustmentRecord) Cancel(by uuid.UUID, reason string, at time.Time) error {
	if reason == "" {
		return shared.Errorf(shared.ErrValidation, "cancellation reason is required")
	}
	if err := a.transition(AdjustmentStatusCancelled); err != nil {
		return err
	}
	a.ResolvedBy = &by
	a.ResolvedAt = &at
	a.ResolutionNote = reason
	a.Touch(at)
	a.AddDomainEvent(NewAdjustmentEvent(EventTypeAdjustmentCancelled, a))
	return nil
}
