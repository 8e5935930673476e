package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus represents the state of an inter-warehouse transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusApproved  TransferStatus = "approved"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// IsValid checks if the status is a valid TransferStatus
func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusPending, TransferStatusApproved, TransferStatusInTransit,
		TransferStatusCompleted, TransferStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of TransferStatus
func (s TransferStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// Completing straight from approved posts both legs at once.
func (s TransferStatus) CanTransitionTo(target TransferStatus) bool {
	switch s {
	case TransferStatusPending:
		return target == TransferStatusApproved || target == TransferStatusCancelled
	case TransferStatusApproved:
		return target == TransferStatusInTransit || target == TransferStatusCompleted || target == TransferStatusCancelled
	case TransferStatusInTransit:
		return target == TransferStatusCompleted || target == TransferStatusCancelled
	case TransferStatusCompleted, TransferStatusCancelled:
		return false
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusCancelled
}

// Transfer movement legs
const (
	TransferLegOut      = "OUT"
	TransferLegIn       = "IN"
	TransferLegReversal = "REV"
)

// TransferRecord moves a fixed quantity of one product between warehouses
type TransferRecord struct {
	shared.BaseAggregateRoot
	ReferenceNumber string
	ProductID       uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Quantity        decimal.Decimal
	Status          TransferStatus
	Reason          string

	InitiatedBy  uuid.UUID
	ApprovedBy   *uuid.UUID
	ApprovedAt   *time.Time
	DispatchedBy *uuid.UUID
	DispatchedAt *time.Time
	CompletedBy  *uuid.UUID
	CompletedAt  *time.Time
	CancelledBy  *uuid.UUID
	CancelledAt  *time.Time
	CancelReason string

	OutMovementID      *uuid.UUID
	InMovementID       *uuid.UUID
	ReversalMovementID *uuid.UUID
}

// TransferInput is the request to initiate a transfer
type TransferInput struct {
	ProductID       uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Quantity        decimal.Decimal
	InitiatedBy     uuid.UUID
	Reason          string
	ReferenceNumber string
}

// Validate checks input constraints
func (in TransferInput) Validate() error {
	if in.ProductID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "product id is required")
	}
	if in.FromWarehouseID == uuid.Nil || in.ToWarehouseID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "source and destination warehouses are required")
	}
	if in.FromWarehouseID == in.ToWarehouseID {
		return shared.Errorf(shared.ErrValidation, "source and destination warehouses must differ")
	}
	if err := ValidateQuantity(in.Quantity, "quantity"); err != nil {
		return err
	}
	if in.InitiatedBy == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "initiated by is required")
	}
	return nil
}

// NewTransferRecord creates a pending transfer
func NewTransferRecord(in TransferInput, at time.Time) (*TransferRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ref := in.ReferenceNumber
	if ref == "" {
		ref = GenerateReference("TR", at)
	}
	t := &TransferRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		ReferenceNumber:   ref,
		ProductID:         in.ProductID,
		FromWarehouseID:   in.FromWarehouseID,
		ToWarehouseID:     in.ToWarehouseID,
		Quantity:          in.Quantity,
		Status:            TransferStatusPending,
		Reason:            in.Reason,
		InitiatedBy:       in.InitiatedBy,
	}
	t.AddDomainEvent(NewTransferEvent(EventTypeTransferInitiated, t))
	return t, nil
}

// FromKey returns the origin position key
func (t *TransferRecord) FromKey() PositionKey {
	return PositionKey{ProductID: t.ProductID, WarehouseID: t.FromWarehouseID}
}

// ToKey returns the destination position key
func (t *TransferRecord) ToKey() PositionKey {
	return PositionKey{ProductID: t.ProductID, WarehouseID: t.ToWarehouseID}
}

// LegReference returns the movement reference for one leg of the transfer
func (t *TransferRecord) LegReference(leg string) string {
	return DerivedReference(t.ReferenceNumber, leg)
}

func (t *TransferRecord) transition(target TransferStatus) error {
	if !t.Status.CanTransitionTo(target) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"transfer %s cannot move from %s to %s", t.ReferenceNumber, t.Status, target)
	}
	t.Status = target
	return nil
}

// Approve records the approver. When requireDistinct is set the approver
// must not be the initiator.
func (t *TransferRecord) Approve(approverID uuid.UUID, requireDistinct bool, at time.Time) error {
	if approverID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "approver id is required")
	}
	if requireDistinct && approverID == t.InitiatedBy {
		return shared.Errorf(shared.ErrValidation, "transfer %s must be approved by someone other than its initiator", t.ReferenceNumber)
	}
	if err := t.transition(TransferStatusApproved); err != nil {
		return err
	}
	t.ApprovedBy = &approverID
	t.ApprovedAt = &at
	t.Touch(at)
	t.AddDomainEvent(NewTransferEvent(EventTypeTransferApproved, t))
	return nil
}

// CanDispatch reports whether Dispatch is allowed from the current state
func (t *TransferRecord) CanDispatch() error {
	if !t.Status.CanTransitionTo(TransferStatusInTransit) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"transfer %s cannot move from %s to %s", t.ReferenceNumber, t.Status, TransferStatusInTransit)
	}
	return nil
}

// Dispatch marks stock as having left the origin warehouse
func (t *TransferRecord) Dispatch(by uuid.UUID, outMovementID uuid.UUID, at time.Time) error {
	if err := t.transition(TransferStatusInTransit); err != nil {
		return err
	}
	t.DispatchedBy = &by
	t.DispatchedAt = &at
	t.OutMovementID = &outMovementID
	t.Touch(at)
	t.AddDomainEvent(NewTransferEvent(EventTypeTransferDispatched, t))
	return nil
}

// CanComplete reports whether Complete is allowed from the current state
func (t *TransferRecord) CanComplete(completerID uuid.UUID) error {
	if completerID == uuid.Nil {
		return shared.Errorf(shared.ErrValidation, "completed by is required")
	}
	if !t.Status.CanTransitionTo(TransferStatusCompleted) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"transfer %s cannot move from %s to %s", t.ReferenceNumber, t.Status, TransferStatusCompleted)
	}
	return nil
}

// Complete marks the stock as received at the destination. outMovementID is
// only set when completing straight from approved.
func (t *TransferRecord) Complete(completerID uuid.UUID, outMovementID *uuid.UUID, inMovementID uuid.UUID, at time.Time) error {
	if err := t.CanComplete(completerID); err != nil {
		return err
	}
	if t.Status == TransferStatusApproved {
		if outMovementID == nil {
			return shared.Errorf(shared.ErrValidation, "completing an undispatched transfer requires an outbound movement")
		}
		t.OutMovementID = outMovementID
		t.DispatchedBy = &completerID
		t.DispatchedAt = &at
	}
	t.Status = TransferStatusCompleted
	t.CompletedBy = &completerID
	t.CompletedAt = &at
	t.InMovementID = &inMovementID
	t.Touch(at)
	t.AddDomainEvent(NewTransferEvent(EventTypeTransferCompleted, t))
	return nil
}

// CanCancel reports whether Cancel is allowed
func (t *TransferRecord) CanCancel(reason string) error {
	if reason == "" {
		return shared.Errorf(shared.ErrValidation, "cancellation reason is required")
	}
	if !t.Status.CanTransitionTo(TransferStatusCancelled) {
		return shared.Errorf(shared.ErrInvalidTransition,
			"transfer %s cannot move from %s to %s", t.ReferenceNumber, t.Status, TransferStatusCancelled)
	}
	return nil
}

// NeedsReversal reports whether cancelling must return stock to the origin
func (t *TransferRecord) NeedsReversal() bool {
	return t.Status == TransferStatusInTransit
}

// Cancel ends the transfer. reversalMovementID must be set when stock had
// already been dispatched.
func (t *TransferRecord) Cancel(by uuid.UUID, reason string, reversalMovementID *uuid.UUID, at time.Time) error {
	if err := t.CanCancel(reason); err != nil {
		return err
	}
	if t.NeedsReversal() && reversalMovementID == nil {
		return shared.Errorf(shared.ErrValidation, "cancelling a dispatched transfer requires a reversal movement")
	}
	t.Status = TransferStatusCancelled
	t.CancelledBy = &by
	t.CancelledAt = &at
	t.CancelReason = reason
	t.ReversalMovementID = reversalMovementID
	t.Touch(at)
	t.AddDomainEvent(NewTransferEvent(EventTypeTransferCancelled, t))
	return nil
}
