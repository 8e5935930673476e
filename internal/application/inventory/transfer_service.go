package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferService runs inter-warehouse transfers:
// pending -> approved -> in_transit -> completed, with cancellation from any
// non-terminal state.
type TransferService struct {
	repos           TransactionalRepositories
	executor        *PositionExecutor
	clock           shared.Clock
	requireDistinct bool
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger
}

// NewTransferService creates a new TransferService. requireDistinctApprover
// forbids initiators from approving their own transfers.
func NewTransferService(repos TransactionalRepositories, executor *PositionExecutor, clock shared.Clock, requireDistinctApprover bool, logger *zap.Logger) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		repos:           repos,
		executor:        executor,
		clock:           clock,
		requireDistinct: requireDistinctApprover,
		logger:          logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *TransferService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// InitiateTransfer creates a pending transfer. No stock moves yet. A
// generated reference that collides with a stored transfer is replaced.
func (s *TransferService) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (*TransferResponse, error) {
	var (
		transfer *inventory.TransferRecord
		buf      eventBuffer
		err      error
	)
	for attempt := 1; ; attempt++ {
		now := s.clock.Now()
		ref := req.ReferenceNumber
		if ref == "" {
			ref = generateReference("TR", now)
		}
		transfer, err = inventory.NewTransferRecord(inventory.TransferInput{
			ProductID:       req.ProductID,
			FromWarehouseID: req.FromWarehouseID,
			ToWarehouseID:   req.ToWarehouseID,
			Quantity:        req.Quantity,
			InitiatedBy:     req.InitiatedBy,
			Reason:          req.Reason,
			ReferenceNumber: ref,
		}, now)
		if err != nil {
			return nil, err
		}
		err = s.executor.Execute(ctx, "initiate_transfer", nil, func(repos TransactionalRepositories) error {
			buf.reset()
			if err := repos.Transfers().Create(ctx, transfer); err != nil {
				return err
			}
			buf.collect(transfer)
			return nil
		})
		if req.ReferenceNumber == "" && errors.Is(err, shared.ErrDuplicateReference) && attempt < referenceAttempts {
			s.logger.Warn("Generated transfer reference collided, retrying", zap.String("reference", ref))
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Transfer initiated",
		zap.String("reference", transfer.ReferenceNumber),
		zap.String("from", transfer.FromKey().String()),
		zap.String("to", transfer.ToKey().String()),
		zap.String("quantity", transfer.Quantity.String()),
	)
	response := ToTransferResponse(transfer)
	return &response, nil
}

// ApproveTransfer approves a pending transfer
func (s *TransferService) ApproveTransfer(ctx context.Context, id uuid.UUID, req ApproveRequest) (*TransferResponse, error) {
	return s.run(ctx, id, "approve_transfer", nil, func(repos TransactionalRepositories, t *inventory.TransferRecord, now time.Time) ([]shared.AggregateRoot, error) {
		return nil, t.Approve(req.ApproverID, s.requireDistinct, now)
	})
}

// DispatchTransfer posts the outbound leg at the origin and marks the
// transfer in transit. If the origin cannot cover the quantity the transfer
// stays approved.
func (s *TransferService) DispatchTransfer(ctx context.Context, id uuid.UUID, req ActorRequest) (*TransferResponse, error) {
	return s.run(ctx, id, "dispatch_transfer", fromKey, func(repos TransactionalRepositories, t *inventory.TransferRecord, now time.Time) ([]shared.AggregateRoot, error) {
		if err := t.CanDispatch(); err != nil {
			return nil, err
		}
		out, err := postMovement(ctx, repos, s.leg(t, inventory.TransferLegOut, req.ActorID), now)
		if err != nil {
			return nil, err
		}
		return []shared.AggregateRoot{out}, t.Dispatch(req.ActorID, out.ID, now)
	})
}

// CompleteTransfer posts the inbound leg at the destination. Completing an
// approved transfer posts both legs in one transaction.
func (s *TransferService) CompleteTransfer(ctx context.Context, id uuid.UUID, req ActorRequest) (*TransferResponse, error) {
	return s.run(ctx, id, "complete_transfer", bothKeys, func(repos TransactionalRepositories, t *inventory.TransferRecord, now time.Time) ([]shared.AggregateRoot, error) {
		if err := t.CanComplete(req.ActorID); err != nil {
			return nil, err
		}
		var (
			raised []shared.AggregateRoot
			outID  *uuid.UUID
		)
		if t.Status == inventory.TransferStatusApproved {
			out, err := postMovement(ctx, repos, s.leg(t, inventory.TransferLegOut, req.ActorID), now)
			if err != nil {
				return nil, err
			}
			outID = &out.ID
			raised = append(raised, out)
		}
		in, err := postMovement(ctx, repos, s.leg(t, inventory.TransferLegIn, req.ActorID), now)
		if err != nil {
			return nil, err
		}
		raised = append(raised, in)
		return raised, t.Complete(req.ActorID, outID, in.ID, now)
	})
}

// CancelTransfer cancels a non-terminal transfer. A transfer already in
// transit gets a corrective transfer_in at the origin.
func (s *TransferService) CancelTransfer(ctx context.Context, id uuid.UUID, req CancelRequest) (*TransferResponse, error) {
	if req.Reason == "" {
		return nil, shared.Errorf(shared.ErrValidation, "cancellation reason is required")
	}
	return s.run(ctx, id, "cancel_transfer", fromKey, func(repos TransactionalRepositories, t *inventory.TransferRecord, now time.Time) ([]shared.AggregateRoot, error) {
		if err := t.CanCancel(req.Reason); err != nil {
			return nil, err
		}
		var (
			raised     []shared.AggregateRoot
			reversalID *uuid.UUID
		)
		if t.NeedsReversal() {
			rev, err := postMovement(ctx, repos, s.leg(t, inventory.TransferLegReversal, req.ActorID), now)
			if err != nil {
				return nil, err
			}
			reversalID = &rev.ID
			raised = append(raised, rev)
		}
		return raised, t.Cancel(req.ActorID, req.Reason, reversalID, now)
	})
}

// leg builds the pre-approved movement for one leg of the transfer
func (s *TransferService) leg(t *inventory.TransferRecord, leg string, actorID uuid.UUID) inventory.MovementInput {
	in := inventory.MovementInput{
		ProductID:       t.ProductID,
		WarehouseID:     t.FromWarehouseID,
		ActorID:         actorID,
		MovementType:    inventory.MovementTypeTransferOut,
		Quantity:        t.Quantity,
		Reason:          t.Reason,
		RelatedDocument: inventory.RelatedDocument{Type: inventory.DocumentTypeTransfer, ID: t.ID.String()},
		ReferenceNumber: t.LegReference(leg),
		PreApproved:     true,
	}
	switch leg {
	case inventory.TransferLegIn:
		in.WarehouseID = t.ToWarehouseID
		in.MovementType = inventory.MovementTypeTransferIn
	case inventory.TransferLegReversal:
		in.MovementType = inventory.MovementTypeTransferIn
		in.Reason = "transfer cancelled: " + t.ReferenceNumber
	}
	in.Metadata = map[string]string{"transfer_reference": t.ReferenceNumber, "leg": leg}
	return in
}

type transferKeys func(t *inventory.TransferRecord) []inventory.PositionKey

func fromKey(t *inventory.TransferRecord) []inventory.PositionKey {
	return []inventory.PositionKey{t.FromKey()}
}

func bothKeys(t *inventory.TransferRecord) []inventory.PositionKey {
	return []inventory.PositionKey{t.FromKey(), t.ToKey()}
}

// run loads the transfer, locks the positions chosen by keys, applies step
// and saves the transfer, all in one transaction.
func (s *TransferService) run(
	ctx context.Context,
	id uuid.UUID,
	op string,
	keys transferKeys,
	step func(repos TransactionalRepositories, t *inventory.TransferRecord, now time.Time) ([]shared.AggregateRoot, error),
) (*TransferResponse, error) {
	var locked []inventory.PositionKey
	if keys != nil {
		current, err := s.repos.Transfers().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		locked = keys(current)
	}

	var (
		transfer *inventory.TransferRecord
		buf      eventBuffer
	)
	err := s.executor.Execute(ctx, op, locked, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		transfer, err = repos.Transfers().FindByID(ctx, id)
		if err != nil {
			return err
		}
		raised, err := step(repos, transfer, s.clock.Now())
		if err != nil {
			return err
		}
		if err := repos.Transfers().SaveWithLock(ctx, transfer); err != nil {
			return err
		}
		buf.collect(raised...)
		buf.collect(transfer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Transfer updated",
		zap.String("operation", op),
		zap.String("reference", transfer.ReferenceNumber),
		zap.String("status", string(transfer.Status)),
	)
	response := ToTransferResponse(transfer)
	return &response, nil
}

// GetTransfer retrieves a transfer by ID
func (s *TransferService) GetTransfer(ctx context.Context, id uuid.UUID) (*TransferResponse, error) {
	transfer, err := s.repos.Transfers().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToTransferResponse(transfer)
	return &response, nil
}

// ListTransfers lists transfers, newest first
func (s *TransferService) ListTransfers(ctx context.Context, filter TransferListFilter) ([]TransferResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	domainFilter := inventory.TransferFilter{
		Filter:      shared.Filter{Page: page, PageSize: pageSize, OrderBy: "created_at", OrderDir: "desc"},
		ProductID:   filter.ProductID,
		WarehouseID: filter.WarehouseID,
	}
	if filter.Status != "" {
		status := inventory.TransferStatus(filter.Status)
		domainFilter.Status = &status
	}
	records, total, err := s.repos.Transfers().List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToTransferResponses(records), total, nil
}
