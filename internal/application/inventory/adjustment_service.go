package inventory

import (
	"context"
	"errors"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdjustmentService runs the manual adjustment workflow:
// pending -> approved -> applied, or pending -> rejected | cancelled.
type AdjustmentService struct {
	repos          TransactionalRepositories
	executor       *PositionExecutor
	clock          shared.Clock
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAdjustmentService creates a new AdjustmentService
func NewAdjustmentService(repos TransactionalRepositories, executor *PositionExecutor, clock shared.Clock, logger *zap.Logger) *AdjustmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdjustmentService{
		repos:    repos,
		executor: executor,
		clock:    clock,
		logger:   logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *AdjustmentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SubmitAdjustment stores a pending adjustment together with its pending
// movement. The position is not changed until approval.
func (s *AdjustmentService) SubmitAdjustment(ctx context.Context, req SubmitAdjustmentRequest) (*AdjustmentResponse, error) {
	in := req.toInput()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	key := inventory.PositionKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}

	var (
		adjustment *inventory.AdjustmentRecord
		buf        eventBuffer
	)
	err := s.executor.Execute(ctx, "submit_adjustment", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		now := s.clock.Now()
		record, position, err := stageMovement(ctx, repos, inventory.MovementInput{
			ProductID:       in.ProductID,
			WarehouseID:     in.WarehouseID,
			ActorID:         in.RequestedBy,
			MovementType:    in.AdjustmentType.MovementType(),
			Quantity:        in.Quantity,
			Reason:          in.Reason,
			Metadata:        map[string]string{"reason_code": string(in.ReasonCode)},
			ReferenceNumber: in.ReferenceNumber,
		}, now)
		if err != nil {
			return err
		}
		adjustment, err = inventory.NewAdjustmentRecord(in, record, now)
		if err != nil {
			return err
		}
		record.RelatedDocument = inventory.RelatedDocument{Type: inventory.DocumentTypeAdjustment, ID: adjustment.ID.String()}
		if err := commitMovement(ctx, repos, record, position, false, now); err != nil {
			return err
		}
		if err := repos.Adjustments().Create(ctx, adjustment); err != nil {
			return err
		}
		buf.collect(record, adjustment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Adjustment submitted",
		zap.String("reference", adjustment.ReferenceNumber),
		zap.String("adjustment_type", string(adjustment.AdjustmentType)),
		zap.String("position", key.String()),
		zap.String("quantity", adjustment.QuantityAdjusted.String()),
	)
	response := ToAdjustmentResponse(adjustment)
	return &response, nil
}

// ApproveAdjustment applies the adjustment's movement. When a decrease is no
// longer covered both the adjustment and its movement end rejected and
// ErrInsufficientStock is returned.
func (s *AdjustmentService) ApproveAdjustment(ctx context.Context, id uuid.UUID, req ApproveRequest) (*AdjustmentResponse, error) {
	if req.ApproverID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrValidation, "approver id is required")
	}
	current, err := s.repos.Adjustments().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key := current.Key()

	var (
		adjustment *inventory.AdjustmentRecord
		buf        eventBuffer
	)
	err = s.executor.Execute(ctx, "approve_adjustment", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		adjustment, err = repos.Adjustments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if adjustment.Status != inventory.AdjustmentStatusPending {
			return shared.Errorf(shared.ErrInvalidTransition,
				"adjustment %s is %s", adjustment.ReferenceNumber, adjustment.Status)
		}
		record, err := repos.Movements().FindByID(ctx, adjustment.MovementID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := applyPendingMovement(ctx, repos, record, req.ApproverID, now); err != nil {
			return err
		}
		if err := adjustment.MarkApplied(req.ApproverID, record, now); err != nil {
			return err
		}
		if err := repos.Adjustments().SaveWithLock(ctx, adjustment); err != nil {
			return err
		}
		buf.collect(record, adjustment)
		return nil
	})
	if errors.Is(err, shared.ErrInsufficientStock) {
		s.logger.Warn("Adjustment rejected on approval",
			zap.String("adjustment_id", id.String()),
			zap.Error(err),
		)
		if _, rejectErr := s.resolve(ctx, id, key, "reject_adjustment", req.ApproverID, err.Error(), false); rejectErr != nil {
			s.logger.Error("Failed to mark adjustment rejected",
				zap.String("adjustment_id", id.String()),
				zap.Error(rejectErr),
			)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Adjustment applied",
		zap.String("reference", adjustment.ReferenceNumber),
		zap.String("approver_id", req.ApproverID.String()),
		zap.String("quantity_after", adjustment.QuantityAfter.String()),
	)
	response := ToAdjustmentResponse(adjustment)
	return &response, nil
}

// RejectAdjustment ends a pending adjustment without ledger effect
func (s *AdjustmentService) RejectAdjustment(ctx context.Context, id uuid.UUID, req RejectRequest) (*AdjustmentResponse, error) {
	return s.resolveByID(ctx, id, "reject_adjustment", req.ActorID, req.Reason, false)
}

// CancelAdjustment withdraws a pending adjustment without ledger effect
func (s *AdjustmentService) CancelAdjustment(ctx context.Context, id uuid.UUID, req CancelRequest) (*AdjustmentResponse, error) {
	if req.Reason == "" {
		return nil, shared.Errorf(shared.ErrValidation, "cancellation reason is required")
	}
	return s.resolveByID(ctx, id, "cancel_adjustment", req.ActorID, req.Reason, true)
}

func (s *AdjustmentService) resolveByID(ctx context.Context, id uuid.UUID, op string, by uuid.UUID, note string, cancel bool) (*AdjustmentResponse, error) {
	current, err := s.repos.Adjustments().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	adjustment, err := s.resolve(ctx, id, current.Key(), op, by, note, cancel)
	if err != nil {
		return nil, err
	}
	response := ToAdjustmentResponse(adjustment)
	return &response, nil
}

// resolve rejects or cancels the adjustment and rejects its movement in one
// transaction.
func (s *AdjustmentService) resolve(ctx context.Context, id uuid.UUID, key inventory.PositionKey, op string, by uuid.UUID, note string, cancel bool) (*inventory.AdjustmentRecord, error) {
	var (
		adjustment *inventory.AdjustmentRecord
		buf        eventBuffer
	)
	err := s.executor.Execute(ctx, op, []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		adjustment, err = repos.Adjustments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if cancel {
			err = adjustment.Cancel(by, note, now)
		} else {
			err = adjustment.Reject(by, note, now)
		}
		if err != nil {
			return err
		}
		record, err := repos.Movements().FindByID(ctx, adjustment.MovementID)
		if err != nil {
			return err
		}
		reason := note
		if cancel {
			reason = "adjustment cancelled: " + note
		}
		if err := record.Reject(by, reason, now); err != nil {
			return err
		}
		if err := repos.Movements().Save(ctx, record); err != nil {
			return err
		}
		if err := repos.Adjustments().SaveWithLock(ctx, adjustment); err != nil {
			return err
		}
		buf.collect(record, adjustment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Adjustment resolved",
		zap.String("reference", adjustment.ReferenceNumber),
		zap.String("status", string(adjustment.Status)),
	)
	return adjustment, nil
}

// GetAdjustment retrieves an adjustment by ID
func (s *AdjustmentService) GetAdjustment(ctx context.Context, id uuid.UUID) (*AdjustmentResponse, error) {
	adjustment, err := s.repos.Adjustments().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToAdjustmentResponse(adjustment)
	return &response, nil
}

// ListAdjustments lists adjustments, newest first
func (s *AdjustmentService) ListAdjustments(ctx context.Context, filter AdjustmentListFilter) ([]AdjustmentResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	domainFilter := inventory.AdjustmentFilter{
		Filter:      shared.Filter{Page: page, PageSize: pageSize, OrderBy: "created_at", OrderDir: "desc"},
		ProductID:   filter.ProductID,
		WarehouseID: filter.WarehouseID,
	}
	if filter.Status != "" {
		status := inventory.AdjustmentStatus(filter.Status)
		domainFilter.Status = &status
	}
	records, total, err := s.repos.Adjustments().List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToAdjustmentResponses(records), total, nil
}
