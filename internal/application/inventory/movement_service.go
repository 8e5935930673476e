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

// MovementService is the movement engine: it records movements against
// positions and runs the approval path for pending ones.
type MovementService struct {
	repos          TransactionalRepositories
	executor       *PositionExecutor
	clock          shared.Clock
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewMovementService creates a new MovementService. repos is used for reads
// outside any transaction.
func NewMovementService(repos TransactionalRepositories, executor *PositionExecutor, clock shared.Clock, logger *zap.Logger) *MovementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementService{
		repos:    repos,
		executor: executor,
		clock:    clock,
		logger:   logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *MovementService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RecordMovement validates and records a movement. Types that need approval
// are stored pending and leave the position untouched.
func (s *MovementService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResponse, error) {
	in := req.toInput()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	key := inventory.PositionKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}

	var (
		record *inventory.MovementRecord
		buf    eventBuffer
	)
	err := s.executor.Execute(ctx, "record_movement", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		record, err = postMovement(ctx, repos, in, s.clock.Now())
		if err != nil {
			return err
		}
		buf.collect(record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Movement recorded",
		zap.String("reference", record.ReferenceNumber),
		zap.String("movement_type", string(record.MovementType)),
		zap.String("status", string(record.Status)),
		zap.String("position", key.String()),
		zap.String("quantity_moved", record.QuantityMoved.String()),
	)
	response := ToMovementResponse(record)
	return &response, nil
}

// ApproveMovement approves a pending movement and applies it. When the
// position no longer covers a decrease the movement is rejected and
// ErrInsufficientStock is returned.
func (s *MovementService) ApproveMovement(ctx context.Context, id uuid.UUID, req ApproveRequest) (*MovementResponse, error) {
	if req.ApproverID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrValidation, "approver id is required")
	}
	current, err := s.repos.Movements().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardWorkflowOwned(current); err != nil {
		return nil, err
	}
	key := current.Key()

	var (
		record *inventory.MovementRecord
		buf    eventBuffer
	)
	err = s.executor.Execute(ctx, "approve_movement", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		record, err = repos.Movements().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := applyPendingMovement(ctx, repos, record, req.ApproverID, s.clock.Now()); err != nil {
			return err
		}
		buf.collect(record)
		return nil
	})
	if errors.Is(err, shared.ErrInsufficientStock) {
		s.logger.Warn("Movement rejected on approval",
			zap.String("movement_id", id.String()),
			zap.Error(err),
		)
		if rejectErr := s.rejectMovement(ctx, id, key, req.ApproverID, err.Error()); rejectErr != nil {
			s.logger.Error("Failed to mark movement rejected",
				zap.String("movement_id", id.String()),
				zap.Error(rejectErr),
			)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Movement approved",
		zap.String("reference", record.ReferenceNumber),
		zap.String("approver_id", req.ApproverID.String()),
	)
	response := ToMovementResponse(record)
	return &response, nil
}

// RejectMovement rejects a pending movement. The position is not touched.
func (s *MovementService) RejectMovement(ctx context.Context, id uuid.UUID, req RejectRequest) (*MovementResponse, error) {
	current, err := s.repos.Movements().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardWorkflowOwned(current); err != nil {
		return nil, err
	}
	if err := s.rejectMovement(ctx, id, current.Key(), req.ActorID, req.Reason); err != nil {
		return nil, err
	}
	return s.GetMovement(ctx, id)
}

func (s *MovementService) rejectMovement(ctx context.Context, id uuid.UUID, key inventory.PositionKey, by uuid.UUID, reason string) error {
	var buf eventBuffer
	err := s.executor.Execute(ctx, "reject_movement", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		record, err := repos.Movements().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := record.Reject(by, reason, s.clock.Now()); err != nil {
			return err
		}
		if err := repos.Movements().Save(ctx, record); err != nil {
			return err
		}
		buf.collect(record)
		return nil
	})
	if err != nil {
		return err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)
	return nil
}

// guardWorkflowOwned refuses direct approval of movements that belong to an
// adjustment or transfer; those resolve through their own workflow.
func guardWorkflowOwned(record *inventory.MovementRecord) error {
	switch record.RelatedDocument.Type {
	case inventory.DocumentTypeAdjustment, inventory.DocumentTypeTransfer:
		return shared.Errorf(shared.ErrInvalidTransition,
			"movement %s is managed by %s %s", record.ReferenceNumber, record.RelatedDocument.Type, record.RelatedDocument.ID)
	}
	return nil
}

// GetMovement retrieves a movement by ID
func (s *MovementService) GetMovement(ctx context.Context, id uuid.UUID) (*MovementResponse, error) {
	record, err := s.repos.Movements().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToMovementResponse(record)
	return &response, nil
}

// ListMovements queries movements, newest first
func (s *MovementService) ListMovements(ctx context.Context, filter MovementListFilter) ([]MovementResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	domainFilter := inventory.MovementFilter{
		Filter: shared.Filter{
			Page:     page,
			PageSize: pageSize,
			OrderBy:  "created_at",
			OrderDir: filter.OrderDir,
		},
		ProductID:   filter.ProductID,
		WarehouseID: filter.WarehouseID,
		From:        filter.From,
		To:          filter.To,
	}
	if filter.Status != "" {
		status := inventory.MovementStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.MovementType != "" {
		movementType := inventory.MovementType(filter.MovementType)
		if !movementType.IsValid() {
			return nil, 0, shared.Errorf(shared.ErrValidation, "unknown movement type %q", filter.MovementType)
		}
		domainFilter.MovementType = &movementType
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, shared.Errorf(shared.ErrValidation, "to must not be before from")
	}

	records, total, err := s.repos.Movements().List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToMovementResponses(records), total, nil
}

// GetPosition returns the position for a product in a warehouse, creating a
// zeroed one on first reference.
func (s *MovementService) GetPosition(ctx context.Context, productID, warehouseID uuid.UUID) (*PositionResponse, error) {
	key, err := inventory.NewPositionKey(productID, warehouseID)
	if err != nil {
		return nil, err
	}
	position, err := s.repos.Positions().GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	response := ToPositionResponse(position)
	return &response, nil
}

// ListPositions lists positions
func (s *MovementService) ListPositions(ctx context.Context, filter PositionListFilter) ([]PositionResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	positions, total, err := s.repos.Positions().List(ctx, inventory.PositionFilter{
		Filter:       shared.Filter{Page: page, PageSize: pageSize, OrderBy: "updated_at", OrderDir: "desc"},
		ProductID:    filter.ProductID,
		WarehouseID:  filter.WarehouseID,
		OnlyReserved: filter.OnlyReserved,
	})
	if err != nil {
		return nil, 0, err
	}
	return ToPositionResponses(positions), total, nil
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
