package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultAllocationTTL is used when neither the request nor the
// configuration sets an allocation lifetime.
const DefaultAllocationTTL = 24 * time.Hour

// AllocationService reserves stock against sales-order lines
type AllocationService struct {
	repos          TransactionalRepositories
	executor       *PositionExecutor
	clock          shared.Clock
	defaultTTL     time.Duration
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(repos TransactionalRepositories, executor *PositionExecutor, clock shared.Clock, defaultTTL time.Duration, logger *zap.Logger) *AllocationService {
	if defaultTTL <= 0 {
		defaultTTL = DefaultAllocationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		repos:      repos,
		executor:   executor,
		clock:      clock,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *AllocationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ConfirmOrderLine creates the allocation record for a confirmed sales-order line
func (s *AllocationService) ConfirmOrderLine(ctx context.Context, req ConfirmOrderLineRequest) (*AllocationResponse, error) {
	requires := true
	if req.RequiresAllocation != nil {
		requires = *req.RequiresAllocation
	}
	item, err := inventory.NewOrderItemAllocation(inventory.OrderLineInput{
		OrderID:            req.OrderID,
		LineID:             req.LineID,
		ProductID:          req.ProductID,
		QuantityOrdered:    req.QuantityOrdered,
		RequiresAllocation: requires,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if existing, err := s.repos.Allocations().FindByOrderLine(ctx, req.OrderID, req.LineID); err == nil && existing != nil {
		return nil, shared.Errorf(shared.ErrDuplicateReference,
			"order line %s of order %s is already confirmed", req.LineID.String(), req.OrderID.String())
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if err := s.repos.Allocations().Create(ctx, item); err != nil {
		return nil, err
	}
	response := ToAllocationResponse(item)
	return &response, nil
}

// Allocate reserves quantity at a warehouse for the line. The availability
// check and the reservation commit together under the position lock; there
// is no partial allocation.
func (s *AllocationService) Allocate(ctx context.Context, id uuid.UUID, req AllocateRequest) (*AllocationResponse, error) {
	ttl := durationOrDefault(req.TTLSeconds, s.defaultTTL)
	current, err := s.repos.Allocations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.CheckAllocate(req.WarehouseID, req.Quantity, ttl); err != nil {
		return nil, err
	}
	key := inventory.PositionKey{ProductID: current.ProductID, WarehouseID: req.WarehouseID}

	var (
		item *inventory.OrderItemAllocation
		buf  eventBuffer
	)
	err = s.executor.Execute(ctx, "allocate", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		item, err = repos.Allocations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := item.CheckAllocate(req.WarehouseID, req.Quantity, ttl); err != nil {
			return err
		}
		position, err := repos.Positions().GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if err := position.CheckReserve(req.Quantity); err != nil {
			return err
		}
		now := s.clock.Now()
		if err := item.Allocate(req.WarehouseID, req.Quantity, ttl, now); err != nil {
			return err
		}
		delta := inventory.PositionDelta{OnHand: decimal.Zero, Reserved: req.Quantity}
		if _, err := repos.Positions().ApplyDelta(ctx, key, delta, position.Version); err != nil {
			return err
		}
		if err := repos.Allocations().SaveWithLock(ctx, item); err != nil {
			return err
		}
		buf.collect(item)
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientAvailable) {
			s.logger.Info("Allocation refused",
				zap.String("allocation_id", id.String()),
				zap.String("position", key.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Stock allocated",
		zap.String("allocation_id", id.String()),
		zap.String("position", key.String()),
		zap.String("quantity", req.Quantity.String()),
	)
	response := ToAllocationResponse(item)
	return &response, nil
}

// Release returns the line's reservation to available. Releasing a line
// with nothing reserved is a no-op.
func (s *AllocationService) Release(ctx context.Context, id uuid.UUID) (*AllocationResponse, error) {
	item, _, err := s.releaseOne(ctx, id, false, nil)
	if err != nil {
		return nil, err
	}
	response := ToAllocationResponse(item)
	return &response, nil
}

// releaseOne releases a line under its position lock and reports whether a
// reservation was returned. When expiredBefore is set the line is only
// released if it is still allocated and its expiry lies before that instant.
func (s *AllocationService) releaseOne(ctx context.Context, id uuid.UUID, expired bool, expiredBefore *time.Time) (*inventory.OrderItemAllocation, bool, error) {
	var (
		item     *inventory.OrderItemAllocation
		released bool
	)
	err := followLine(id, func() error {
		var err error
		item, released, err = s.releaseAt(ctx, id, expired, expiredBefore)
		return err
	})
	return item, released, err
}

// releaseAt runs one release against the position the line points at when
// it is first read. errLineMoved means the line changed warehouse before the
// lock was taken.
func (s *AllocationService) releaseAt(ctx context.Context, id uuid.UUID, expired bool, expiredBefore *time.Time) (*inventory.OrderItemAllocation, bool, error) {
	current, err := s.repos.Allocations().FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	key, ok := current.Key()
	if !ok {
		return current, false, nil
	}

	var (
		item     *inventory.OrderItemAllocation
		released bool
		buf      eventBuffer
	)
	err = s.executor.Execute(ctx, "release_allocation", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		released = false
		var err error
		item, err = repos.Allocations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if expiredBefore != nil && !sweepable(item, *expiredBefore) {
			return nil
		}
		if k, ok := item.Key(); !ok || k != key {
			return errLineMoved
		}
		position, err := repos.Positions().GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		quantity, outcome, err := item.Release(expired, s.clock.Now())
		if err != nil || outcome == inventory.ReleaseNoop {
			return err
		}
		delta := inventory.PositionDelta{OnHand: decimal.Zero, Reserved: quantity.Neg()}
		if _, err := repos.Positions().ApplyDelta(ctx, key, delta, position.Version); err != nil {
			return err
		}
		if err := repos.Allocations().SaveWithLock(ctx, item); err != nil {
			return err
		}
		buf.collect(item)
		released = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)
	return item, released, nil
}

// maxLineMoves bounds how often an operation follows a line to a new position
const maxLineMoves = 3

// errLineMoved is returned from a locked operation when the line no longer
// sits on the position that was locked
var errLineMoved = errors.New("allocation line moved to another position")

// followLine runs op again each time it reports errLineMoved, so the next
// attempt reads the line and locks its current position
func followLine(id uuid.UUID, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if !errors.Is(err, errLineMoved) {
			return err
		}
		if attempt >= maxLineMoves {
			return shared.Errorf(shared.ErrConcurrentModification,
				"allocation %s kept moving between positions", id.String())
		}
	}
}

// sweepable reports whether the sweep still has to release the line
func sweepable(item *inventory.OrderItemAllocation, now time.Time) bool {
	return item.Status == inventory.AllocationStatusAllocated &&
		item.RequiresAllocation &&
		item.AllocationExpiresAt != nil &&
		item.AllocationExpiresAt.Before(now) &&
		item.Outstanding().IsPositive()
}

// Consume fulfils quantity out of the reservation: a sale_fulfill movement
// lowers on hand and reserved together and the line's fulfilled count grows.
func (s *AllocationService) Consume(ctx context.Context, id uuid.UUID, req ConsumeRequest) (*ConsumeResponse, error) {
	var resp *ConsumeResponse
	err := followLine(id, func() error {
		var err error
		resp, err = s.consumeAt(ctx, id, req)
		return err
	})
	return resp, err
}

func (s *AllocationService) consumeAt(ctx context.Context, id uuid.UUID, req ConsumeRequest) (*ConsumeResponse, error) {
	current, err := s.repos.Allocations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.CheckConsume(req.Quantity, s.clock.Now()); err != nil {
		return nil, err
	}
	key, _ := current.Key()

	var (
		item   *inventory.OrderItemAllocation
		record *inventory.MovementRecord
		buf    eventBuffer
	)
	err = s.executor.Execute(ctx, "consume_allocation", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		item, err = repos.Allocations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := item.CheckConsume(req.Quantity, now); err != nil {
			return err
		}
		if k, _ := item.Key(); k != key {
			return errLineMoved
		}
		record, err = postMovement(ctx, repos, inventory.MovementInput{
			ProductID:       key.ProductID,
			WarehouseID:     key.WarehouseID,
			ActorID:         req.ActorID,
			MovementType:    inventory.MovementTypeSaleFulfill,
			Quantity:        req.Quantity,
			UnitCost:        req.UnitCost,
			Reason:          "sales order fulfilment",
			Metadata:        map[string]string{"line_id": item.LineID.String(), "allocation_id": item.ID.String()},
			RelatedDocument: inventory.RelatedDocument{Type: inventory.DocumentTypeSalesOrder, ID: item.OrderID.String()},
			ReferenceNumber: req.ReferenceNumber,
			FromReserved:    true,
		}, now)
		if err != nil {
			return err
		}
		if err := item.Consume(req.Quantity, now); err != nil {
			return err
		}
		if err := repos.Allocations().SaveWithLock(ctx, item); err != nil {
			return err
		}
		buf.collect(record, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Allocation consumed",
		zap.String("allocation_id", id.String()),
		zap.String("movement_reference", record.ReferenceNumber),
		zap.String("quantity", req.Quantity.String()),
	)
	return &ConsumeResponse{
		Allocation: ToAllocationResponse(item),
		Movement:   ToMovementResponse(record),
	}, nil
}

// MarkBackordered records the part of the line that could not be allocated
func (s *AllocationService) MarkBackordered(ctx context.Context, id uuid.UUID, req QuantityRequest) (*AllocationResponse, error) {
	return s.update(ctx, id, "backorder_allocation", func(item *inventory.OrderItemAllocation, now time.Time) error {
		return item.MarkBackordered(req.Quantity, now)
	})
}

// RecordShipment records quantity shipped out of what was fulfilled
func (s *AllocationService) RecordShipment(ctx context.Context, id uuid.UUID, req QuantityRequest) (*AllocationResponse, error) {
	return s.update(ctx, id, "ship_allocation", func(item *inventory.OrderItemAllocation, now time.Time) error {
		return item.RecordShipment(req.Quantity, now)
	})
}

// update applies a mutation that does not touch any position
func (s *AllocationService) update(ctx context.Context, id uuid.UUID, op string, mutate func(*inventory.OrderItemAllocation, time.Time) error) (*AllocationResponse, error) {
	var (
		item *inventory.OrderItemAllocation
		buf  eventBuffer
	)
	err := s.executor.Execute(ctx, op, nil, func(repos TransactionalRepositories) error {
		buf.reset()
		var err error
		item, err = repos.Allocations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(item, s.clock.Now()); err != nil {
			return err
		}
		if err := repos.Allocations().SaveWithLock(ctx, item); err != nil {
			return err
		}
		buf.collect(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)
	response := ToAllocationResponse(item)
	return &response, nil
}

// GetAllocation retrieves an allocation by ID
func (s *AllocationService) GetAllocation(ctx context.Context, id uuid.UUID) (*AllocationResponse, error) {
	item, err := s.repos.Allocations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToAllocationResponse(item)
	return &response, nil
}
