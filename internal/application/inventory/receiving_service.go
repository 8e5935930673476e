package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceivingService applies purchase-order receipts to the ledger
type ReceivingService struct {
	repos          TransactionalRepositories
	executor       *PositionExecutor
	clock          shared.Clock
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewReceivingService creates a new ReceivingService
func NewReceivingService(repos TransactionalRepositories, executor *PositionExecutor, clock shared.Clock, logger *zap.Logger) *ReceivingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceivingService{
		repos:    repos,
		executor: executor,
		clock:    clock,
		logger:   logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *ReceivingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RegisterPurchaseItem registers a purchase-order line for receiving
func (s *ReceivingService) RegisterPurchaseItem(ctx context.Context, req RegisterPurchaseItemRequest) (*ReceiptResponse, error) {
	item, err := inventory.NewPurchaseOrderItemReceipt(inventory.PurchaseItemInput{
		PurchaseOrderID: req.PurchaseOrderID,
		LineID:          req.LineID,
		ProductID:       req.ProductID,
		WarehouseID:     req.WarehouseID,
		QuantityOrdered: req.QuantityOrdered,
		UnitCost:        req.UnitCost,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Receipts().Create(ctx, item); err != nil {
		return nil, err
	}
	response := ToReceiptResponse(item)
	return &response, nil
}

// ReceivePurchaseItem books accepted goods onto the position with a
// purchase_receive movement and counts rejected goods against the line only.
func (s *ReceivingService) ReceivePurchaseItem(ctx context.Context, id uuid.UUID, req ReceivePurchaseItemRequest) (*ReceiveResponse, error) {
	current, err := s.repos.Receipts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.CheckReceive(req.AcceptedQuantity, req.RejectedQuantity); err != nil {
		return nil, err
	}
	key := current.Key()

	var (
		item   *inventory.PurchaseOrderItemReceipt
		record *inventory.MovementRecord
		buf    eventBuffer
	)
	err = s.executor.Execute(ctx, "receive_purchase_item", []inventory.PositionKey{key}, func(repos TransactionalRepositories) error {
		buf.reset()
		record = nil
		var err error
		item, err = repos.Receipts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := item.CheckReceive(req.AcceptedQuantity, req.RejectedQuantity); err != nil {
			return err
		}
		if req.AcceptedQuantity.IsPositive() {
			record, err = postMovement(ctx, repos, inventory.MovementInput{
				ProductID:    item.ProductID,
				WarehouseID:  item.WarehouseID,
				ActorID:      req.ActorID,
				MovementType: inventory.MovementTypePurchaseReceive,
				Quantity:     req.AcceptedQuantity,
				UnitCost:     item.UnitCost,
				Reason:       req.QualityNote,
				Metadata: map[string]string{
					"line_id":           item.LineID.String(),
					"rejected_quantity": req.RejectedQuantity.String(),
				},
				RelatedDocument: inventory.RelatedDocument{Type: inventory.DocumentTypePurchaseOrder, ID: item.PurchaseOrderID.String()},
			}, now)
			if err != nil {
				return err
			}
			buf.collect(record)
		}
		if err := item.Receive(req.AcceptedQuantity, req.RejectedQuantity, now); err != nil {
			return err
		}
		if err := repos.Receipts().SaveWithLock(ctx, item); err != nil {
			return err
		}
		buf.collect(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, buf.events)

	s.logger.Info("Purchase item received",
		zap.String("receipt_id", id.String()),
		zap.String("accepted", req.AcceptedQuantity.String()),
		zap.String("rejected", req.RejectedQuantity.String()),
		zap.String("status", string(item.Status())),
	)
	response := &ReceiveResponse{Receipt: ToReceiptResponse(item)}
	if record != nil {
		movement := ToMovementResponse(record)
		response.Movement = &movement
	}
	return response, nil
}

// MarkBackordered flags the outstanding quantity as backordered
func (s *ReceivingService) MarkBackordered(ctx context.Context, id uuid.UUID) (*ReceiptResponse, error) {
	return s.update(ctx, id, "backorder_purchase_item", func(item *inventory.PurchaseOrderItemReceipt, now time.Time) error {
		return item.MarkBackordered(now)
	})
}

// CancelPurchaseItem stops further receiving on the line
func (s *ReceivingService) CancelPurchaseItem(ctx context.Context, id uuid.UUID, req CancelRequest) (*ReceiptResponse, error) {
	return s.update(ctx, id, "cancel_purchase_item", func(item *inventory.PurchaseOrderItemReceipt, now time.Time) error {
		return item.Cancel(req.Reason, now)
	})
}

func (s *ReceivingService) update(ctx context.Context, id uuid.UUID, op string, mutate func(*inventory.PurchaseOrderItemReceipt, time.Time) error) (*ReceiptResponse, error) {
	var item *inventory.PurchaseOrderItemReceipt
	err := s.executor.Execute(ctx, op, nil, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.Receipts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(item, s.clock.Now()); err != nil {
			return err
		}
		return repos.Receipts().SaveWithLock(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Purchase item updated",
		zap.String("operation", op),
		zap.String("receipt_id", id.String()),
		zap.String("status", string(item.Status())),
	)
	response := ToReceiptResponse(item)
	return &response, nil
}

// GetPurchaseItem retrieves a receipt line by ID
func (s *ReceivingService) GetPurchaseItem(ctx context.Context, id uuid.UUID) (*ReceiptResponse, error) {
	item, err := s.repos.Receipts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToReceiptResponse(item)
	return &response, nil
}

// ListByPurchaseOrder returns every receipt line of a purchase order
func (s *ReceivingService) ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]ReceiptResponse, error) {
	items, err := s.repos.Receipts().FindByPurchaseOrder(ctx, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	return ToReceiptResponses(items), nil
}
