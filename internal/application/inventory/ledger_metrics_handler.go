package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LedgerMetricsRecorder receives ledger counters. Implemented by the
// telemetry package.
type LedgerMetricsRecorder interface {
	RecordMovement(ctx context.Context, movementType, status string)
	RecordAllocation(ctx context.Context, outcome string)
	RecordTransfer(ctx context.Context, status string)
	RecordReceipt(ctx context.Context, accepted, rejected decimal.Decimal)
}

// LedgerMetricsHandler turns ledger events into metric updates
type LedgerMetricsHandler struct {
	recorder LedgerMetricsRecorder
}

// NewLedgerMetricsHandler creates a new LedgerMetricsHandler
func NewLedgerMetricsHandler(recorder LedgerMetricsRecorder) *LedgerMetricsHandler {
	return &LedgerMetricsHandler{recorder: recorder}
}

// EventTypes returns the event types this handler is interested in
func (h *LedgerMetricsHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeMovementRecorded,
		inventory.EventTypeMovementApplied,
		inventory.EventTypeMovementRejected,
		inventory.EventTypeAllocationCreated,
		inventory.EventTypeAllocationReleased,
		inventory.EventTypeAllocationExpired,
		inventory.EventTypeAllocationConsumed,
		inventory.EventTypeAllocationBackordered,
		inventory.EventTypeTransferInitiated,
		inventory.EventTypeTransferApproved,
		inventory.EventTypeTransferDispatched,
		inventory.EventTypeTransferCompleted,
		inventory.EventTypeTransferCancelled,
		inventory.EventTypeReceiptRecorded,
	}
}

// Handle records the event. Unknown event types are ignored.
func (h *LedgerMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.recorder == nil {
		return nil
	}
	switch e := event.(type) {
	case *inventory.MovementEvent:
		h.recorder.RecordMovement(ctx, string(e.MovementType), string(e.Status))
	case *inventory.AllocationEvent:
		h.recorder.RecordAllocation(ctx, allocationOutcome(e.EventType()))
	case *inventory.TransferEvent:
		h.recorder.RecordTransfer(ctx, string(e.Status))
	case *inventory.ReceiptRecordedEvent:
		h.recorder.RecordReceipt(ctx, e.Accepted, e.Rejected)
	}
	return nil
}

func allocationOutcome(eventType string) string {
	switch eventType {
	case inventory.EventTypeAllocationCreated:
		return "allocated"
	case inventory.EventTypeAllocationReleased:
		return "released"
	case inventory.EventTypeAllocationExpired:
		return "expired"
	case inventory.EventTypeAllocationConsumed:
		return "consumed"
	case inventory.EventTypeAllocationBackordered:
		return "backordered"
	}
	return "unknown"
}

var _ shared.EventHandler = (*LedgerMetricsHandler)(nil)
