package inventory_test

import (
	"context"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (l *ledger) submitAdjustment(t *testing.T, adjustmentType inventory.AdjustmentType, n int64) *appinv.AdjustmentResponse {
	t.Helper()
	resp, err := l.adjustments.SubmitAdjustment(context.Background(), appinv.SubmitAdjustmentRequest{
		ProductID:      l.productID,
		WarehouseID:    l.warehouseA,
		AdjustmentType: string(adjustmentType),
		Quantity:       qty(n),
		ReasonCode:     string(inventory.ReasonCodeCountCorrection),
		Reason:         "cycle count",
		RequestedBy:    l.actor,
	})
	require.NoError(t, err)
	return resp
}

func TestAdjustmentService_SubmitAndApprove(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.receive(t, l.warehouseA, 10)
	l.events.Reset()

	submitted := l.submitAdjustment(t, inventory.AdjustmentTypeDecrease, 3)
	assert.Equal(t, string(inventory.AdjustmentStatusPending), submitted.Status)
	assert.Regexp(t, `^MV-ADJD-20260302-[0-9A-F]{8}$`, submitted.ReferenceNumber)
	l.requirePosition(t, l.warehouseA, 10, 0)

	movement, err := l.movements.GetMovement(ctx, submitted.MovementID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.MovementStatusPending), movement.Status)
	assert.Equal(t, inventory.DocumentTypeAdjustment, movement.RelatedDocumentType)

	// Stock received after submission is reflected in the applied snapshot.
	l.receive(t, l.warehouseA, 2)

	applied, err := l.adjustments.ApproveAdjustment(ctx, submitted.ID, appinv.ApproveRequest{ApproverID: l.otherActor})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.AdjustmentStatusApplied), applied.Status)
	assert.True(t, applied.QuantityBefore.Equal(qty(12)))
	assert.True(t, applied.QuantityAfter.Equal(qty(9)))
	require.NotNil(t, applied.ApprovedBy)
	assert.Equal(t, l.otherActor, *applied.ApprovedBy)
	l.requirePosition(t, l.warehouseA, 9, 0)

	assert.Contains(t, l.events.Types(), inventory.EventTypeAdjustmentSubmitted)
	assert.Contains(t, l.events.Types(), inventory.EventTypeAdjustmentApplied)

	_, err = l.adjustments.ApproveAdjustment(ctx, submitted.ID, appinv.ApproveRequest{ApproverID: l.otherActor})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	l.requireReconciled(t)
}

func TestAdjustmentService_ApprovalRejectsUncoverableDecrease(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.receive(t, l.warehouseA, 5)

	submitted := l.submitAdjustment(t, inventory.AdjustmentTypeDecrease, 4)

	// Reserve stock so the decrease is no longer covered by available.
	line := l.confirmLine(t, 3)
	_, err := l.allocations.Allocate(ctx, line.ID, appinv.AllocateRequest{WarehouseID: l.warehouseA, Quantity: qty(3)})
	require.NoError(t, err)

	_, err = l.adjustments.ApproveAdjustment(ctx, submitted.ID, appinv.ApproveRequest{ApproverID: l.otherActor})
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	l.requirePosition(t, l.warehouseA, 5, 3)

	got, err := l.adjustments.GetAdjustment(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.AdjustmentStatusRejected), got.Status)
	assert.Contains(t, got.ResolutionNote, "insufficient stock")

	movement, err := l.movements.GetMovement(ctx, submitted.MovementID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.MovementStatusRejected), movement.Status)

	l.requireReconciled(t)
}

func TestAdjustmentService_RejectAndCancel(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.receive(t, l.warehouseA, 5)

	t.Run("reject", func(t *testing.T) {
		submitted := l.submitAdjustment(t, inventory.AdjustmentTypeIncrease, 2)

		resp, err := l.adjustments.RejectAdjustment(ctx, submitted.ID, appinv.RejectRequest{ActorID: l.otherActor, Reason: "recount"})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.AdjustmentStatusRejected), resp.Status)
		assert.Equal(t, "recount", resp.ResolutionNote)

		_, err = l.adjustments.ApproveAdjustment(ctx, submitted.ID, appinv.ApproveRequest{ApproverID: l.otherActor})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("cancel requires a reason", func(t *testing.T) {
		submitted := l.submitAdjustment(t, inventory.AdjustmentTypeIncrease, 2)

		_, err := l.adjustments.CancelAdjustment(ctx, submitted.ID, appinv.CancelRequest{ActorID: l.actor})
		assert.ErrorIs(t, err, shared.ErrValidation)

		resp, err := l.adjustments.CancelAdjustment(ctx, submitted.ID, appinv.CancelRequest{ActorID: l.actor, Reason: "entered twice"})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.AdjustmentStatusCancelled), resp.Status)

		movement, err := l.movements.GetMovement(ctx, submitted.MovementID)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.MovementStatusRejected), movement.Status)
		assert.Equal(t, "adjustment cancelled: entered twice", movement.RejectionReason)
	})

	t.Run("applied adjustment cannot be cancelled", func(t *testing.T) {
		submitted := l.submitAdjustment(t, inventory.AdjustmentTypeIncrease, 1)
		_, err := l.adjustments.ApproveAdjustment(ctx, submitted.ID, appinv.ApproveRequest{ApproverID: l.otherActor})
		require.NoError(t, err)

		_, err = l.adjustments.CancelAdjustment(ctx, submitted.ID, appinv.CancelRequest{ActorID: l.actor, Reason: "too late"})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	l.requirePosition(t, l.warehouseA, 6, 0)
	l.requireReconciled(t)
}

func TestAdjustmentService_Validation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  appinv.SubmitAdjustmentRequest
	}{
		{
			name: "unknown type",
			req: appinv.SubmitAdjustmentRequest{
				ProductID: l.productID, WarehouseID: l.warehouseA, AdjustmentType: "shrink",
				Quantity: qty(1), ReasonCode: string(inventory.ReasonCodeDamage), RequestedBy: l.actor,
			},
		},
		{
			name: "unknown reason code",
			req: appinv.SubmitAdjustmentRequest{
				ProductID: l.productID, WarehouseID: l.warehouseA, AdjustmentType: string(inventory.AdjustmentTypeIncrease),
				Quantity: qty(1), ReasonCode: "misc", RequestedBy: l.actor,
			},
		},
		{
			name: "zero quantity",
			req: appinv.SubmitAdjustmentRequest{
				ProductID: l.productID, WarehouseID: l.warehouseA, AdjustmentType: string(inventory.AdjustmentTypeIncrease),
				Quantity: qty(0), ReasonCode: string(inventory.ReasonCodeFound), RequestedBy: l.actor,
			},
		},
		{
			name: "missing requester",
			req: appinv.SubmitAdjustmentRequest{
				ProductID: l.productID, WarehouseID: l.warehouseA, AdjustmentType: string(inventory.AdjustmentTypeIncrease),
				Quantity: qty(1), ReasonCode: string(inventory.ReasonCodeFound),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.adjustments.SubmitAdjustment(ctx, tt.req)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	_, err := l.adjustments.ApproveAdjustment(ctx, uuid.New(), appinv.ApproveRequest{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = l.adjustments.ApproveAdjustment(ctx, uuid.New(), appinv.ApproveRequest{ApproverID: l.otherActor})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAdjustmentService_ListAdjustments(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.receive(t, l.warehouseA, 5)

	first := l.submitAdjustment(t, inventory.AdjustmentTypeIncrease, 1)
	l.clock.Advance(time.Second)
	second := l.submitAdjustment(t, inventory.AdjustmentTypeDecrease, 1)
	_, err := l.adjustments.RejectAdjustment(ctx, first.ID, appinv.RejectRequest{ActorID: l.otherActor})
	require.NoError(t, err)

	all, total, err := l.adjustments.ListAdjustments(ctx, appinv.AdjustmentListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	pending, total, err := l.adjustments.ListAdjustments(ctx, appinv.AdjustmentListFilter{Status: string(inventory.AdjustmentStatusPending)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}
