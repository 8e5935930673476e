package inventory_test

import (
	"context"
	"testing"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (l *ledger) registerPurchaseItem(t *testing.T, purchaseOrderID uuid.UUID, ordered int64) *appinv.ReceiptResponse {
	t.Helper()
	resp, err := l.receiving.RegisterPurchaseItem(context.Background(), appinv.RegisterPurchaseItemRequest{
		PurchaseOrderID: purchaseOrderID,
		LineID:          uuid.New(),
		ProductID:       l.productID,
		WarehouseID:     l.warehouseA,
		QuantityOrdered: qty(ordered),
		UnitCost:        decimal.RequireFromString("4.00"),
	})
	require.NoError(t, err)
	return resp
}

func TestReceivingService_PartialThenFull(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	item := l.registerPurchaseItem(t, uuid.New(), 40)
	assert.Equal(t, string(inventory.ReceiptStatusPending), item.Status)

	resp, err := l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{
		ActorID:          l.actor,
		AcceptedQuantity: qty(30),
		RejectedQuantity: qty(5),
		QualityNote:      "five cartons crushed",
	})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReceiptStatusPartiallyReceived), resp.Receipt.Status)
	assert.True(t, resp.Receipt.QuantityPending.Equal(qty(5)))
	require.NotNil(t, resp.Movement)
	assert.Equal(t, string(inventory.MovementTypePurchaseReceive), resp.Movement.MovementType)
	assert.True(t, resp.Movement.QuantityMoved.Equal(qty(30)))
	assert.True(t, resp.Movement.TotalValue.Equal(qty(120)))
	assert.Equal(t, "5", resp.Movement.Metadata["rejected_quantity"])
	l.requirePosition(t, l.warehouseA, 30, 0)

	t.Run("over receipt is refused", func(t *testing.T) {
		_, err := l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{
			ActorID:          l.actor,
			AcceptedQuantity: qty(6),
		})
		assert.ErrorIs(t, err, shared.ErrOverReceipt)
		l.requirePosition(t, l.warehouseA, 30, 0)
	})

	t.Run("rejected only books no movement", func(t *testing.T) {
		resp, err := l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{
			ActorID:          l.actor,
			RejectedQuantity: qty(1),
		})
		require.NoError(t, err)
		assert.Nil(t, resp.Movement)
		assert.True(t, resp.Receipt.QuantityRejected.Equal(qty(6)))
		l.requirePosition(t, l.warehouseA, 30, 0)
	})

	resp, err = l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{
		ActorID:          l.actor,
		AcceptedQuantity: qty(4),
	})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReceiptStatusFullyReceived), resp.Receipt.Status)
	assert.True(t, resp.Receipt.QuantityPending.IsZero())
	l.requirePosition(t, l.warehouseA, 34, 0)

	_, err = l.receiving.CancelPurchaseItem(ctx, item.ID, appinv.CancelRequest{ActorID: l.actor, Reason: "closed"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	assert.Contains(t, l.events.Types(), inventory.EventTypeReceiptRecorded)
	l.requireReconciled(t)
}

func TestReceivingService_BackorderAndCancel(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	purchaseOrderID := uuid.New()
	item := l.registerPurchaseItem(t, purchaseOrderID, 10)
	other := l.registerPurchaseItem(t, purchaseOrderID, 3)

	_, err := l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{ActorID: l.actor, AcceptedQuantity: qty(4)})
	require.NoError(t, err)

	backordered, err := l.receiving.MarkBackordered(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReceiptStatusBackordered), backordered.Status)

	cancelled, err := l.receiving.CancelPurchaseItem(ctx, item.ID, appinv.CancelRequest{ActorID: l.actor, Reason: "supplier discontinued"})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReceiptStatusCancelled), cancelled.Status)
	assert.Equal(t, "supplier discontinued", cancelled.CancelReason)

	_, err = l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{ActorID: l.actor, AcceptedQuantity: qty(1)})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	l.requirePosition(t, l.warehouseA, 4, 0)

	lines, err := l.receiving.ListByPurchaseOrder(ctx, purchaseOrderID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	ids := []uuid.UUID{lines[0].ID, lines[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{item.ID, other.ID}, ids)
}

func TestReceivingService_Validation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.receiving.RegisterPurchaseItem(ctx, appinv.RegisterPurchaseItemRequest{
		PurchaseOrderID: uuid.New(),
		LineID:          uuid.New(),
		ProductID:       l.productID,
		WarehouseID:     l.warehouseA,
		QuantityOrdered: qty(1),
		UnitCost:        qty(-1),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	item := l.registerPurchaseItem(t, uuid.New(), 5)
	_, err = l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{ActorID: l.actor})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = l.receiving.ReceivePurchaseItem(ctx, item.ID, appinv.ReceivePurchaseItemRequest{ActorID: l.actor, AcceptedQuantity: qty(-1)})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = l.receiving.GetPurchaseItem(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
