package inventory

import (
	"errors"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdjustment(t *testing.T, p *InventoryPosition, at AdjustmentType, q int64) (*AdjustmentRecord, *MovementRecord) {
	t.Helper()
	in := AdjustmentInput{
		ProductID:      p.ProductID,
		WarehouseID:    p.WarehouseID,
		AdjustmentType: at,
		Quantity:       qty(q),
		ReasonCode:     ReasonCodeCountCorrection,
		RequestedBy:    uuid.New(),
	}
	m, err := NewMovementRecord(MovementInput{
		ProductID:    p.ProductID,
		WarehouseID:  p.WarehouseID,
		ActorID:      in.RequestedBy,
		MovementType: at.MovementType(),
		Quantity:     in.Quantity,
	}, p, testNow)
	require.NoError(t, err)
	a, err := NewAdjustmentRecord(in, m, testNow)
	require.NoError(t, err)
	return a, m
}

func TestNewAdjustmentRecord(t *testing.T) {
	p := newTestPosition(t, 10, 0)
	a, m := newTestAdjustment(t, p, AdjustmentTypeDecrease, 4)

	assert.Equal(t, AdjustmentStatusPending, a.Status)
	assert.Equal(t, m.ID, a.MovementID)
	assert.Equal(t, m.ReferenceNumber, a.ReferenceNumber)
	assert.True(t, a.QuantityBefore.Equal(qty(10)))
	assert.True(t, a.QuantityAfter.Equal(qty(6)))
}

func TestNewAdjustmentRecord_Validation(t *testing.T) {
	p := newTestPosition(t, 10, 0)
	in := AdjustmentInput{
		ProductID:      p.ProductID,
		WarehouseID:    p.WarehouseID,
		AdjustmentType: AdjustmentTypeIncrease,
		Quantity:       qty(1),
		ReasonCode:     "whim",
		RequestedBy:    uuid.New(),
	}
	assert.True(t, errors.Is(in.Validate(), shared.ErrValidation))

	in.ReasonCode = ReasonCodeFound
	in.AdjustmentType = "sideways"
	assert.True(t, errors.Is(in.Validate(), shared.ErrValidation))
}

func TestAdjustmentRecord_Lifecycle(t *testing.T) {
	p := newTestPosition(t, 10, 0)

	t.Run("applied is terminal", func(t *testing.T) {
		a, m := newTestAdjustment(t, p, AdjustmentTypeIncrease, 2)
		require.NoError(t, a.MarkApplied(uuid.New(), m, testNow))
		assert.Equal(t, AdjustmentStatusApplied, a.Status)
		assert.True(t, errors.Is(a.Reject(uuid.New(), "late", testNow), shared.ErrInvalidTransition))
	})

	t.Run("rejected is terminal", func(t *testing.T) {
		a, m := newTestAdjustment(t, p, AdjustmentTypeDecrease, 2)
		require.NoError(t, a.Reject(uuid.New(), "no", testNow))
		assert.True(t, errors.Is(a.MarkApplied(uuid.New(), m, testNow), shared.ErrInvalidTransition))
	})

	t.Run("cancel requires reason", func(t *testing.T) {
		a, _ := newTestAdjustment(t, p, AdjustmentTypeDecrease, 2)
		assert.True(t, errors.Is(a.Cancel(uuid.New(), "", testNow), shared.ErrValidation))
		require.NoError(t, a.Cancel(uuid.New(), "entered twice", testNow))
		assert.Equal(t, AdjustmentStatusCancelled, a.Status)
	})
}
