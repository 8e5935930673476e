package handler

import (
	"context"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AllocationHandler handles sales-order line allocation endpoints
type AllocationHandler struct {
	BaseHandler
	allocations *inventoryapp.AllocationService
	expiration  *inventoryapp.AllocationExpirationService
	clock       shared.Clock
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(
	allocations *inventoryapp.AllocationService,
	expiration *inventoryapp.AllocationExpirationService,
	clock shared.Clock,
) *AllocationHandler {
	return &AllocationHandler{allocations: allocations, expiration: expiration, clock: clock}
}

// Confirm handles POST /allocations, registering a confirmed order line
func (h *AllocationHandler) Confirm(c *gin.Context) {
	var req inventoryapp.ConfirmOrderLineRequest
	if !h.bindJSON(c, &req) {
		return
	}

	allocation, err := h.allocations.ConfirmOrderLine(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, allocation)
}

// Get handles GET /allocations/:id
func (h *AllocationHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	allocation, err := h.allocations.GetAllocation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, allocation)
}

// Allocate handles POST /allocations/:id/allocate
func (h *AllocationHandler) Allocate(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AllocateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	allocation, err := h.allocations.Allocate(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, allocation)
}

// Release handles POST /allocations/:id/release
func (h *AllocationHandler) Release(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	allocation, err := h.allocations.Release(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, allocation)
}

// Consume handles POST /allocations/:id/consume
func (h *AllocationHandler) Consume(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ConsumeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.allocations.Consume(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Backorder handles POST /allocations/:id/backorder
func (h *AllocationHandler) Backorder(c *gin.Context) {
	h.withQuantity(c, h.allocations.MarkBackordered)
}

// Ship handles POST /allocations/:id/ship
func (h *AllocationHandler) Ship(c *gin.Context) {
	h.withQuantity(c, h.allocations.RecordShipment)
}

type quantityOp func(ctx context.Context, id uuid.UUID, req inventoryapp.QuantityRequest) (*inventoryapp.AllocationResponse, error)

func (h *AllocationHandler) withQuantity(c *gin.Context, op quantityOp) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.QuantityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	allocation, err := op(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, allocation)
}

// ExpireSweep handles POST /allocations/expire-sweep. It runs the same sweep
// as the scheduled job, releasing every allocation expired as of now.
func (h *AllocationHandler) ExpireSweep(c *gin.Context) {
	stats, err := h.expiration.ExpireSweep(c.Request.Context(), h.clock.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
