package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// MovementHandler handles ledger movement endpoints
type MovementHandler struct {
	BaseHandler
	movements *inventoryapp.MovementService
}

// NewMovementHandler creates a new MovementHandler
func NewMovementHandler(movements *inventoryapp.MovementService) *MovementHandler {
	return &MovementHandler{movements: movements}
}

// Record handles POST /movements. Movement types that need approval come
// back pending; all others are applied to the position before returning.
func (h *MovementHandler) Record(c *gin.Context) {
	var req inventoryapp.RecordMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	movement, err := h.movements.RecordMovement(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// Get handles GET /movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	movement, err := h.movements.GetMovement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movement)
}

// List handles GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	var filter inventoryapp.MovementListFilter
	var ok bool
	if filter.ProductID, filter.WarehouseID, ok = h.bindListQuery(c, &filter); !ok {
		return
	}

	movements, total, err := h.movements.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, movements, total, filter.Page, filter.PageSize)
}

// Approve handles POST /movements/:id/approve
func (h *MovementHandler) Approve(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ApproveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	movement, err := h.movements.ApproveMovement(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movement)
}

// Reject handles POST /movements/:id/reject
func (h *MovementHandler) Reject(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RejectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	movement, err := h.movements.RejectMovement(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movement)
}
