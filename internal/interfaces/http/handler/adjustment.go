package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// AdjustmentHandler handles stock adjustment endpoints. Adjustments are
// submitted pending and only touch the position once approved.
type AdjustmentHandler struct {
	BaseHandler
	adjustments *inventoryapp.AdjustmentService
}

// NewAdjustmentHandler creates a new AdjustmentHandler
func NewAdjustmentHandler(adjustments *inventoryapp.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{adjustments: adjustments}
}

// Submit handles POST /adjustments
func (h *AdjustmentHandler) Submit(c *gin.Context) {
	var req inventoryapp.SubmitAdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	adjustment, err := h.adjustments.SubmitAdjustment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, adjustment)
}

// Get handles GET /adjustments/:id
func (h *AdjustmentHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	adjustment, err := h.adjustments.GetAdjustment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// List handles GET /adjustments
func (h *AdjustmentHandler) List(c *gin.Context) {
	var filter inventoryapp.AdjustmentListFilter
	var ok bool
	if filter.ProductID, filter.WarehouseID, ok = h.bindListQuery(c, &filter); !ok {
		return
	}

	adjustments, total, err := h.adjustments.ListAdjustments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, adjustments, total, filter.Page, filter.PageSize)
}

// Approve handles POST /adjustments/:id/approve
func (h *AdjustmentHandler) Approve(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ApproveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	adjustment, err := h.adjustments.ApproveAdjustment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// Reject handles POST /adjustments/:id/reject
func (h *AdjustmentHandler) Reject(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RejectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	adjustment, err := h.adjustments.RejectAdjustment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}

// Cancel handles POST /adjustments/:id/cancel
func (h *AdjustmentHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	adjustment, err := h.adjustments.CancelAdjustment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, adjustment)
}
