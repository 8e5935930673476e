package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReceiptHandler handles purchase-order receiving endpoints
type ReceiptHandler struct {
	BaseHandler
	receiving *inventoryapp.ReceivingService
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receiving *inventoryapp.ReceivingService) *ReceiptHandler {
	return &ReceiptHandler{receiving: receiving}
}

// Register handles POST /receipts
func (h *ReceiptHandler) Register(c *gin.Context) {
	var req inventoryapp.RegisterPurchaseItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	receipt, err := h.receiving.RegisterPurchaseItem(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receipt)
}

// Get handles GET /receipts/:id
func (h *ReceiptHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	receipt, err := h.receiving.GetPurchaseItem(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}

// ListByPurchaseOrder handles GET /receipts?purchase_order_id=
func (h *ReceiptHandler) ListByPurchaseOrder(c *gin.Context) {
	poID, err := uuid.Parse(c.Query("purchase_order_id"))
	if err != nil {
		h.BadRequest(c, "purchase_order_id query parameter is required")
		return
	}

	receipts, err := h.receiving.ListByPurchaseOrder(c.Request.Context(), poID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipts)
}

// Receive handles POST /receipts/:id/receive. Accepted goods post a
// purchase_receive movement; rejected goods only count against the line.
func (h *ReceiptHandler) Receive(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ReceivePurchaseItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.receiving.ReceivePurchaseItem(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Backorder handles POST /receipts/:id/backorder
func (h *ReceiptHandler) Backorder(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	receipt, err := h.receiving.MarkBackordered(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}

// Cancel handles POST /receipts/:id/cancel
func (h *ReceiptHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	receipt, err := h.receiving.CancelPurchaseItem(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}
