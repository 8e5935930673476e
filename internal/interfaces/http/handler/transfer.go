package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// TransferHandler handles inter-warehouse transfer endpoints
type TransferHandler struct {
	BaseHandler
	transfers *inventoryapp.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transfers *inventoryapp.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Initiate handles POST /transfers
func (h *TransferHandler) Initiate(c *gin.Context) {
	var req inventoryapp.InitiateTransferRequest
	if !h.bindJSON(c, &req) {
		return
	}

	transfer, err := h.transfers.InitiateTransfer(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, transfer)
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	transfer, err := h.transfers.GetTransfer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transfer)
}

// List handles GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	var filter inventoryapp.TransferListFilter
	var ok bool
	if filter.ProductID, filter.WarehouseID, ok = h.bindListQuery(c, &filter); !ok {
		return
	}

	transfers, total, err := h.transfers.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, transfers, total, filter.Page, filter.PageSize)
}

// Approve handles POST /transfers/:id/approve
func (h *TransferHandler) Approve(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ApproveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	transfer, err := h.transfers.ApproveTransfer(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transfer)
}

// Dispatch handles POST /transfers/:id/dispatch, taking the quantity out of
// the source warehouse.
func (h *TransferHandler) Dispatch(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ActorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	transfer, err := h.transfers.DispatchTransfer(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transfer)
}

// Complete handles POST /transfers/:id/complete
func (h *TransferHandler) Complete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ActorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	transfer, err := h.transfers.CompleteTransfer(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transfer)
}

// Cancel handles POST /transfers/:id/cancel. An in-transit transfer is
// returned to its source warehouse.
func (h *TransferHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	transfer, err := h.transfers.CancelTransfer(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transfer)
}
