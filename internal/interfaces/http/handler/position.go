package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// PositionHandler serves read access to inventory positions
type PositionHandler struct {
	BaseHandler
	movements *inventoryapp.MovementService
}

// NewPositionHandler creates a new PositionHandler
func NewPositionHandler(movements *inventoryapp.MovementService) *PositionHandler {
	return &PositionHandler{movements: movements}
}

// List handles GET /positions
func (h *PositionHandler) List(c *gin.Context) {
	var filter inventoryapp.PositionListFilter
	var ok bool
	if filter.ProductID, filter.WarehouseID, ok = h.bindListQuery(c, &filter); !ok {
		return
	}

	positions, total, err := h.movements.ListPositions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, positions, total, filter.Page, filter.PageSize)
}

// Get handles GET /positions/:product_id/:warehouse_id. A pair that never
// saw a movement reports zero counters rather than 404.
func (h *PositionHandler) Get(c *gin.Context) {
	productID, ok := h.uuidParam(c, "product_id")
	if !ok {
		return
	}
	warehouseID, ok := h.uuidParam(c, "warehouse_id")
	if !ok {
		return
	}

	position, err := h.movements.GetPosition(c.Request.Context(), productID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, position)
}
