package router

import (
	"github.com/erp/stockledger/internal/interfaces/http/handler"
)

// Handlers bundles every ledger endpoint handler
type Handlers struct {
	Positions   *handler.PositionHandler
	Movements   *handler.MovementHandler
	Allocations *handler.AllocationHandler
	Adjustments *handler.AdjustmentHandler
	Transfers   *handler.TransferHandler
	Receipts    *handler.ReceiptHandler
	Ledger      *handler.LedgerHandler
	Health      *handler.HealthHandler
}

// LedgerRoutes returns the route groups of the ledger API
func LedgerRoutes(h Handlers) []RouteRegistrar {
	positions := NewDomainGroup("positions", "/positions").
		GET("", h.Positions.List).
		GET("/:product_id/:warehouse_id", h.Positions.Get)

	movements := NewDomainGroup("movements", "/movements").
		POST("", h.Movements.Record).
		GET("", h.Movements.List).
		GET("/:id", h.Movements.Get).
		POST("/:id/approve", h.Movements.Approve).
		POST("/:id/reject", h.Movements.Reject)

	allocations := NewDomainGroup("allocations", "/allocations").
		POST("", h.Allocations.Confirm).
		POST("/expire-sweep", h.Allocations.ExpireSweep).
		GET("/:id", h.Allocations.Get).
		POST("/:id/allocate", h.Allocations.Allocate).
		POST("/:id/release", h.Allocations.Release).
		POST("/:id/consume", h.Allocations.Consume).
		POST("/:id/backorder", h.Allocations.Backorder).
		POST("/:id/ship", h.Allocations.Ship)

	adjustments := NewDomainGroup("adjustments", "/adjustments").
		POST("", h.Adjustments.Submit).
		GET("", h.Adjustments.List).
		GET("/:id", h.Adjustments.Get).
		POST("/:id/approve", h.Adjustments.Approve).
		POST("/:id/reject", h.Adjustments.Reject).
		POST("/:id/cancel", h.Adjustments.Cancel)

	transfers := NewDomainGroup("transfers", "/transfers").
		POST("", h.Transfers.Initiate).
		GET("", h.Transfers.List).
		GET("/:id", h.Transfers.Get).
		POST("/:id/approve", h.Transfers.Approve).
		POST("/:id/dispatch", h.Transfers.Dispatch).
		POST("/:id/complete", h.Transfers.Complete).
		POST("/:id/cancel", h.Transfers.Cancel)

	receipts := NewDomainGroup("receipts", "/receipts").
		POST("", h.Receipts.Register).
		GET("", h.Receipts.ListByPurchaseOrder).
		GET("/:id", h.Receipts.Get).
		POST("/:id/receive", h.Receipts.Receive).
		POST("/:id/backorder", h.Receipts.Backorder).
		POST("/:id/cancel", h.Receipts.Cancel)

	ledger := NewDomainGroup("ledger", "/ledger").
		GET("/reconciliation", h.Ledger.Reconcile)

	groups := []RouteRegistrar{positions, movements, allocations, adjustments, transfers, receipts, ledger}
	if h.Health != nil {
		groups = append(groups, NewDomainGroup("health", "/health").GET("", h.Health.Health))
	}
	return groups
}
