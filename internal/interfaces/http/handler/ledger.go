package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// LedgerHandler serves ledger-wide checks
type LedgerHandler struct {
	BaseHandler
	reconciler *inventoryapp.ReconciliationService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(reconciler *inventoryapp.ReconciliationService) *LedgerHandler {
	return &LedgerHandler{reconciler: reconciler}
}

type reconciliationResult struct {
	*inventoryapp.ReconciliationReport
	Consistent bool `json:"consistent"`
}

// Reconcile handles GET /ledger/reconciliation. Discrepancies are reported
// in the body; the status stays 200.
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reconciliationResult{ReconciliationReport: report, Consistent: report.Consistent()})
}
