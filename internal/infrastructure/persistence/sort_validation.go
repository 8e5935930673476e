package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to every ledger table
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// PositionSortFields contains allowed sort fields for inventory positions
var PositionSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"product_id":        true,
	"warehouse_id":      true,
	"quantity_on_hand":  true,
	"quantity_reserved": true,
}

// MovementSortFields contains allowed sort fields for movement records
var MovementSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"movement_type":    true,
	"status":           true,
	"reference_number": true,
	"quantity_moved":   true,
	"applied_at":       true,
}

// WorkflowSortFields contains allowed sort fields for adjustments and transfers
var WorkflowSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"status":           true,
	"reference_number": true,
	"product_id":       true,
}
