// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and AggregateModel
// - metadata.go: JSON column type for movement metadata
// - ledger.go: positions and movement records
// - workflow.go: adjustments, transfers, allocations and receipts
package models
