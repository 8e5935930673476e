package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionModel is the persistence model for the InventoryPosition aggregate root.
type PositionModel struct {
	AggregateModel
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_position_product_warehouse,priority:1"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_position_product_warehouse,priority:2;index"`
	QuantityOnHand   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityReserved decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (PositionModel) TableName() string {
	return "inventory_positions"
}

// ToDomain converts the persistence model to a domain InventoryPosition.
func (m *PositionModel) ToDomain() *inventory.InventoryPosition {
	return &inventory.InventoryPosition{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		QuantityOnHand:    m.QuantityOnHand,
		QuantityReserved:  m.QuantityReserved,
	}
}

// FromDomain populates the persistence model from a domain InventoryPosition.
func (m *PositionModel) FromDomain(p *inventory.InventoryPosition) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.ProductID = p.ProductID
	m.WarehouseID = p.WarehouseID
	m.QuantityOnHand = p.QuantityOnHand
	m.QuantityReserved = p.QuantityReserved
}

// PositionModelFromDomain creates a new persistence model from a domain InventoryPosition.
func PositionModelFromDomain(p *inventory.InventoryPosition) *PositionModel {
	m := &PositionModel{}
	m.FromDomain(p)
	return m
}

// MovementModel is the persistence model for the MovementRecord aggregate root.
type MovementModel struct {
	AggregateModel
	ProductID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_movement_position,priority:1"`
	WarehouseID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_movement_position,priority:2"`
	ActorID             uuid.UUID       `gorm:"type:uuid;not null"`
	ReferenceNumber     string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	MovementType        string          `gorm:"type:varchar(32);not null;index"`
	Status              string          `gorm:"type:varchar(16);not null;index"`
	QuantityBefore      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityMoved       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityAfter       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalValue          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Reason              string          `gorm:"type:varchar(500)"`
	Metadata            Metadata        `gorm:"type:jsonb"`
	RelatedDocumentType string          `gorm:"type:varchar(32)"`
	RelatedDocumentID   string          `gorm:"type:varchar(64);index"`
	FromReserved        bool            `gorm:"not null;default:false"`
	ApprovedBy          *uuid.UUID      `gorm:"type:uuid"`
	ApprovedAt          *time.Time
	AppliedAt           *time.Time
	RejectedBy          *uuid.UUID `gorm:"type:uuid"`
	RejectedAt          *time.Time
	RejectionReason     string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "movement_records"
}

// ToDomain converts the persistence model to a domain MovementRecord.
func (m *MovementModel) ToDomain() *inventory.MovementRecord {
	metadata := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		metadata[k] = v
	}
	return &inventory.MovementRecord{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		ActorID:           m.ActorID,
		ReferenceNumber:   m.ReferenceNumber,
		MovementType:      inventory.MovementType(m.MovementType),
		QuantityBefore:    m.QuantityBefore,
		QuantityMoved:     m.QuantityMoved,
		QuantityAfter:     m.QuantityAfter,
		UnitCost:          m.UnitCost,
		TotalValue:        m.TotalValue,
		Reason:            m.Reason,
		Metadata:          metadata,
		RelatedDocument:   inventory.RelatedDocument{Type: m.RelatedDocumentType, ID: m.RelatedDocumentID},
		Status:            inventory.MovementStatus(m.Status),
		FromReserved:      m.FromReserved,
		ApprovedBy:        m.ApprovedBy,
		ApprovedAt:        m.ApprovedAt,
		AppliedAt:         m.AppliedAt,
		RejectedBy:        m.RejectedBy,
		RejectedAt:        m.RejectedAt,
		RejectionReason:   m.RejectionReason,
	}
}

// FromDomain populates the persistence model from a domain MovementRecord.
func (m *MovementModel) FromDomain(r *inventory.MovementRecord) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProductID = r.ProductID
	m.WarehouseID = r.WarehouseID
	m.ActorID = r.ActorID
	m.ReferenceNumber = r.ReferenceNumber
	m.MovementType = string(r.MovementType)
	m.Status = string(r.Status)
	m.QuantityBefore = r.QuantityBefore
	m.QuantityMoved = r.QuantityMoved
	m.QuantityAfter = r.QuantityAfter
	m.UnitCost = r.UnitCost
	m.TotalValue = r.TotalValue
	m.Reason = r.Reason
	m.Metadata = Metadata(r.Metadata)
	m.RelatedDocumentType = r.RelatedDocument.Type
	m.RelatedDocumentID = r.RelatedDocument.ID
	m.FromReserved = r.FromReserved
	m.ApprovedBy = r.ApprovedBy
	m.ApprovedAt = r.ApprovedAt
	m.AppliedAt = r.AppliedAt
	m.RejectedBy = r.RejectedBy
	m.RejectedAt = r.RejectedAt
	m.RejectionReason = r.RejectionReason
}

// MovementModelFromDomain creates a new persistence model from a domain MovementRecord.
func MovementModelFromDomain(r *inventory.MovementRecord) *MovementModel {
	m := &MovementModel{}
	m.FromDomain(r)
	return m
}

// AllModels returns every model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&PositionModel{},
		&MovementModel{},
		&AdjustmentModel{},
		&TransferModel{},
		&AllocationModel{},
		&ReceiptModel{},
	}
}
