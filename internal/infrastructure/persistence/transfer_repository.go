package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransferRepository implements TransferRepository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// Create inserts a new transfer
func (r *GormTransferRepository) Create(ctx context.Context, record *inventory.TransferRecord) error {
	if err := r.db.WithContext(ctx).Create(models.TransferModelFromDomain(record)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// SaveWithLock persists a state transition with optimistic locking
func (r *GormTransferRepository) SaveWithLock(ctx context.Context, record *inventory.TransferRecord) error {
	err := saveVersioned(ctx, r.db, &models.TransferModel{}, "transfer "+record.ReferenceNumber, record.ID, record.Version,
		map[string]interface{}{
			"status":               string(record.Status),
			"approved_by":          record.ApprovedBy,
			"approved_at":          record.ApprovedAt,
			"dispatched_by":        record.DispatchedBy,
			"dispatched_at":        record.DispatchedAt,
			"completed_by":         record.CompletedBy,
			"completed_at":         record.CompletedAt,
			"cancelled_by":         record.CancelledBy,
			"cancelled_at":         record.CancelledAt,
			"cancel_reason":        record.CancelReason,
			"out_movement_id":      record.OutMovementID,
			"in_movement_id":       record.InMovementID,
			"reversal_movement_id": record.ReversalMovementID,
			"updated_at":           record.UpdatedAt,
		})
	if err != nil {
		return err
	}
	record.Version++
	return nil
}

// FindByID finds a transfer by ID
func (r *GormTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.TransferRecord, error) {
	var model models.TransferModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// List returns transfers matching the filter. WarehouseID matches either end.
func (r *GormTransferRepository) List(ctx context.Context, filter inventory.TransferFilter) ([]inventory.TransferRecord, int64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if filter.ProductID != nil {
			db = db.Where("product_id = ?", *filter.ProductID)
		}
		if filter.WarehouseID != nil {
			db = db.Where("(from_warehouse_id = ? OR to_warehouse_id = ?)", *filter.WarehouseID, *filter.WarehouseID)
		}
		if filter.Status != nil {
			db = db.Where("status = ?", string(*filter.Status))
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.TransferModel{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.TransferModel
	if err := applyPaging(r.db.WithContext(ctx).Scopes(where), filter.Filter, WorkflowSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]inventory.TransferRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, total, nil
}

// Ensure GormTransferRepository implements TransferRepository
var _ inventory.TransferRepository = (*GormTransferRepository)(nil)
