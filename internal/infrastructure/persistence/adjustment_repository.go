package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAdjustmentRepository implements AdjustmentRepository using GORM
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormAdjustmentRepository creates a new GormAdjustmentRepository
func NewGormAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// Create inserts a new adjustment
func (r *GormAdjustmentRepository) Create(ctx context.Context, record *inventory.AdjustmentRecord) error {
	if err := r.db.WithContext(ctx).Create(models.AdjustmentModelFromDomain(record)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// SaveWithLock persists a state transition with optimistic locking
func (r *GormAdjustmentRepository) SaveWithLock(ctx context.Context, record *inventory.AdjustmentRecord) error {
	err := saveVersioned(ctx, r.db, &models.AdjustmentModel{}, "adjustment "+record.ReferenceNumber, record.ID, record.Version,
		map[string]interface{}{
			"status":          string(record.Status),
			"quantity_before": record.QuantityBefore,
			"quantity_after":  record.QuantityAfter,
			"approved_by":     record.ApprovedBy,
			"approved_at":     record.ApprovedAt,
			"resolved_by":     record.ResolvedBy,
			"resolved_at":     record.ResolvedAt,
			"resolution_note": record.ResolutionNote,
			"updated_at":      record.UpdatedAt,
		})
	if err != nil {
		return err
	}
	record.Version++
	return nil
}

// FindByID finds an adjustment by ID
func (r *GormAdjustmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.AdjustmentRecord, error) {
	var model models.AdjustmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// List returns adjustments matching the filter
func (r *GormAdjustmentRepository) List(ctx context.Context, filter inventory.AdjustmentFilter) ([]inventory.AdjustmentRecord, int64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if filter.ProductID != nil {
			db = db.Where("product_id = ?", *filter.ProductID)
		}
		if filter.WarehouseID != nil {
			db = db.Where("warehouse_id = ?", *filter.WarehouseID)
		}
		if filter.Status != nil {
			db = db.Where("status = ?", string(*filter.Status))
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AdjustmentModel{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AdjustmentModel
	if err := applyPaging(r.db.WithContext(ctx).Scopes(where), filter.Filter, WorkflowSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]inventory.AdjustmentRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, total, nil
}

// Ensure GormAdjustmentRepository implements AdjustmentRepository
var _ inventory.AdjustmentRepository = (*GormAdjustmentRepository)(nil)
