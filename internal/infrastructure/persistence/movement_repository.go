package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormMovementRepository implements MovementRepository using GORM.
// Movement records are append-only apart from their status transitions.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append inserts a new movement record
func (r *GormMovementRepository) Append(ctx context.Context, record *inventory.MovementRecord) (uuid.UUID, error) {
	model := models.MovementModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return uuid.Nil, translateError(err)
	}
	return record.ID, nil
}

// Save persists a status transition, checking the stored version
func (r *GormMovementRepository) Save(ctx context.Context, record *inventory.MovementRecord) error {
	err := saveVersioned(ctx, r.db, &models.MovementModel{}, "movement "+record.ReferenceNumber, record.ID, record.Version,
		map[string]interface{}{
			"status":           string(record.Status),
			"quantity_before":  record.QuantityBefore,
			"quantity_after":   record.QuantityAfter,
			"approved_by":      record.ApprovedBy,
			"approved_at":      record.ApprovedAt,
			"applied_at":       record.AppliedAt,
			"rejected_by":      record.RejectedBy,
			"rejected_at":      record.RejectedAt,
			"rejection_reason": record.RejectionReason,
			"updated_at":       record.UpdatedAt,
		})
	if err != nil {
		return err
	}
	record.Version++
	return nil
}

// FindByID finds a movement by ID
func (r *GormMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.MovementRecord, error) {
	var model models.MovementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByReference finds a movement by its reference number
func (r *GormMovementRepository) FindByReference(ctx context.Context, reference string) (*inventory.MovementRecord, error) {
	var model models.MovementModel
	if err := r.db.WithContext(ctx).First(&model, "reference_number = ?", reference).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// ExistsByReference checks whether a reference number is taken
func (r *GormMovementRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MovementModel{}).
		Where("reference_number = ?", reference).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns records matching the filter
func (r *GormMovementRepository) List(ctx context.Context, filter inventory.MovementFilter) ([]inventory.MovementRecord, int64, error) {
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
		if filter.MovementType != nil {
			db = db.Where("movement_type = ?", string(*filter.MovementType))
		}
		if filter.From != nil {
			db = db.Where("created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("created_at < ?", *filter.To)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.MovementModel{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MovementModel
	query := applyPaging(r.db.WithContext(ctx).Scopes(where), filter.Filter, MovementSortFields)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]inventory.MovementRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, total, nil
}

// SumApplied sums quantity_moved of applied records for a position
func (r *GormMovementRepository) SumApplied(ctx context.Context, key inventory.PositionKey) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.MovementModel{}).
		Select("COALESCE(SUM(quantity_moved), 0) as total").
		Where("product_id = ? AND warehouse_id = ? AND status = ?",
			key.ProductID, key.WarehouseID, string(inventory.MovementStatusApplied)).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Ensure GormMovementRepository implements MovementRepository
var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
