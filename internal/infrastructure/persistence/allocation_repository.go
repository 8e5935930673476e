package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create inserts a new order line allocation
func (r *GormAllocationRepository) Create(ctx context.Context, item *inventory.OrderItemAllocation) error {
	if err := r.db.WithContext(ctx).Create(models.AllocationModelFromDomain(item)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// SaveWithLock persists a state transition with optimistic locking
func (r *GormAllocationRepository) SaveWithLock(ctx context.Context, item *inventory.OrderItemAllocation) error {
	err := saveVersioned(ctx, r.db, &models.AllocationModel{}, "allocation "+item.ID.String(), item.ID, item.Version,
		map[string]interface{}{
			"warehouse_id":          item.WarehouseID,
			"allocated_quantity":    item.AllocatedQuantity,
			"quantity_fulfilled":    item.QuantityFulfilled,
			"quantity_shipped":      item.QuantityShipped,
			"quantity_backordered":  item.QuantityBackordered,
			"allocation_expires_at": item.AllocationExpiresAt,
			"status":                string(item.Status),
			"last_allocated_at":     item.LastAllocatedAt,
			"released_at":           item.ReleasedAt,
			"updated_at":            item.UpdatedAt,
		})
	if err != nil {
		return err
	}
	item.Version++
	return nil
}

// FindByID finds an allocation by ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.OrderItemAllocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByOrderLine finds the allocation of one sales-order line
func (r *GormAllocationRepository) FindByOrderLine(ctx context.Context, orderID, lineID uuid.UUID) (*inventory.OrderItemAllocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND line_id = ?", orderID, lineID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindExpired returns allocated lines whose expiry is strictly before now,
// oldest expiry first
func (r *GormAllocationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]inventory.OrderItemAllocation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND requires_allocation = ? AND allocation_expires_at IS NOT NULL AND allocation_expires_at < ?",
			string(inventory.AllocationStatusAllocated), true, now).
		Order("allocation_expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.AllocationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]inventory.OrderItemAllocation, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ inventory.AllocationRepository = (*GormAllocationRepository)(nil)
