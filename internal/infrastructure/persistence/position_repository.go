package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPositionRepository implements PositionRepository using GORM
type GormPositionRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormPositionRepository creates a new GormPositionRepository
func NewGormPositionRepository(db *gorm.DB) *GormPositionRepository {
	return &GormPositionRepository{db: db}
}

// WithLockTimeout bounds row-lock waits taken by GetForUpdate on PostgreSQL
func (r *GormPositionRepository) WithLockTimeout(timeout time.Duration) *GormPositionRepository {
	r.lockTimeout = timeout
	return r
}

// GetOrCreate returns the position for key, inserting a zeroed one if absent
func (r *GormPositionRepository) GetOrCreate(ctx context.Context, key inventory.PositionKey) (*inventory.InventoryPosition, error) {
	return r.getOrCreate(ctx, key, false)
}

// GetForUpdate is GetOrCreate plus SELECT ... FOR UPDATE on PostgreSQL.
// SQLite serialises writers on its own and takes no row lock.
func (r *GormPositionRepository) GetForUpdate(ctx context.Context, key inventory.PositionKey) (*inventory.InventoryPosition, error) {
	if r.isPostgres() && r.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if err := r.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return nil, translateError(err)
		}
	}
	return r.getOrCreate(ctx, key, true)
}

func (r *GormPositionRepository) getOrCreate(ctx context.Context, key inventory.PositionKey, forUpdate bool) (*inventory.InventoryPosition, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	model, err := r.findByKey(ctx, key, forUpdate)
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translateError(err)
	}

	position, err := inventory.NewInventoryPosition(key, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	created := models.PositionModelFromDomain(position)

	// A concurrent first reference may win the insert; read its row instead.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}},
			DoNothing: true,
		}).
		Create(created)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	if result.RowsAffected == 1 {
		return position, nil
	}

	model, err = r.findByKey(ctx, key, forUpdate)
	if err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

func (r *GormPositionRepository) findByKey(ctx context.Context, key inventory.PositionKey, forUpdate bool) (*models.PositionModel, error) {
	query := r.db.WithContext(ctx)
	if forUpdate && r.isPostgres() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.PositionModel
	if err := query.
		Where("product_id = ? AND warehouse_id = ?", key.ProductID, key.WarehouseID).
		First(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

// ApplyDelta adds delta to the stored position when its version still equals
// expectedVersion. The write is a compare-and-swap on the version column.
func (r *GormPositionRepository) ApplyDelta(ctx context.Context, key inventory.PositionKey, delta inventory.PositionDelta, expectedVersion int) (*inventory.InventoryPosition, error) {
	model, err := r.findByKey(ctx, key, false)
	if err != nil {
		return nil, translateError(err)
	}
	if model.Version != expectedVersion {
		return nil, shared.Errorf(shared.ErrConcurrentModification,
			"position %s is at version %d, expected %d", key.String(), model.Version, expectedVersion)
	}

	position := model.ToDomain()
	if err := position.Apply(delta, time.Now().UTC()); err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Model(&models.PositionModel{}).
		Where("id = ? AND version = ?", position.ID, expectedVersion).
		Updates(map[string]interface{}{
			"quantity_on_hand":  position.QuantityOnHand,
			"quantity_reserved": position.QuantityReserved,
			"version":           position.Version,
			"updated_at":        position.UpdatedAt,
		})
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, concurrentModification("position " + key.String())
	}
	return position, nil
}

// List returns positions matching the filter
func (r *GormPositionRepository) List(ctx context.Context, filter inventory.PositionFilter) ([]inventory.InventoryPosition, int64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if filter.ProductID != nil {
			db = db.Where("product_id = ?", *filter.ProductID)
		}
		if filter.WarehouseID != nil {
			db = db.Where("warehouse_id = ?", *filter.WarehouseID)
		}
		if filter.OnlyReserved {
			db = db.Where("quantity_reserved > 0")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PositionModel{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PositionModel
	query := applyPaging(r.db.WithContext(ctx).Scopes(where), filter.Filter, PositionSortFields)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	positions := make([]inventory.InventoryPosition, len(rows))
	for i := range rows {
		positions[i] = *rows[i].ToDomain()
	}
	return positions, total, nil
}

// ReservedByWarehouse returns the total reserved quantity per warehouse
func (r *GormPositionRepository) ReservedByWarehouse(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []struct {
		WarehouseID uuid.UUID
		Total       decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PositionModel{}).
		Select("warehouse_id, COALESCE(SUM(quantity_reserved), 0) as total").
		Group("warehouse_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.WarehouseID] = row.Total
	}
	return totals, nil
}

func (r *GormPositionRepository) isPostgres() bool {
	return r.db.Dialector != nil && r.db.Dialector.Name() == "postgres"
}

// applyPaging orders and pages a query using a whitelisted sort field
func applyPaging(query *gorm.DB, filter shared.Filter, sortFields map[string]bool) *gorm.DB {
	orderBy := ValidateSortField(filter.OrderBy, sortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)
	if !strings.EqualFold(orderBy, "id") {
		query = query.Order("id " + orderDir)
	}
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// Ensure GormPositionRepository implements PositionRepository
var _ inventory.PositionRepository = (*GormPositionRepository)(nil)
