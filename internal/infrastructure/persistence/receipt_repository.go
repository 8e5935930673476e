package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReceiptRepository implements ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// Create inserts a new purchase-order receipt line
func (r *GormReceiptRepository) Create(ctx context.Context, item *inventory.PurchaseOrderItemReceipt) error {
	if err := r.db.WithContext(ctx).Create(models.ReceiptModelFromDomain(item)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// SaveWithLock persists received quantities with optimistic locking
func (r *GormReceiptRepository) SaveWithLock(ctx context.Context, item *inventory.PurchaseOrderItemReceipt) error {
	err := saveVersioned(ctx, r.db, &models.ReceiptModel{}, "receipt "+item.ID.String(), item.ID, item.Version,
		map[string]interface{}{
			"quantity_received": item.QuantityReceived,
			"quantity_rejected": item.QuantityRejected,
			"backordered":       item.Backordered,
			"cancelled":         item.Cancelled,
			"cancel_reason":     item.CancelReason,
			"status":            string(item.Status()),
			"last_received_at":  item.LastReceivedAt,
			"updated_at":        item.UpdatedAt,
		})
	if err != nil {
		return err
	}
	item.Version++
	return nil
}

// FindByID finds a receipt line by ID
func (r *GormReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.PurchaseOrderItemReceipt, error) {
	var model models.ReceiptModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByPurchaseOrder returns every receipt line of a purchase order
func (r *GormReceiptRepository) FindByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]inventory.PurchaseOrderItemReceipt, error) {
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("purchase_order_id = ?", purchaseOrderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]inventory.PurchaseOrderItemReceipt, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// Ensure GormReceiptRepository implements ReceiptRepository
var _ inventory.ReceiptRepository = (*GormReceiptRepository)(nil)
