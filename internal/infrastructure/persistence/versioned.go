package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// saveVersioned updates one row when its stored version equals version and
// increments the stored version. model selects the table.
func saveVersioned(ctx context.Context, db *gorm.DB, model interface{}, entity string, id uuid.UUID, version int, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	result := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrentModification(entity)
	}
	return nil
}
