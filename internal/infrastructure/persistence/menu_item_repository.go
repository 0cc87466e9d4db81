package persistence

import (
	"context"
	"errors"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMenuItemRepository implements ordering.MenuItemRepository using GORM
type GormMenuItemRepository struct {
	db *gorm.DB
}

// NewGormMenuItemRepository creates a new GormMenuItemRepository
func NewGormMenuItemRepository(db *gorm.DB) *GormMenuItemRepository {
	return &GormMenuItemRepository{db: db}
}

// FindByID finds a menu item by ID
func (r *GormMenuItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.MenuItem, error) {
	var model models.MenuItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds the menu items that exist among ids
func (r *GormMenuItemRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*ordering.MenuItem, error) {
	return r.findMany(r.db.WithContext(ctx), ids)
}

// FindByIDsForUpdate finds menu items and locks their rows.
// Rows are locked in id order so concurrent placements cannot deadlock on each other.
func (r *GormMenuItemRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*ordering.MenuItem, error) {
	return r.findMany(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ids)
}

func (r *GormMenuItemRepository) findMany(db *gorm.DB, ids []uuid.UUID) ([]*ordering.MenuItem, error) {
	if len(ids) == 0 {
		return []*ordering.MenuItem{}, nil
	}
	var rows []models.MenuItemModel
	if err := db.Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]*ordering.MenuItem, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// Update writes the stock counter with an optimistic version check
func (r *GormMenuItemRepository) Update(ctx context.Context, item *ordering.MenuItem) error {
	result := r.db.WithContext(ctx).
		Model(&models.MenuItemModel{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]any{
			"daily_stock_count": item.DailyStockCount,
			"version":           item.Version + 1,
			"updated_at":        item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	item.Version++
	return nil
}
