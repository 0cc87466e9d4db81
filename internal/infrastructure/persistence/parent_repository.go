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

// GormParentRepository implements ordering.ParentRepository using GORM
type GormParentRepository struct {
	db *gorm.DB
}

// NewGormParentRepository creates a new GormParentRepository
func NewGormParentRepository(db *gorm.DB) *GormParentRepository {
	return &GormParentRepository{db: db}
}

// FindByID finds a parent by ID
func (r *GormParentRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Parent, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a parent and locks its row (SELECT ... FOR UPDATE)
func (r *GormParentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ordering.Parent, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormParentRepository) find(db *gorm.DB, id uuid.UUID) (*ordering.Parent, error) {
	var model models.ParentModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update writes the wallet balance with an optimistic version check
func (r *GormParentRepository) Update(ctx context.Context, parent *ordering.Parent) error {
	result := r.db.WithContext(ctx).
		Model(&models.ParentModel{}).
		Where("id = ? AND version = ?", parent.ID, parent.Version).
		Updates(map[string]any{
			"wallet_balance": parent.WalletBalance,
			"version":        parent.Version + 1,
			"updated_at":     parent.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	parent.Version++
	return nil
}
