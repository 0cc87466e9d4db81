package persistence

import (
	"context"
	"errors"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCanteenRepository implements ordering.CanteenRepository using GORM
type GormCanteenRepository struct {
	db *gorm.DB
}

// NewGormCanteenRepository creates a new GormCanteenRepository
func NewGormCanteenRepository(db *gorm.DB) *GormCanteenRepository {
	return &GormCanteenRepository{db: db}
}

// FindByID finds a canteen by ID
func (r *GormCanteenRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Canteen, error) {
	var model models.CanteenModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
