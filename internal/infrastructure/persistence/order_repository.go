package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderRepository implements ordering.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds the order holding key
func (r *GormOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*ordering.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("idempotency_key = ?", key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Insert creates the order row and its item rows
func (r *GormOrderRepository) Insert(ctx context.Context, order *ordering.Order) error {
	model := models.OrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateIdempotencyKey(err) {
			return ordering.ErrDuplicateIdempotencyKey
		}
		return err
	}
	return nil
}

// Update writes the order status with an optimistic version check
func (r *GormOrderRepository) Update(ctx context.Context, order *ordering.Order) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":     order.Status,
			"version":    order.Version + 1,
			"updated_at": order.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	order.Version++
	return nil
}

// List returns one page of orders matching filter with the total count
func (r *GormOrderRepository) List(ctx context.Context, filter ordering.OrderFilter) ([]*ordering.Order, int64, error) {
	filter.Filter = filter.Filter.Normalize()
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var rows []models.OrderModel
	err := query.
		Preload("Items", preloadItems).
		Order(fmt.Sprintf("%s %s, id ASC", sortField, sortOrder)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	orders := make([]*ordering.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, total, nil
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter ordering.OrderFilter) *gorm.DB {
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CanteenID != nil {
		query = query.Where("canteen_id = ?", *filter.CanteenID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FulfilmentDate != nil {
		query = query.Where("fulfilment_date = ?", ordering.CivilDate(*filter.FulfilmentDate))
	}
	return query
}
