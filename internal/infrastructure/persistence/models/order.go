package models

import (
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/google/uuid"
)

// OrderModel is the persistence model for the Order aggregate root.
// The order total is derived from current menu prices and has no column.
type OrderModel struct {
	VersionedModel
	ParentID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	StudentID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	CanteenID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	FulfilmentDate time.Time            `gorm:"type:date;not null;index"`
	Status         ordering.OrderStatus `gorm:"type:varchar(20);not null;default:'PLACED'"`
	IdempotencyKey *string              `gorm:"type:varchar(100);uniqueIndex:idx_orders_idempotency_key"`
	Items          []OrderItemModel     `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *ordering.Order {
	order := &ordering.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ParentID:          m.ParentID,
		StudentID:         m.StudentID,
		CanteenID:         m.CanteenID,
		FulfilmentDate:    ordering.CivilDate(m.FulfilmentDate),
		Status:            m.Status,
		IdempotencyKey:    m.IdempotencyKey,
		Items:             make([]ordering.OrderItem, len(m.Items)),
	}
	for i, item := range m.Items {
		order.Items[i] = item.ToDomain()
	}
	return order
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *ordering.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.ParentID = o.ParentID
	m.StudentID = o.StudentID
	m.CanteenID = o.CanteenID
	m.FulfilmentDate = ordering.CivilDate(o.FulfilmentDate)
	m.Status = o.Status
	m.IdempotencyKey = o.IdempotencyKey
	m.Items = make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		m.Items[i] = OrderItemModel{
			ID:         item.ID,
			OrderID:    o.ID,
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			LineNo:     i + 1,
		}
	}
}

// OrderModelFromDomain creates a persistence model from a domain Order
func OrderModelFromDomain(o *ordering.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for OrderItem
type OrderItemModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	MenuItemID uuid.UUID `gorm:"type:uuid;not null;index"`
	Quantity   int       `gorm:"not null"`
	// LineNo keeps lines in request order
	LineNo int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem
func (m *OrderItemModel) ToDomain() ordering.OrderItem {
	return ordering.OrderItem{
		ID:         m.ID,
		OrderID:    m.OrderID,
		MenuItemID: m.MenuItemID,
		Quantity:   m.Quantity,
	}
}

// AllModels lists every model in dependency order, for AutoMigrate
func AllModels() []any {
	return []any{
		&ParentModel{},
		&StudentModel{},
		&CanteenModel{},
		&MenuItemModel{},
		&OrderModel{},
		&OrderItemModel{},
	}
}
