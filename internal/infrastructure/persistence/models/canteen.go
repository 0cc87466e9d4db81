package models

import (
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParentModel is the persistence model for Parent
type ParentModel struct {
	VersionedModel
	Name          string          `gorm:"type:varchar(200);not null"`
	Email         string          `gorm:"type:varchar(320);not null;uniqueIndex:idx_parents_email"`
	WalletBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (ParentModel) TableName() string {
	return "parents"
}

// ToDomain converts the persistence model to a domain Parent
func (m *ParentModel) ToDomain() *ordering.Parent {
	return &ordering.Parent{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		Email:         m.Email,
		WalletBalance: m.WalletBalance,
		Version:       m.Version,
	}
}

// ParentModelFromDomain creates a persistence model from a domain Parent
func ParentModelFromDomain(p *ordering.Parent) *ParentModel {
	m := &ParentModel{
		Name:          p.Name,
		Email:         p.Email,
		WalletBalance: p.WalletBalance,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Version = p.Version
	return m
}

// StudentModel is the persistence model for Student
type StudentModel struct {
	BaseModel
	ParentID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(200);not null"`
	// Allergens is a comma separated tag list
	Allergens *string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// ToDomain converts the persistence model to a domain Student
func (m *StudentModel) ToDomain() *ordering.Student {
	return &ordering.Student{
		BaseEntity: m.BaseModel.ToDomain(),
		ParentID:   m.ParentID,
		Name:       m.Name,
		Allergens:  splitTags(m.Allergens),
	}
}

// StudentModelFromDomain creates a persistence model from a domain Student
func StudentModelFromDomain(s *ordering.Student) *StudentModel {
	m := &StudentModel{
		ParentID:  s.ParentID,
		Name:      s.Name,
		Allergens: joinTags(s.Allergens),
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// CanteenModel is the persistence model for Canteen
type CanteenModel struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null"`
	// OpeningDays is a comma separated weekday list
	OpeningDays     *string `gorm:"type:varchar(100)"`
	OrderCutOffTime *string `gorm:"type:varchar(8)"`
}

// TableName returns the table name for GORM
func (CanteenModel) TableName() string {
	return "canteens"
}

// ToDomain converts the persistence model to a domain Canteen
func (m *CanteenModel) ToDomain() *ordering.Canteen {
	return &ordering.Canteen{
		BaseEntity:      m.BaseModel.ToDomain(),
		Name:            m.Name,
		OpeningDays:     splitTags(m.OpeningDays),
		OrderCutOffTime: m.OrderCutOffTime,
	}
}

// CanteenModelFromDomain creates a persistence model from a domain Canteen
func CanteenModelFromDomain(c *ordering.Canteen) *CanteenModel {
	m := &CanteenModel{
		Name:            c.Name,
		OpeningDays:     joinTags(c.OpeningDays),
		OrderCutOffTime: c.OrderCutOffTime,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// MenuItemModel is the persistence model for MenuItem
type MenuItemModel struct {
	VersionedModel
	CanteenID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Description *string         `gorm:"type:varchar(1000)"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	// DailyStockCount is NULL for unlimited items
	DailyStockCount *int
	AllergenTags    *string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (MenuItemModel) TableName() string {
	return "menu_items"
}

// ToDomain converts the persistence model to a domain MenuItem
func (m *MenuItemModel) ToDomain() *ordering.MenuItem {
	return &ordering.MenuItem{
		BaseEntity:      m.BaseModel.ToDomain(),
		CanteenID:       m.CanteenID,
		Name:            m.Name,
		Description:     m.Description,
		Price:           m.Price,
		DailyStockCount: m.DailyStockCount,
		AllergenTags:    splitTags(m.AllergenTags),
		Version:         m.Version,
	}
}

// MenuItemModelFromDomain creates a persistence model from a domain MenuItem
func MenuItemModelFromDomain(item *ordering.MenuItem) *MenuItemModel {
	m := &MenuItemModel{
		CanteenID:       item.CanteenID,
		Name:            item.Name,
		Description:     item.Description,
		Price:           item.Price,
		DailyStockCount: item.DailyStockCount,
		AllergenTags:    joinTags(item.AllergenTags),
	}
	m.FromDomainBaseEntity(item.BaseEntity)
	m.Version = item.Version
	return m
}

func splitTags(raw *string) []string {
	if raw == nil {
		return nil
	}
	return ordering.ParseTags(*raw)
}

func joinTags(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	joined := ordering.JoinTags(tags)
	return &joined
}
