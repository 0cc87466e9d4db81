package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedNamespace roots the deterministic reference data ids
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("canteen.local"))

// Seed entity kinds
const (
	SeedParent   = "parent"
	SeedStudent  = "student"
	SeedCanteen  = "canteen"
	SeedMenuItem = "menu_item"
)

// SeedID returns the stable id of the n-th seeded entity of kind
func SeedID(kind string, n int) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+strconv.Itoa(n)))
}

// SeedData is the reference data set loaded by Seed
type SeedData struct {
	Parents   []*ordering.Parent
	Students  []*ordering.Student
	Canteens  []*ordering.Canteen
	MenuItems []*ordering.MenuItem
}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// ReferenceData builds the reference parents, students, canteens and menu
func ReferenceData(now time.Time) SeedData {
	base := func(kind string, n int) shared.BaseEntity {
		return shared.BaseEntity{ID: SeedID(kind, n), CreatedAt: now, UpdatedAt: now}
	}
	parent := func(n int, name, email, balance string) *ordering.Parent {
		return &ordering.Parent{
			BaseEntity:    base(SeedParent, n),
			Name:          name,
			Email:         email,
			WalletBalance: decimal.RequireFromString(balance),
			Version:       1,
		}
	}
	student := func(n, parentN int, name string, allergens ...string) *ordering.Student {
		return &ordering.Student{
			BaseEntity: base(SeedStudent, n),
			ParentID:   SeedID(SeedParent, parentN),
			Name:       name,
			Allergens:  allergens,
		}
	}
	canteen := func(n int, name, cutOff string, days []string) *ordering.Canteen {
		return &ordering.Canteen{
			BaseEntity:      base(SeedCanteen, n),
			Name:            name,
			OpeningDays:     days,
			OrderCutOffTime: &cutOff,
		}
	}
	item := func(n, canteenN int, name, description, price string, stock int, tags ...string) *ordering.MenuItem {
		return &ordering.MenuItem{
			BaseEntity:      base(SeedMenuItem, n),
			CanteenID:       SeedID(SeedCanteen, canteenN),
			Name:            name,
			Description:     &description,
			Price:           decimal.RequireFromString(price),
			DailyStockCount: &stock,
			AllergenTags:    tags,
			Version:         1,
		}
	}

	return SeedData{
		Parents: []*ordering.Parent{
			parent(1, "John Smith", "john.smith@email.com", "50.00"),
			parent(2, "Sarah Jones", "sarah.jones@email.com", "25.50"),
			parent(3, "Mike Wilson", "mike.wilson@email.com", "100.00"),
		},
		Canteens: []*ordering.Canteen{
			canteen(1, "Primary School Canteen", "09:30", weekdays),
			canteen(2, "High School Canteen", "08:45", weekdays),
			canteen(3, "Sports Canteen", "10:00", []string{"Monday", "Wednesday", "Friday"}),
		},
		Students: []*ordering.Student{
			student(1, 1, "Emma Smith", "nuts"),
			student(2, 1, "Liam Smith"),
			student(3, 2, "Sophie Jones", "dairy", "eggs"),
			student(4, 3, "Oliver Wilson", "gluten"),
		},
		MenuItems: []*ordering.MenuItem{
			item(1, 1, "Chicken Sandwich", "Fresh chicken breast with lettuce and mayo", "6.50", 20, "gluten", "dairy"),
			item(2, 1, "Veggie Wrap", "Mixed vegetables in a tortilla wrap", "5.00", 15, "gluten"),
			item(3, 1, "Fruit Salad", "Seasonal fresh fruits", "4.00", 25),
			item(4, 2, "Pizza Slice", "Margherita pizza slice", "4.50", 30, "gluten", "dairy"),
			item(5, 2, "Caesar Salad", "Romaine lettuce with caesar dressing", "7.00", 12, "dairy", "eggs"),
			item(6, 3, "Energy Bar", "Granola and nuts energy bar", "3.50", 40, "nuts"),
			item(7, 3, "Smoothie", "Mixed berry smoothie", "5.50", 20, "dairy"),
		},
	}
}

// Seed inserts data, leaving rows that already exist untouched
func Seed(ctx context.Context, db *gorm.DB, data SeedData) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := func(row any) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
		}
		for _, p := range data.Parents {
			if err := insert(models.ParentModelFromDomain(p)); err != nil {
				return fmt.Errorf("seed parent %s: %w", p.Name, err)
			}
		}
		for _, c := range data.Canteens {
			if err := insert(models.CanteenModelFromDomain(c)); err != nil {
				return fmt.Errorf("seed canteen %s: %w", c.Name, err)
			}
		}
		for _, s := range data.Students {
			if err := insert(models.StudentModelFromDomain(s)); err != nil {
				return fmt.Errorf("seed student %s: %w", s.Name, err)
			}
		}
		for _, m := range data.MenuItems {
			if err := insert(models.MenuItemModelFromDomain(m)); err != nil {
				return fmt.Errorf("seed menu item %s: %w", m.Name, err)
			}
		}
		return nil
	})
}
