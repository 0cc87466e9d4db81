package ordering

import (
	"strings"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Parent owns students and orders and pays for orders from a prepaid wallet
type Parent struct {
	shared.BaseEntity
	Name          string
	Email         string
	WalletBalance decimal.Decimal
	Version       int
}

// Debit takes amount from the wallet. The balance never goes negative.
func (p *Parent) Debit(amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Debit amount cannot be negative")
	}
	if p.WalletBalance.LessThan(amount) {
		return NewInsufficientBalanceError(amount, p.WalletBalance)
	}
	p.WalletBalance = p.WalletBalance.Sub(amount)
	p.Touch(now)
	return nil
}

// Student belongs to one parent and may have recorded allergens
type Student struct {
	shared.BaseEntity
	ParentID  uuid.UUID
	Name      string
	Allergens []string
}

// Canteen sells menu items and may stop taking orders at a daily cut-off
type Canteen struct {
	shared.BaseEntity
	Name        string
	OpeningDays []string
	// OrderCutOffTime is a time of day such as "09:30"; nil means no cut-off
	OrderCutOffTime *string
}

// MenuItem is a priced item sold by one canteen
type MenuItem struct {
	shared.BaseEntity
	CanteenID   uuid.UUID
	Name        string
	Description *string
	Price       decimal.Decimal
	// DailyStockCount is nil when stock is unlimited
	DailyStockCount *int
	AllergenTags    []string
	Version         int
}

// HasStockLimit reports whether the item tracks a daily stock counter
func (m *MenuItem) HasStockLimit() bool {
	return m.DailyStockCount != nil
}

// DecrementStock removes qty from the daily counter. Items without a counter are untouched.
func (m *MenuItem) DecrementStock(qty int, now time.Time) error {
	if m.DailyStockCount == nil {
		return nil
	}
	available := *m.DailyStockCount
	if qty > available {
		return NewInsufficientStockError(m, qty, available)
	}
	remaining := available - qty
	m.DailyStockCount = &remaining
	m.Touch(now)
	return nil
}

// Menu indexes loaded menu items by ID
type Menu map[uuid.UUID]*MenuItem

// NewMenu builds a Menu from a slice of items
func NewMenu(items []*MenuItem) Menu {
	menu := make(Menu, len(items))
	for _, item := range items {
		menu[item.ID] = item
	}
	return menu
}

// Price returns the current price of a menu item
func (m Menu) Price(id uuid.UUID) (decimal.Decimal, bool) {
	item, ok := m[id]
	if !ok {
		return decimal.Zero, false
	}
	return item.Price, true
}

// ParseTags splits a comma separated tag list, trimming blanks and dropping empties
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// JoinTags is the inverse of ParseTags
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// normalizeTags trims and case-folds tags, preserving first-seen order without duplicates
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := strings.ToLower(strings.TrimSpace(t))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
