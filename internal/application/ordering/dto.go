package ordering

import (
	"strings"
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Commands
// ============================================================================

// OrderLineCommand is one requested line of a placement
type OrderLineCommand struct {
	MenuItemID uuid.UUID
	Quantity   int
}

// PlaceOrderCommand carries a raw placement request
type PlaceOrderCommand struct {
	ParentID       uuid.UUID
	StudentID      uuid.UUID
	CanteenID      uuid.UUID
	FulfilmentDate time.Time
	Items          []OrderLineCommand
	IdempotencyKey string
	// CorrelationID tags log lines for this request; optional
	CorrelationID string
}

// key returns the trimmed idempotency key, nil when absent
func (c PlaceOrderCommand) key() *string {
	k := strings.TrimSpace(c.IdempotencyKey)
	if k == "" {
		return nil
	}
	return &k
}

// lines validates the request shape and merges repeated menu items
func (c PlaceOrderCommand) lines() ([]ordering.OrderLine, error) {
	if c.ParentID == uuid.Nil || c.StudentID == uuid.Nil || c.CanteenID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Parent, student and canteen are required")
	}
	if c.FulfilmentDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Fulfilment date is required")
	}
	if len(c.Items) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order must contain at least one item")
	}
	lines := make([]ordering.OrderLine, 0, len(c.Items))
	for _, item := range c.Items {
		if item.MenuItemID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "Menu item is required")
		}
		if item.Quantity < 1 {
			return nil, shared.NewDomainError("INVALID_INPUT", "Quantity must be at least 1")
		}
		lines = append(lines, ordering.OrderLine{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}
	return ordering.MergeLines(lines), nil
}

// OrderListFilter narrows ListOrders
type OrderListFilter struct {
	Page           int
	PageSize       int
	OrderBy        string
	OrderDir       string
	ParentID       *uuid.UUID
	StudentID      *uuid.UUID
	CanteenID      *uuid.UUID
	Status         *ordering.OrderStatus
	FulfilmentDate *time.Time
}

func (f OrderListFilter) toDomain() ordering.OrderFilter {
	filter := ordering.OrderFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		}.Normalize(),
		ParentID:  f.ParentID,
		StudentID: f.StudentID,
		CanteenID: f.CanteenID,
		Status:    f.Status,
	}
	if f.FulfilmentDate != nil {
		d := ordering.CivilDate(*f.FulfilmentDate)
		filter.FulfilmentDate = &d
	}
	return filter
}

// ============================================================================
// Views
// ============================================================================

// OrderItemView is a line item with its menu item's current name and price
type OrderItemView struct {
	ID            uuid.UUID       `json:"id"`
	MenuItemID    uuid.UUID       `json:"menu_item_id"`
	MenuItemName  string          `json:"menu_item_name"`
	MenuItemPrice decimal.Decimal `json:"menu_item_price"`
	Quantity      int             `json:"quantity"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// OrderView is an order as returned to callers
type OrderView struct {
	ID             uuid.UUID       `json:"id"`
	ParentID       uuid.UUID       `json:"parent_id"`
	ParentName     string          `json:"parent_name"`
	StudentID      uuid.UUID       `json:"student_id"`
	StudentName    string          `json:"student_name"`
	CanteenID      uuid.UUID       `json:"canteen_id"`
	CanteenName    string          `json:"canteen_name"`
	FulfilmentDate string          `json:"fulfilment_date"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Version        int             `json:"version"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Items          []OrderItemView `json:"order_items"`
}

// PlacementResult is the outcome of PlaceOrder
type PlacementResult struct {
	Order *OrderView
	// Replayed is true when the idempotency key resolved to an existing order
	Replayed bool
}

// orderContext holds the entities an order view is rendered from.
// Any of them may be nil when the referenced row has since vanished.
type orderContext struct {
	parent  *ordering.Parent
	student *ordering.Student
	canteen *ordering.Canteen
	menu    ordering.Menu
}

// toOrderView renders an order against its related entities
func toOrderView(order *ordering.Order, oc orderContext) *OrderView {
	view := &OrderView{
		ID:             order.ID,
		ParentID:       order.ParentID,
		StudentID:      order.StudentID,
		CanteenID:      order.CanteenID,
		FulfilmentDate: order.FulfilmentDate.Format(time.DateOnly),
		Status:         order.Status.String(),
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
		IdempotencyKey: order.IdempotencyKey,
		Version:        order.Version,
		TotalAmount:    decimal.Zero,
		Items:          make([]OrderItemView, 0, len(order.Items)),
	}
	if oc.parent != nil {
		view.ParentName = oc.parent.Name
	}
	if oc.student != nil {
		view.StudentName = oc.student.Name
	}
	if oc.canteen != nil {
		view.CanteenName = oc.canteen.Name
	}

	for _, item := range order.Items {
		iv := OrderItemView{
			ID:            item.ID,
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			MenuItemPrice: decimal.Zero,
			LineTotal:     decimal.Zero,
		}
		if menuItem, ok := oc.menu[item.MenuItemID]; ok {
			iv.MenuItemName = menuItem.Name
			iv.MenuItemPrice = menuItem.Price
			iv.LineTotal = item.LineTotal(menuItem.Price)
		}
		view.TotalAmount = view.TotalAmount.Add(iv.LineTotal)
		view.Items = append(view.Items, iv)
	}
	return view
}
