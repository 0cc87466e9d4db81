package ordering

import (
	"fmt"
	"strings"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxIdempotencyKeyLength bounds client supplied idempotency keys
const MaxIdempotencyKeyLength = 100

// OrderStatus represents the lifecycle state of a canteen order
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusFulfilled, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further event can leave this state
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusCancelled
}

// ParseOrderStatus parses a status name case-insensitively
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid order status: %s", raw))
	}
	return s, nil
}

// OrderEvent is a lifecycle trigger
type OrderEvent string

const (
	OrderEventConfirm OrderEvent = "confirm"
	OrderEventFulfill OrderEvent = "fulfill"
	OrderEventCancel  OrderEvent = "cancel"
	// OrderEventPlace only happens at creation, so Next never accepts it
	OrderEventPlace OrderEvent = "place"
)

// Next returns the state reached by applying event, or false if the pair is not allowed.
//
//	PLACED    --confirm--> CONFIRMED --fulfill--> FULFILLED
//	PLACED    --cancel---> CANCELLED
//	CONFIRMED --cancel---> CANCELLED
func (s OrderStatus) Next(event OrderEvent) (OrderStatus, bool) {
	switch event {
	case OrderEventConfirm:
		if s == OrderStatusPlaced {
			return OrderStatusConfirmed, true
		}
	case OrderEventFulfill:
		if s == OrderStatusConfirmed {
			return OrderStatusFulfilled, true
		}
	case OrderEventCancel:
		if s == OrderStatusPlaced || s == OrderStatusConfirmed {
			return OrderStatusCancelled, true
		}
	}
	return "", false
}

// EventForTarget maps a requested target state to the event that reaches it
func EventForTarget(target OrderStatus) (OrderEvent, bool) {
	switch target {
	case OrderStatusPlaced:
		return OrderEventPlace, true
	case OrderStatusConfirmed:
		return OrderEventConfirm, true
	case OrderStatusFulfilled:
		return OrderEventFulfill, true
	case OrderStatusCancelled:
		return OrderEventCancel, true
	}
	return "", false
}

// OrderLine is a requested (menu item, quantity) pair
type OrderLine struct {
	MenuItemID uuid.UUID
	Quantity   int
}

// OrderItem is a line item owned by an order
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int
}

// LineTotal returns quantity x the item's current price
func (i OrderItem) LineTotal(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root for a parent's meal order for one student at one canteen.
// Its total is never stored; see TotalAmount.
type Order struct {
	shared.BaseAggregateRoot
	ParentID       uuid.UUID
	StudentID      uuid.UUID
	CanteenID      uuid.UUID
	FulfilmentDate time.Time
	Status         OrderStatus
	IdempotencyKey *string
	Items          []OrderItem
}

// NewOrder creates an order in PLACED state
func NewOrder(parentID, studentID, canteenID uuid.UUID, fulfilmentDate time.Time, lines []OrderLine, idempotencyKey *string, now time.Time) (*Order, error) {
	if parentID == uuid.Nil || studentID == uuid.Nil || canteenID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Parent, student and canteen are required")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order must contain at least one item")
	}
	if err := ValidateIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}

	order := &Order{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.NewBaseEntity(now),
			Version:    1,
		},
		ParentID:       parentID,
		StudentID:      studentID,
		CanteenID:      canteenID,
		FulfilmentDate: CivilDate(fulfilmentDate),
		Status:         OrderStatusPlaced,
		IdempotencyKey: idempotencyKey,
		Items:          make([]OrderItem, 0, len(lines)),
	}

	for _, line := range lines {
		if line.MenuItemID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "Menu item is required")
		}
		if line.Quantity < 1 {
			return nil, shared.NewDomainError("INVALID_INPUT", "Quantity must be at least 1")
		}
		order.Items = append(order.Items, OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
		})
	}

	order.AddDomainEvent(NewOrderPlacedEvent(order))
	return order, nil
}

// ValidateIdempotencyKey enforces the key length bound
func ValidateIdempotencyKey(key *string) error {
	if key != nil && len(*key) > MaxIdempotencyKeyLength {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Idempotency key cannot exceed %d characters", MaxIdempotencyKeyLength))
	}
	return nil
}

// Apply fires a lifecycle event, stamping UpdatedAt on success
func (o *Order) Apply(event OrderEvent, now time.Time) error {
	next, ok := o.Status.Next(event)
	if !ok {
		return NewInvalidTransitionError(o.Status, event)
	}
	o.Status = next
	o.Touch(now)

	switch next {
	case OrderStatusConfirmed:
		o.AddDomainEvent(NewOrderConfirmedEvent(o))
	case OrderStatusFulfilled:
		o.AddDomainEvent(NewOrderFulfilledEvent(o))
	case OrderStatusCancelled:
		o.AddDomainEvent(NewOrderCancelledEvent(o))
	}
	return nil
}

// Confirm moves a placed order to CONFIRMED
func (o *Order) Confirm(now time.Time) error {
	return o.Apply(OrderEventConfirm, now)
}

// Fulfill moves a confirmed order to FULFILLED
func (o *Order) Fulfill(now time.Time) error {
	return o.Apply(OrderEventFulfill, now)
}

// Cancel moves a placed or confirmed order to CANCELLED
func (o *Order) Cancel(now time.Time) error {
	return o.Apply(OrderEventCancel, now)
}

// TransitionTo moves the order to target through the matching event
func (o *Order) TransitionTo(target OrderStatus, now time.Time) error {
	event, ok := EventForTarget(target)
	if !ok {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid order status: %s", target))
	}
	return o.Apply(event, now)
}

// TotalAmount sums quantity x current price over the line items
func (o *Order) TotalAmount(menu Menu) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range o.Items {
		price, ok := menu.Price(item.MenuItemID)
		if !ok {
			return decimal.Zero, NewNotFoundError(EntityMenuItem, item.MenuItemID)
		}
		total = total.Add(item.LineTotal(price))
	}
	return total, nil
}

// MenuItemIDs returns the distinct menu items referenced by the order, in line order
func (o *Order) MenuItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	seen := make(map[uuid.UUID]struct{}, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.MenuItemID]; ok {
			continue
		}
		seen[item.MenuItemID] = struct{}{}
		ids = append(ids, item.MenuItemID)
	}
	return ids
}

// TotalQuantity returns the sum of line quantities
func (o *Order) TotalQuantity() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// IsPlaced returns true if the order is placed
func (o *Order) IsPlaced() bool {
	return o.Status == OrderStatusPlaced
}

// IsConfirmed returns true if the order is confirmed
func (o *Order) IsConfirmed() bool {
	return o.Status == OrderStatusConfirmed
}

// IsFulfilled returns true if the order is fulfilled
func (o *Order) IsFulfilled() bool {
	return o.Status == OrderStatusFulfilled
}

// IsCancelled returns true if the order is cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// MergeLines folds repeated menu items into a single line, keeping first-seen order
func MergeLines(lines []OrderLine) []OrderLine {
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.MenuItemID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.MenuItemID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// CivilDate truncates t to midnight UTC of its calendar date, dropping the
// clock and zone so fulfilment dates compare as plain dates
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
