package ordering

import (
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderPlaced    = "OrderPlaced"
	EventTypeOrderConfirmed = "OrderConfirmed"
	EventTypeOrderFulfilled = "OrderFulfilled"
	EventTypeOrderCancelled = "OrderCancelled"
)

// OrderItemInfo describes a line item inside an event payload
type OrderItemInfo struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
}

// OrderPlacedEvent is raised when a new order is created
type OrderPlacedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID       `json:"order_id"`
	ParentID       uuid.UUID       `json:"parent_id"`
	StudentID      uuid.UUID       `json:"student_id"`
	CanteenID      uuid.UUID       `json:"canteen_id"`
	FulfilmentDate string          `json:"fulfilment_date"`
	Items          []OrderItemInfo `json:"items"`
}

// NewOrderPlacedEvent creates a new OrderPlacedEvent
func NewOrderPlacedEvent(order *Order) *OrderPlacedEvent {
	items := make([]OrderItemInfo, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemInfo{MenuItemID: item.MenuItemID, Quantity: item.Quantity}
	}
	return &OrderPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPlaced, AggregateTypeOrder, order.ID, order.UpdatedAt),
		OrderID:         order.ID,
		ParentID:        order.ParentID,
		StudentID:       order.StudentID,
		CanteenID:       order.CanteenID,
		FulfilmentDate:  order.FulfilmentDate.Format("2006-01-02"),
		Items:           items,
	}
}

// EventType returns the event type name
func (e *OrderPlacedEvent) EventType() string {
	return EventTypeOrderPlaced
}

// OrderStatusChangedEvent carries the fields shared by lifecycle events
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID   `json:"order_id"`
	CanteenID uuid.UUID   `json:"canteen_id"`
	Status    OrderStatus `json:"status"`
}

func newStatusChanged(eventType string, order *Order) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, order.ID, order.UpdatedAt),
		OrderID:         order.ID,
		CanteenID:       order.CanteenID,
		Status:          order.Status,
	}
}

// OrderConfirmedEvent is raised when an order is confirmed
type OrderConfirmedEvent struct {
	OrderStatusChangedEvent
}

// NewOrderConfirmedEvent creates a new OrderConfirmedEvent
func NewOrderConfirmedEvent(order *Order) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{OrderStatusChangedEvent: newStatusChanged(EventTypeOrderConfirmed, order)}
}

// EventType returns the event type name
func (e *OrderConfirmedEvent) EventType() string {
	return EventTypeOrderConfirmed
}

// OrderFulfilledEvent is raised when an order has been served
type OrderFulfilledEvent struct {
	OrderStatusChangedEvent
}

// NewOrderFulfilledEvent creates a new OrderFulfilledEvent
func NewOrderFulfilledEvent(order *Order) *OrderFulfilledEvent {
	return &OrderFulfilledEvent{OrderStatusChangedEvent: newStatusChanged(EventTypeOrderFulfilled, order)}
}

// EventType returns the event type name
func (e *OrderFulfilledEvent) EventType() string {
	return EventTypeOrderFulfilled
}

// OrderCancelledEvent is raised when an order is cancelled
type OrderCancelledEvent struct {
	OrderStatusChangedEvent
}

// NewOrderCancelledEvent creates a new OrderCancelledEvent
func NewOrderCancelledEvent(order *Order) *OrderCancelledEvent {
	return &OrderCancelledEvent{OrderStatusChangedEvent: newStatusChanged(EventTypeOrderCancelled, order)}
}

// EventType returns the event type name
func (e *OrderCancelledEvent) EventType() string {
	return EventTypeOrderCancelled
}
