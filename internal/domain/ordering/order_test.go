package ordering

import (
	"strings"
	"testing"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func createTestOrder(t *testing.T, lines ...OrderLine) *Order {
	if len(lines) == 0 {
		lines = []OrderLine{{MenuItemID: uuid.New(), Quantity: 1}}
	}
	order, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), testNow.AddDate(0, 0, 1), lines, nil, testNow)
	require.NoError(t, err)
	return order
}

// ============================================
// OrderStatus Tests
// ============================================

func TestOrderStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  OrderStatus
		isValid bool
	}{
		{OrderStatusPlaced, true},
		{OrderStatusConfirmed, true},
		{OrderStatusFulfilled, true},
		{OrderStatusCancelled, true},
		{OrderStatus("SHIPPED"), false},
		{OrderStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestOrderStatus_Next(t *testing.T) {
	statuses := []OrderStatus{OrderStatusPlaced, OrderStatusConfirmed, OrderStatusFulfilled, OrderStatusCancelled}
	events := []OrderEvent{OrderEventConfirm, OrderEventFulfill, OrderEventCancel, OrderEventPlace}

	allowed := map[OrderStatus]map[OrderEvent]OrderStatus{
		OrderStatusPlaced: {
			OrderEventConfirm: OrderStatusConfirmed,
			OrderEventCancel:  OrderStatusCancelled,
		},
		OrderStatusConfirmed: {
			OrderEventFulfill: OrderStatusFulfilled,
			OrderEventCancel:  OrderStatusCancelled,
		},
	}

	for _, from := range statuses {
		for _, event := range events {
			t.Run(string(from)+"/"+string(event), func(t *testing.T) {
				next, ok := from.Next(event)
				want, expected := allowed[from][event]
				assert.Equal(t, expected, ok)
				if expected {
					assert.Equal(t, want, next)
				}
			})
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus(" confirmed ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmed, s)

	_, err = ParseOrderStatus("shipped")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ============================================
// Order creation tests
// ============================================

func TestNewOrder(t *testing.T) {
	t.Run("creates placed order with items", func(t *testing.T) {
		itemID := uuid.New()
		key := "abc"
		fulfilment := time.Date(2025, 3, 11, 15, 45, 0, 0, time.FixedZone("X", 3600))

		order, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), fulfilment,
			[]OrderLine{{MenuItemID: itemID, Quantity: 2}}, &key, testNow)
		require.NoError(t, err)

		assert.Equal(t, OrderStatusPlaced, order.Status)
		assert.Equal(t, 1, order.Version)
		assert.Equal(t, testNow, order.CreatedAt)
		assert.Equal(t, testNow, order.UpdatedAt)
		assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), order.FulfilmentDate)
		require.Len(t, order.Items, 1)
		assert.Equal(t, order.ID, order.Items[0].OrderID)
		assert.Equal(t, 2, order.Items[0].Quantity)
		assert.Equal(t, "abc", *order.IdempotencyKey)

		events := order.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeOrderPlaced, events[0].EventType())
	})

	t.Run("rejects empty order", func(t *testing.T) {
		_, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), testNow, nil, nil, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), testNow,
			[]OrderLine{{MenuItemID: uuid.New(), Quantity: 0}}, nil, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects missing references", func(t *testing.T) {
		_, err := NewOrder(uuid.Nil, uuid.New(), uuid.New(), testNow,
			[]OrderLine{{MenuItemID: uuid.New(), Quantity: 1}}, nil, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects overlong idempotency key", func(t *testing.T) {
		key := strings.Repeat("k", MaxIdempotencyKeyLength+1)
		_, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), testNow,
			[]OrderLine{{MenuItemID: uuid.New(), Quantity: 1}}, &key, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("accepts key at the limit", func(t *testing.T) {
		key := strings.Repeat("k", MaxIdempotencyKeyLength)
		_, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), testNow,
			[]OrderLine{{MenuItemID: uuid.New(), Quantity: 1}}, &key, testNow)
		assert.NoError(t, err)
	})
}

// ============================================
// Lifecycle tests
// ============================================

func TestOrder_Lifecycle(t *testing.T) {
	t.Run("placed to confirmed to fulfilled", func(t *testing.T) {
		order := createTestOrder(t)
		order.ClearDomainEvents()

		later := testNow.Add(time.Minute)
		require.NoError(t, order.Confirm(later))
		assert.Equal(t, OrderStatusConfirmed, order.Status)
		assert.Equal(t, later, order.UpdatedAt)

		latest := later.Add(time.Hour)
		require.NoError(t, order.Fulfill(latest))
		assert.Equal(t, OrderStatusFulfilled, order.Status)
		assert.Equal(t, latest, order.UpdatedAt)

		events := order.PullDomainEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventTypeOrderConfirmed, events[0].EventType())
		assert.Equal(t, EventTypeOrderFulfilled, events[1].EventType())
		assert.Empty(t, order.GetDomainEvents())
	})

	t.Run("fulfill requires confirmation", func(t *testing.T) {
		order := createTestOrder(t)
		err := order.Fulfill(testNow)

		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, OrderStatusPlaced, invalid.From)
		assert.Equal(t, OrderEventFulfill, invalid.Event)
		assert.Equal(t, OrderStatusPlaced, order.Status)
	})

	t.Run("cancel from placed and confirmed", func(t *testing.T) {
		placed := createTestOrder(t)
		require.NoError(t, placed.Cancel(testNow))
		assert.True(t, placed.IsCancelled())

		confirmed := createTestOrder(t)
		require.NoError(t, confirmed.Confirm(testNow))
		require.NoError(t, confirmed.Cancel(testNow))
		assert.True(t, confirmed.IsCancelled())
	})

	t.Run("fulfilled order cannot be cancelled", func(t *testing.T) {
		order := createTestOrder(t)
		require.NoError(t, order.Confirm(testNow))
		require.NoError(t, order.Fulfill(testNow))

		err := order.Cancel(testNow)
		assert.True(t, IsKind(err, FailureInvalidTransition))
		assert.True(t, order.IsFulfilled())
	})

	t.Run("cancelled order is terminal", func(t *testing.T) {
		order := createTestOrder(t)
		require.NoError(t, order.Cancel(testNow))

		for _, event := range []OrderEvent{OrderEventConfirm, OrderEventFulfill, OrderEventCancel} {
			assert.True(t, IsKind(order.Apply(event, testNow), FailureInvalidTransition), string(event))
		}
	})

	t.Run("failed transition leaves timestamp untouched", func(t *testing.T) {
		order := createTestOrder(t)
		_ = order.Fulfill(testNow.Add(time.Hour))
		assert.Equal(t, testNow, order.UpdatedAt)
	})
}

func TestOrder_TransitionTo(t *testing.T) {
	order := createTestOrder(t)

	require.NoError(t, order.TransitionTo(OrderStatusConfirmed, testNow))
	assert.True(t, order.IsConfirmed())

	err := order.TransitionTo(OrderStatusPlaced, testNow)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, OrderEventPlace, invalid.Event)

	err = order.TransitionTo(OrderStatus("SHIPPED"), testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestOrder_TotalAmount(t *testing.T) {
	sandwich := &MenuItem{BaseEntity: shared.BaseEntity{ID: uuid.New()}, Name: "Sandwich", Price: decimal.RequireFromString("6.50")}
	juice := &MenuItem{BaseEntity: shared.BaseEntity{ID: uuid.New()}, Name: "Juice", Price: decimal.RequireFromString("2.25")}

	order := createTestOrder(t,
		OrderLine{MenuItemID: sandwich.ID, Quantity: 2},
		OrderLine{MenuItemID: juice.ID, Quantity: 1},
	)
	menu := NewMenu([]*MenuItem{sandwich, juice})

	total, err := order.TotalAmount(menu)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("15.25").Equal(total), total.String())

	t.Run("reflects current price", func(t *testing.T) {
		sandwich.Price = decimal.RequireFromString("7.00")
		total, err := order.TotalAmount(menu)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("16.25").Equal(total), total.String())
	})

	t.Run("missing menu item", func(t *testing.T) {
		_, err := order.TotalAmount(Menu{})
		assert.True(t, IsKind(err, FailureNotFound))
	})
}

func TestMergeLines(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	merged := MergeLines([]OrderLine{
		{MenuItemID: a, Quantity: 1},
		{MenuItemID: b, Quantity: 2},
		{MenuItemID: a, Quantity: 3},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, OrderLine{MenuItemID: a, Quantity: 4}, merged[0])
	assert.Equal(t, OrderLine{MenuItemID: b, Quantity: 2}, merged[1])
}
