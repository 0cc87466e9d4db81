package event

import (
	"context"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// OrderEventLogger writes an audit log line for every order lifecycle event
type OrderEventLogger struct {
	logger *zap.Logger
}

// NewOrderEventLogger creates the handler
func NewOrderEventLogger(log *zap.Logger) *OrderEventLogger {
	return &OrderEventLogger{logger: log.Named("order_events")}
}

// Handle logs event
func (h *OrderEventLogger) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("order_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if id := logger.GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	switch e := event.(type) {
	case *ordering.OrderPlacedEvent:
		fields = append(fields,
			zap.String("parent_id", e.ParentID.String()),
			zap.String("student_id", e.StudentID.String()),
			zap.String("canteen_id", e.CanteenID.String()),
			zap.String("fulfilment_date", e.FulfilmentDate),
			zap.Int("lines", len(e.Items)),
		)
	case *ordering.OrderConfirmedEvent:
		fields = append(fields, zap.String("status", e.Status.String()))
	case *ordering.OrderFulfilledEvent:
		fields = append(fields, zap.String("status", e.Status.String()))
	case *ordering.OrderCancelledEvent:
		fields = append(fields, zap.String("status", e.Status.String()))
	}

	h.logger.Info("Order event", fields...)
	return nil
}

// EventTypes lists the order events
func (h *OrderEventLogger) EventTypes() []string {
	return []string{
		ordering.EventTypeOrderPlaced,
		ordering.EventTypeOrderConfirmed,
		ordering.EventTypeOrderFulfilled,
		ordering.EventTypeOrderCancelled,
	}
}

var _ shared.EventHandler = (*OrderEventLogger)(nil)
