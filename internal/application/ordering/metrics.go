package ordering

import (
	"context"
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlacementMetrics records ordering outcomes
type PlacementMetrics interface {
	RecordPlaced(ctx context.Context, canteenID uuid.UUID, total decimal.Decimal, elapsed time.Duration)
	RecordReplayed(ctx context.Context, canteenID uuid.UUID)
	RecordRejected(ctx context.Context, kind ordering.FailureKind, elapsed time.Duration)
	RecordTransition(ctx context.Context, from, to ordering.OrderStatus)
}

type noopMetrics struct{}

func (noopMetrics) RecordPlaced(context.Context, uuid.UUID, decimal.Decimal, time.Duration) {}
func (noopMetrics) RecordReplayed(context.Context, uuid.UUID)                               {}
func (noopMetrics) RecordRejected(context.Context, ordering.FailureKind, time.Duration)     {}
func (noopMetrics) RecordTransition(context.Context, ordering.OrderStatus, ordering.OrderStatus) {
}
