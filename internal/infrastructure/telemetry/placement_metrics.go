package telemetry

import (
	"context"
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// Placement outcomes recorded on the duration histogram
const (
	OutcomePlaced   = "placed"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
)

// PlacementMetrics records order placement and lifecycle metrics
type PlacementMetrics struct {
	placedTotal     *Counter
	amountTotal     *FloatCounter
	replayedTotal   *Counter
	rejectedTotal   *Counter
	transitionTotal *Counter
	duration        *Histogram
}

// NewPlacementMetrics creates the placement instruments on meter
func NewPlacementMetrics(meter metric.Meter) (*PlacementMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &PlacementMetrics{}
	var err error

	if m.placedTotal, err = NewCounter(meter,
		"canteen_orders_placed_total", "Orders committed by the placement transaction", "{orders}"); err != nil {
		return nil, err
	}
	if m.amountTotal, err = NewFloatCounter(meter,
		"canteen_order_amount_total", "Wallet amount debited by placed orders", "{currency}"); err != nil {
		return nil, err
	}
	if m.replayedTotal, err = NewCounter(meter,
		"canteen_orders_replayed_total", "Requests answered from an existing idempotency key", "{requests}"); err != nil {
		return nil, err
	}
	if m.rejectedTotal, err = NewCounter(meter,
		"canteen_orders_rejected_total", "Placement requests that failed, by failure kind", "{requests}"); err != nil {
		return nil, err
	}
	if m.transitionTotal, err = NewCounter(meter,
		"canteen_order_transitions_total", "Order status transitions", "{transitions}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "canteen_order_placement_duration_seconds",
		Description: "Placement transaction latency by outcome",
		Unit:        "s",
		Boundaries:  PlacementDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordPlaced counts a committed order and its debit
func (m *PlacementMetrics) RecordPlaced(ctx context.Context, canteenID uuid.UUID, total decimal.Decimal, elapsed time.Duration) {
	canteen := AttrCanteenID.String(canteenID.String())
	m.placedTotal.Inc(ctx, canteen)
	m.amountTotal.Add(ctx, total.InexactFloat64(), canteen)
	m.duration.RecordDuration(ctx, elapsed, AttrOutcome.String(OutcomePlaced))
}

// RecordReplayed counts an idempotent replay
func (m *PlacementMetrics) RecordReplayed(ctx context.Context, canteenID uuid.UUID) {
	m.replayedTotal.Inc(ctx, AttrCanteenID.String(canteenID.String()))
}

// RecordRejected counts a failed placement by kind
func (m *PlacementMetrics) RecordRejected(ctx context.Context, kind ordering.FailureKind, elapsed time.Duration) {
	m.rejectedTotal.Inc(ctx, AttrFailureKind.String(string(kind)))
	m.duration.RecordDuration(ctx, elapsed, AttrOutcome.String(OutcomeRejected))
}

// RecordTransition counts a status change
func (m *PlacementMetrics) RecordTransition(ctx context.Context, from, to ordering.OrderStatus) {
	m.transitionTotal.Inc(ctx, AttrFromStatus.String(from.String()), AttrToStatus.String(to.String()))
}
