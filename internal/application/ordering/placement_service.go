package ordering

import (
	"context"
	"errors"
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DuplicatePolicy decides what a replayed idempotency key returns
type DuplicatePolicy string

const (
	// DuplicatePolicyReturn returns the existing order as a successful replay
	DuplicatePolicyReturn DuplicatePolicy = "return"
	// DuplicatePolicyConflict fails the replay with DuplicateRequestError
	DuplicatePolicyConflict DuplicatePolicy = "conflict"
)

// Clock returns the current instant
type Clock func() time.Time

// PlacementService places canteen orders. Each call is one unit of work:
// validation, order insert, stock decrement and wallet debit either all
// commit or all roll back.
type PlacementService struct {
	uowFactory      ordering.UnitOfWorkFactory
	pipeline        *ordering.Pipeline
	guard           *IdempotencyGuard
	clock           Clock
	eventPublisher  shared.EventPublisher
	metrics         PlacementMetrics
	logger          *zap.Logger
	duplicatePolicy DuplicatePolicy
}

// Option configures PlacementService and OrderService
type Option func(*options)

type options struct {
	clock           Clock
	eventPublisher  shared.EventPublisher
	metrics         PlacementMetrics
	logger          *zap.Logger
	duplicatePolicy DuplicatePolicy
}

func newOptions(opts []Option) *options {
	o := &options{
		clock:           time.Now,
		metrics:         noopMetrics{},
		logger:          zap.NewNop(),
		duplicatePolicy: DuplicatePolicyReturn,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithClock overrides the time source
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithEventPublisher publishes order events after commit
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(o *options) {
		o.eventPublisher = publisher
	}
}

// WithMetrics records ordering outcomes
func WithMetrics(metrics PlacementMetrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDuplicatePolicy sets how replayed keys are answered
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(o *options) {
		if policy == DuplicatePolicyConflict {
			o.duplicatePolicy = policy
		}
	}
}

// NewPlacementService creates a PlacementService
func NewPlacementService(
	uowFactory ordering.UnitOfWorkFactory,
	pipeline *ordering.Pipeline,
	guard *IdempotencyGuard,
	opts ...Option,
) *PlacementService {
	if pipeline == nil {
		pipeline = ordering.NewPipeline()
	}
	if guard == nil {
		guard = NewIdempotencyGuard()
	}
	o := newOptions(opts)
	return &PlacementService{
		uowFactory:      uowFactory,
		pipeline:        pipeline,
		guard:           guard,
		clock:           o.clock,
		eventPublisher:  o.eventPublisher,
		metrics:         o.metrics,
		logger:          o.logger,
		duplicatePolicy: o.duplicatePolicy,
	}
}

// PlaceOrder validates and commits a new order. A key that already produced
// an order returns that order with Replayed set, whether it was found up
// front or surfaced by the unique index on insert.
func (s *PlacementService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*PlacementResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "order_placement", "place",
		telemetry.WithAttribute(telemetry.SpanAttrParentID, cmd.ParentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrStudentID, cmd.StudentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrCanteenID, cmd.CanteenID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrFulfilmentDate, cmd.FulfilmentDate.Format(time.DateOnly)),
		telemetry.WithAttribute(telemetry.SpanAttrItemsCount, len(cmd.Items)),
		telemetry.WithAttribute(telemetry.SpanAttrCorrelationID, cmd.CorrelationID),
	)
	defer span.End()

	log := s.logger.With(
		zap.String("correlation_id", cmd.CorrelationID),
		zap.String("parent_id", cmd.ParentID.String()),
		zap.String("student_id", cmd.StudentID.String()),
		zap.String("canteen_id", cmd.CanteenID.String()),
		zap.String("fulfilment_date", cmd.FulfilmentDate.Format(time.DateOnly)),
		zap.String("idempotency_key", cmd.IdempotencyKey),
	)
	log.Debug("Starting order placement", zap.Int("item_count", len(cmd.Items)))

	result, err := s.placeOrder(ctx, cmd)
	s.observe(ctx, log, cmd, result, err, time.Since(start))
	annotateSpan(span, result, err)
	return result, err
}

func annotateSpan(span trace.Span, result *PlacementResult, err error) {
	if err != nil {
		if failure, ok := ordering.AsFailure(err); ok {
			telemetry.SetAttributes(span, telemetry.SpanAttrFailureKind, string(failure.Kind()))
		}
		telemetry.RecordError(span, err)
		return
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, result.Order.ID.String(),
		telemetry.SpanAttrOrderStatus, result.Order.Status,
		telemetry.SpanAttrAmount, result.Order.TotalAmount.StringFixed(2),
		telemetry.SpanAttrReplayed, result.Replayed,
	)
}

func (s *PlacementService) placeOrder(ctx context.Context, cmd PlaceOrderCommand) (*PlacementResult, error) {
	lines, err := cmd.lines()
	if err != nil {
		return nil, err
	}
	key := cmd.key()
	if err := ordering.ValidateIdempotencyKey(key); err != nil {
		return nil, err
	}

	uow := s.uowFactory.New()
	if err := uow.Begin(ctx); err != nil {
		return nil, asStoreFailure(err)
	}
	defer s.rollbackIfActive(uow)

	if key != nil {
		check, err := s.guard.CheckOrFetch(ctx, uow, *key)
		if err != nil {
			return nil, err
		}
		if check.Outcome == OutcomeFound {
			if err := uow.Rollback(); err != nil {
				return nil, asStoreFailure(err)
			}
			return s.replay(ctx, uow, *key, check.Order)
		}
	}

	parent, err := uow.Parents().FindByIDForUpdate(ctx, cmd.ParentID)
	if err != nil {
		return nil, loadFailure(err, ordering.EntityParent, cmd.ParentID)
	}
	student, err := uow.Students().FindByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, loadFailure(err, ordering.EntityStudent, cmd.StudentID)
	}
	canteen, err := uow.Canteens().FindByID(ctx, cmd.CanteenID)
	if err != nil {
		return nil, loadFailure(err, ordering.EntityCanteen, cmd.CanteenID)
	}

	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.MenuItemID
	}
	items, err := uow.MenuItems().FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, asStoreFailure(err)
	}
	menu := ordering.NewMenu(items)
	for _, id := range ids {
		if _, ok := menu[id]; !ok {
			return nil, ordering.NewNotFoundError(ordering.EntityMenuItem, id)
		}
	}

	now := s.clock()
	if err := s.pipeline.Validate(ordering.PlacementInput{
		Parent:         parent,
		Student:        student,
		Canteen:        canteen,
		Menu:           menu,
		Lines:          lines,
		FulfilmentDate: cmd.FulfilmentDate,
		Now:            now,
	}); err != nil {
		return nil, err
	}

	order, err := ordering.NewOrder(parent.ID, student.ID, canteen.ID, cmd.FulfilmentDate, lines, key, now)
	if err != nil {
		return nil, err
	}
	if err := uow.Orders().Insert(ctx, order); err != nil {
		if key != nil && errors.Is(err, ordering.ErrDuplicateIdempotencyKey) {
			if rbErr := uow.Rollback(); rbErr != nil {
				return nil, asStoreFailure(rbErr)
			}
			return s.resolveDuplicate(ctx, uow, *key)
		}
		return nil, asStoreFailure(err)
	}

	if err := order.Confirm(now); err != nil {
		return nil, err
	}
	if err := uow.Orders().Update(ctx, order); err != nil {
		return nil, asStoreFailure(err)
	}

	// Debit and decrement use the rows locked above, so the amount charged
	// is the one the wallet rule just checked.
	total, err := order.TotalAmount(menu)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		item := menu[line.MenuItemID]
		if !item.HasStockLimit() {
			continue
		}
		if err := item.DecrementStock(line.Quantity, now); err != nil {
			return nil, err
		}
		if err := uow.MenuItems().Update(ctx, item); err != nil {
			return nil, asStoreFailure(err)
		}
	}
	if err := parent.Debit(total, now); err != nil {
		return nil, err
	}
	if err := uow.Parents().Update(ctx, parent); err != nil {
		return nil, asStoreFailure(err)
	}

	if err := uow.Commit(); err != nil {
		return nil, asStoreFailure(err)
	}

	s.publish(ctx, order.PullDomainEvents())
	if key != nil {
		s.guard.Remember(ctx, *key, order.ID)
	}

	view := toOrderView(order, orderContext{parent: parent, student: student, canteen: canteen, menu: menu})
	return &PlacementResult{Order: view}, nil
}

// resolveDuplicate handles a key that lost the insert race: the winner has
// committed, so its order is read outside the failed transaction
func (s *PlacementService) resolveDuplicate(ctx context.Context, uow ordering.UnitOfWork, key string) (*PlacementResult, error) {
	existing, err := uow.Orders().FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, asStoreFailure(err)
	}
	s.guard.Remember(ctx, key, existing.ID)
	return s.replay(ctx, uow, key, existing)
}

func (s *PlacementService) replay(ctx context.Context, uow ordering.UnitOfWork, key string, existing *ordering.Order) (*PlacementResult, error) {
	if s.duplicatePolicy == DuplicatePolicyConflict {
		return nil, ordering.NewDuplicateRequestError(key, existing.ID)
	}
	view, err := loadOrderView(ctx, uow, existing)
	if err != nil {
		return nil, err
	}
	return &PlacementResult{Order: view, Replayed: true}, nil
}

func (s *PlacementService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish order events", zap.Int("event_count", len(events)), zap.Error(err))
	}
}

func (s *PlacementService) rollbackIfActive(uow ordering.UnitOfWork) {
	if !uow.InTransaction() {
		return
	}
	if err := uow.Rollback(); err != nil {
		s.logger.Error("Rollback failed", zap.Error(err))
	}
}

// observe logs and records the placement outcome
func (s *PlacementService) observe(ctx context.Context, log *zap.Logger, cmd PlaceOrderCommand, result *PlacementResult, err error, elapsed time.Duration) {
	if err == nil {
		if result.Replayed {
			s.metrics.RecordReplayed(ctx, cmd.CanteenID)
			log.Info("Duplicate order request, returning existing order",
				zap.String("order_id", result.Order.ID.String()),
			)
			return
		}
		s.metrics.RecordPlaced(ctx, cmd.CanteenID, result.Order.TotalAmount, elapsed)
		log.Info("Order placed",
			zap.String("order_id", result.Order.ID.String()),
			zap.String("total_amount", result.Order.TotalAmount.StringFixed(2)),
			zap.Int("item_count", len(result.Order.Items)),
			zap.Duration("elapsed", elapsed),
		)
		return
	}

	failure, ok := ordering.AsFailure(err)
	if !ok {
		s.metrics.RecordRejected(ctx, ordering.FailureKind("INVALID_INPUT"), elapsed)
		log.Warn("Order request rejected", zap.Error(err))
		return
	}
	s.metrics.RecordRejected(ctx, failure.Kind(), elapsed)

	switch f := failure.(type) {
	case *ordering.StoreFailureError:
		log.Error("Order placement failed in store", zap.Error(f.Cause))
	case *ordering.DuplicateRequestError:
		log.Info("Duplicate order request rejected",
			zap.String("existing_order_id", f.ExistingOrderID.String()),
		)
	case *ordering.CutOffExceededError:
		log.Warn("Order cut-off time exceeded",
			zap.Time("cutoff", f.CutOff),
			zap.Time("requested", f.Requested),
		)
	case *ordering.InsufficientStockError:
		log.Warn("Insufficient stock",
			zap.String("menu_item", f.Name),
			zap.Int("requested", f.Requested),
			zap.Int("available", f.Available),
		)
	case *ordering.InsufficientBalanceError:
		log.Warn("Insufficient wallet balance",
			zap.String("required", f.Required.StringFixed(2)),
			zap.String("available", f.Available.StringFixed(2)),
		)
	case *ordering.AllergenConflictError:
		log.Warn("Allergen conflict",
			zap.String("student", f.StudentName),
			zap.String("menu_item", f.MenuItemName),
			zap.Strings("allergens", f.ConflictingTags),
		)
	default:
		log.Warn("Order placement failed",
			zap.String("kind", string(failure.Kind())),
			zap.Error(err),
		)
	}
}

// loadFailure maps a repository miss to NotFound and anything else to StoreFailure
func loadFailure(err error, kind ordering.EntityKind, id uuid.UUID) error {
	if errors.Is(err, shared.ErrNotFound) {
		return ordering.NewNotFoundError(kind, id)
	}
	return asStoreFailure(err)
}

// asStoreFailure wraps raw store faults, leaving typed failures untouched
func asStoreFailure(err error) error {
	if _, ok := ordering.AsFailure(err); ok {
		return err
	}
	return ordering.NewStoreFailureError(err)
}
