package ordering

import (
	"context"
	"errors"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService reads orders and drives their lifecycle after placement
type OrderService struct {
	uowFactory     ordering.UnitOfWorkFactory
	clock          Clock
	eventPublisher shared.EventPublisher
	metrics        PlacementMetrics
	logger         *zap.Logger
}

// NewOrderService creates an OrderService. WithDuplicatePolicy has no effect here.
func NewOrderService(uowFactory ordering.UnitOfWorkFactory, opts ...Option) *OrderService {
	cfg := newOptions(opts)
	return &OrderService{
		uowFactory:     uowFactory,
		clock:          cfg.clock,
		eventPublisher: cfg.eventPublisher,
		metrics:        cfg.metrics,
		logger:         cfg.logger,
	}
}

// GetOrder returns one order
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	uow := s.uowFactory.New()
	order, err := uow.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, loadFailure(err, ordering.EntityOrder, id)
	}
	return loadOrderView(ctx, uow, order)
}

// ListOrders returns a page of orders matching filter
func (s *OrderService) ListOrders(ctx context.Context, filter OrderListFilter) (*shared.Paginated[OrderView], error) {
	domainFilter := filter.toDomain()
	uow := s.uowFactory.New()

	orders, total, err := uow.Orders().List(ctx, domainFilter)
	if err != nil {
		return nil, asStoreFailure(err)
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		view, err := loadOrderView(ctx, uow, order)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	page := shared.NewPaginated(views, total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// TransitionOrder moves an order to target. The update is version-guarded,
// so a concurrent transition of the same order fails with StoreFailure.
func (s *OrderService) TransitionOrder(ctx context.Context, id uuid.UUID, target ordering.OrderStatus) (*OrderView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_lifecycle", "transition",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, id.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderStatus, target.String()),
	)
	defer span.End()

	view, err := s.transitionOrder(ctx, id, target)
	if err != nil {
		if failure, ok := ordering.AsFailure(err); ok {
			telemetry.SetAttributes(span, telemetry.SpanAttrFailureKind, string(failure.Kind()))
		}
		telemetry.RecordError(span, err)
	}
	return view, err
}

func (s *OrderService) transitionOrder(ctx context.Context, id uuid.UUID, target ordering.OrderStatus) (*OrderView, error) {
	uow := s.uowFactory.New()
	if err := uow.Begin(ctx); err != nil {
		return nil, asStoreFailure(err)
	}
	defer func() {
		if uow.InTransaction() {
			if err := uow.Rollback(); err != nil {
				s.logger.Error("Rollback failed", zap.Error(err))
			}
		}
	}()

	order, err := uow.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, loadFailure(err, ordering.EntityOrder, id)
	}
	from := order.Status
	if err := order.TransitionTo(target, s.clock()); err != nil {
		s.logger.Warn("Order transition rejected",
			zap.String("order_id", id.String()),
			zap.String("from", from.String()),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if err := uow.Orders().Update(ctx, order); err != nil {
		return nil, asStoreFailure(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, asStoreFailure(err)
	}

	if events := order.PullDomainEvents(); s.eventPublisher != nil && len(events) > 0 {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish order events", zap.Error(err))
		}
	}
	s.metrics.RecordTransition(ctx, from, order.Status)
	s.logger.Info("Order transitioned",
		zap.String("order_id", id.String()),
		zap.String("from", from.String()),
		zap.String("to", order.Status.String()),
	)

	return loadOrderView(ctx, uow, order)
}

// loadOrderView reads the entities an order refers to and renders it.
// References that no longer resolve leave their names blank.
func loadOrderView(ctx context.Context, uow ordering.UnitOfWork, order *ordering.Order) (*OrderView, error) {
	var oc orderContext
	var err error

	if oc.parent, err = uow.Parents().FindByID(ctx, order.ParentID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, asStoreFailure(err)
	}
	if oc.student, err = uow.Students().FindByID(ctx, order.StudentID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, asStoreFailure(err)
	}
	if oc.canteen, err = uow.Canteens().FindByID(ctx, order.CanteenID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, asStoreFailure(err)
	}
	items, err := uow.MenuItems().FindByIDs(ctx, order.MenuItemIDs())
	if err != nil {
		return nil, asStoreFailure(err)
	}
	oc.menu = ordering.NewMenu(items)

	return toOrderView(order, oc), nil
}
