package handler

import (
	"context"

	orderingapp "github.com/canteen/backend/internal/application/ordering"
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/interfaces/http/dto"
	"github.com/canteen/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderPlacer places orders
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, cmd orderingapp.PlaceOrderCommand) (*orderingapp.PlacementResult, error)
}

// OrderReader reads and moves orders through their lifecycle
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*orderingapp.OrderView, error)
	ListOrders(ctx context.Context, filter orderingapp.OrderListFilter) (*shared.Paginated[orderingapp.OrderView], error)
	TransitionOrder(ctx context.Context, id uuid.UUID, target ordering.OrderStatus) (*orderingapp.OrderView, error)
}

// OrderHandler handles order API endpoints
type OrderHandler struct {
	BaseHandler
	placer OrderPlacer
	orders OrderReader
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(placer OrderPlacer, orders OrderReader) *OrderHandler {
	return &OrderHandler{placer: placer, orders: orders}
}

// Place handles POST /orders. A new order answers 201; a replayed
// idempotency key answers 200 with the Idempotent-Replayed header.
func (h *OrderHandler) Place(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	cmd, err := req.toCommand(c.GetHeader(IdempotencyKeyHeader), middleware.GetRequestID(c))
	if err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}
	if len(cmd.IdempotencyKey) > ordering.MaxIdempotencyKeyLength {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeInvalidInput), dto.ErrCodeInvalidInput,
			"Idempotency key is too long")
		return
	}

	result, err := h.placer.PlaceOrder(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Replayed {
		c.Header(IdempotentReplayedHeader, "true")
		h.Success(c, result.Order)
		return
	}
	h.Created(c, result.Order)
}

// GetByID handles GET /orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	var req ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	filter, err := req.toFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize, page.TotalPages)
}

// Transition handles POST /orders/:id/transition
func (h *OrderHandler) Transition(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	target, err := ordering.ParseOrderStatus(req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.transition(c, id, target)
}

// Confirm handles POST /orders/:id/confirm
func (h *OrderHandler) Confirm(c *gin.Context) {
	h.transitionTo(c, ordering.OrderStatusConfirmed)
}

// Fulfill handles POST /orders/:id/fulfill
func (h *OrderHandler) Fulfill(c *gin.Context) {
	h.transitionTo(c, ordering.OrderStatusFulfilled)
}

// Cancel handles POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.transitionTo(c, ordering.OrderStatusCancelled)
}

func (h *OrderHandler) transitionTo(c *gin.Context, target ordering.OrderStatus) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	h.transition(c, id, target)
}

func (h *OrderHandler) transition(c *gin.Context, id uuid.UUID, target ordering.OrderStatus) {
	order, err := h.orders.TransitionOrder(c.Request.Context(), id, target)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// orderID binds the :id path parameter, answering 400 when malformed
func (h *OrderHandler) orderID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return uuid.Nil, false
	}
	return id, true
}
