package handler

import (
	"strings"
	"time"

	orderingapp "github.com/canteen/backend/internal/application/ordering"
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader carries the idempotency key; it wins over the body field
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayedHeader is set to "true" when a placement returned an existing order
const IdempotentReplayedHeader = "Idempotent-Replayed"

// PlaceOrderRequest is the body of POST /orders
type PlaceOrderRequest struct {
	ParentID       string             `json:"parent_id" binding:"required,uuid"`
	StudentID      string             `json:"student_id" binding:"required,uuid"`
	CanteenID      string             `json:"canteen_id" binding:"required,uuid"`
	FulfilmentDate string             `json:"fulfilment_date" binding:"required,fulfilment_date"`
	Items          []OrderItemRequest `json:"order_items" binding:"required,min=1,dive"`
	IdempotencyKey string             `json:"idempotency_key" binding:"max=100"`
}

// OrderItemRequest is one requested line
type OrderItemRequest struct {
	MenuItemID string `json:"menu_item_id" binding:"required,uuid"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
}

// toCommand converts a bound request; binding has already checked the formats
func (r PlaceOrderRequest) toCommand(headerKey, correlationID string) (orderingapp.PlaceOrderCommand, error) {
	cmd := orderingapp.PlaceOrderCommand{
		IdempotencyKey: r.IdempotencyKey,
		CorrelationID:  correlationID,
		Items:          make([]orderingapp.OrderLineCommand, 0, len(r.Items)),
	}
	if k := strings.TrimSpace(headerKey); k != "" {
		cmd.IdempotencyKey = k
	}

	var err error
	if cmd.ParentID, err = uuid.Parse(r.ParentID); err != nil {
		return cmd, err
	}
	if cmd.StudentID, err = uuid.Parse(r.StudentID); err != nil {
		return cmd, err
	}
	if cmd.CanteenID, err = uuid.Parse(r.CanteenID); err != nil {
		return cmd, err
	}
	if cmd.FulfilmentDate, err = time.Parse(time.DateOnly, r.FulfilmentDate); err != nil {
		return cmd, err
	}
	for _, item := range r.Items {
		id, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return cmd, err
		}
		cmd.Items = append(cmd.Items, orderingapp.OrderLineCommand{MenuItemID: id, Quantity: item.Quantity})
	}
	return cmd, nil
}

// TransitionRequest is the body of POST /orders/:id/transition
type TransitionRequest struct {
	Status string `json:"status" binding:"required,oneof=CONFIRMED FULFILLED CANCELLED"`
}

// ListOrdersRequest holds the query parameters of GET /orders
type ListOrdersRequest struct {
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy        string `form:"order_by" binding:"omitempty,oneof=created_at updated_at fulfilment_date status"`
	OrderDir       string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	ParentID       string `form:"parent_id" binding:"omitempty,uuid"`
	StudentID      string `form:"student_id" binding:"omitempty,uuid"`
	CanteenID      string `form:"canteen_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,oneof=PLACED CONFIRMED FULFILLED CANCELLED"`
	FulfilmentDate string `form:"fulfilment_date" binding:"omitempty,fulfilment_date"`
}

func (r ListOrdersRequest) toFilter() (orderingapp.OrderListFilter, error) {
	filter := orderingapp.OrderListFilter{
		Page:     r.Page,
		PageSize: r.PageSize,
		OrderBy:  r.OrderBy,
		OrderDir: r.OrderDir,
	}
	parseID := func(raw string) (*uuid.UUID, error) {
		if raw == "" {
			return nil, nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}

	var err error
	if filter.ParentID, err = parseID(r.ParentID); err != nil {
		return filter, err
	}
	if filter.StudentID, err = parseID(r.StudentID); err != nil {
		return filter, err
	}
	if filter.CanteenID, err = parseID(r.CanteenID); err != nil {
		return filter, err
	}
	if r.Status != "" {
		status, err := ordering.ParseOrderStatus(r.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if r.FulfilmentDate != "" {
		d, err := time.Parse(time.DateOnly, r.FulfilmentDate)
		if err != nil {
			return filter, err
		}
		filter.FulfilmentDate = &d
	}
	return filter, nil
}
