package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	orderingapp "github.com/canteen/backend/internal/application/ordering"
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/interfaces/http/dto"
	"github.com/canteen/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockOrderPlacer struct {
	mock.Mock
}

func (m *MockOrderPlacer) PlaceOrder(ctx context.Context, cmd orderingapp.PlaceOrderCommand) (*orderingapp.PlacementResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderingapp.PlacementResult), args.Error(1)
}

type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) GetOrder(ctx context.Context, id uuid.UUID) (*orderingapp.OrderView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderingapp.OrderView), args.Error(1)
}

func (m *MockOrderReader) ListOrders(ctx context.Context, filter orderingapp.OrderListFilter) (*shared.Paginated[orderingapp.OrderView], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[orderingapp.OrderView]), args.Error(1)
}

func (m *MockOrderReader) TransitionOrder(ctx context.Context, id uuid.UUID, target ordering.OrderStatus) (*orderingapp.OrderView, error) {
	args := m.Called(ctx, id, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderingapp.OrderView), args.Error(1)
}

func setupOrderRouter(placer *MockOrderPlacer, reader *MockOrderReader) *gin.Engine {
	h := NewOrderHandler(placer, reader)
	r := gin.New()
	r.Use(middleware.RequestID(zap.NewNop()))
	orders := r.Group("/api/v1/orders")
	orders.POST("", h.Place)
	orders.GET("", h.List)
	orders.GET("/:id", h.GetByID)
	orders.POST("/:id/transition", h.Transition)
	orders.POST("/:id/confirm", h.Confirm)
	orders.POST("/:id/fulfill", h.Fulfill)
	orders.POST("/:id/cancel", h.Cancel)
	return r
}

func testOrderView(status ordering.OrderStatus) *orderingapp.OrderView {
	return &orderingapp.OrderView{
		ID:             uuid.New(),
		ParentID:       uuid.New(),
		StudentID:      uuid.New(),
		CanteenID:      uuid.New(),
		FulfilmentDate: "2026-03-02",
		Status:         status.String(),
		Version:        1,
		TotalAmount:    decimal.RequireFromString("13.00"),
		Items:          []orderingapp.OrderItemView{},
	}
}

func placeBody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	body := map[string]any{
		"parent_id":       uuid.NewString(),
		"student_id":      uuid.NewString(),
		"canteen_id":      uuid.NewString(),
		"fulfilment_date": "2026-03-02",
		"order_items": []map[string]any{
			{"menu_item_id": uuid.NewString(), "quantity": 2},
		},
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func doJSON(r http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOrderHandler_Place(t *testing.T) {
	t.Run("new order answers 201", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		router := setupOrderRouter(placer, new(MockOrderReader))
		view := testOrderView(ordering.OrderStatusConfirmed)

		placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(cmd orderingapp.PlaceOrderCommand) bool {
			return cmd.IdempotencyKey == "body-key" &&
				cmd.CorrelationID == "corr-1" &&
				len(cmd.Items) == 1 && cmd.Items[0].Quantity == 2 &&
				cmd.FulfilmentDate.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
		})).Return(&orderingapp.PlacementResult{Order: view}, nil)

		w := doJSON(router, http.MethodPost, "/api/v1/orders",
			placeBody(t, map[string]any{"idempotency_key": "body-key"}),
			map[string]string{middleware.RequestIDHeader: "corr-1"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Empty(t, w.Header().Get(IdempotentReplayedHeader))
		var resp struct {
			Success bool                  `json:"success"`
			Data    orderingapp.OrderView `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, view.ID, resp.Data.ID)
		assert.Equal(t, "CONFIRMED", resp.Data.Status)
		placer.AssertExpectations(t)
	})

	t.Run("replay answers 200 with header", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		router := setupOrderRouter(placer, new(MockOrderReader))
		placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(&orderingapp.PlacementResult{Order: testOrderView(ordering.OrderStatusConfirmed), Replayed: true}, nil)

		w := doJSON(router, http.MethodPost, "/api/v1/orders", placeBody(t, nil),
			map[string]string{IdempotencyKeyHeader: "k"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "true", w.Header().Get(IdempotentReplayedHeader))
	})

	t.Run("header key wins over body", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		router := setupOrderRouter(placer, new(MockOrderReader))
		placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(cmd orderingapp.PlaceOrderCommand) bool {
			return cmd.IdempotencyKey == "header-key"
		})).Return(&orderingapp.PlacementResult{Order: testOrderView(ordering.OrderStatusConfirmed)}, nil)

		w := doJSON(router, http.MethodPost, "/api/v1/orders",
			placeBody(t, map[string]any{"idempotency_key": "body-key"}),
			map[string]string{IdempotencyKeyHeader: " header-key "})

		assert.Equal(t, http.StatusCreated, w.Code)
		placer.AssertExpectations(t)
	})

	t.Run("validation failures answer 400 with details", func(t *testing.T) {
		tests := []struct {
			name      string
			overrides map[string]any
			field     string
		}{
			{"missing parent", map[string]any{"parent_id": nil}, "parent_id"},
			{"bad uuid", map[string]any{"student_id": "nope"}, "student_id"},
			{"bad date", map[string]any{"fulfilment_date": "02/03/2026"}, "fulfilment_date"},
			{"empty items", map[string]any{"order_items": []map[string]any{}}, "order_items"},
			{"zero quantity", map[string]any{"order_items": []map[string]any{
				{"menu_item_id": uuid.NewString(), "quantity": 0},
			}}, "order_items[0].quantity"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				placer := new(MockOrderPlacer)
				router := setupOrderRouter(placer, new(MockOrderReader))

				w := doJSON(router, http.MethodPost, "/api/v1/orders", placeBody(t, tt.overrides), nil)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				var resp struct {
					Error struct {
						Code    string                 `json:"code"`
						Details []dto.ValidationDetail `json:"details"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
				fields := make([]string, 0, len(resp.Error.Details))
				for _, d := range resp.Error.Details {
					fields = append(fields, d.Field)
				}
				assert.Contains(t, fields, tt.field)
				placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("malformed json answers 400", func(t *testing.T) {
		router := setupOrderRouter(new(MockOrderPlacer), new(MockOrderReader))
		w := doJSON(router, http.MethodPost, "/api/v1/orders", []byte(`{"parent_id":`), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Error.Code)
	})

	t.Run("over-long header key answers 400", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		router := setupOrderRouter(placer, new(MockOrderReader))
		w := doJSON(router, http.MethodPost, "/api/v1/orders", placeBody(t, nil),
			map[string]string{IdempotencyKeyHeader: strings.Repeat("k", ordering.MaxIdempotencyKeyLength+1)})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decodeError(t, w).Error.Code)
		placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})

	t.Run("business failure answers 422", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		router := setupOrderRouter(placer, new(MockOrderReader))
		placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(nil, ordering.NewInsufficientBalanceError(decimal.NewFromInt(13), decimal.NewFromInt(5)))

		w := doJSON(router, http.MethodPost, "/api/v1/orders", placeBody(t, nil), nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeInsufficientBalance, body.Error.Code)
		assert.Equal(t, "13", body.Error.Details["required"])
		assert.NotEmpty(t, body.Error.RequestID)
	})

	t.Run("duplicate under conflict policy answers 409", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		router := setupOrderRouter(placer, new(MockOrderReader))
		existing := uuid.New()
		placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(nil, ordering.NewDuplicateRequestError("k", existing))

		w := doJSON(router, http.MethodPost, "/api/v1/orders", placeBody(t, nil),
			map[string]string{IdempotencyKeyHeader: "k"})

		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeDuplicateRequest, body.Error.Code)
		assert.Equal(t, existing.String(), body.Error.Details["existing_order_id"])
	})
}

func TestOrderHandler_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)
		view := testOrderView(ordering.OrderStatusConfirmed)
		reader.On("GetOrder", mock.Anything, view.ID).Return(view, nil)

		w := doJSON(router, http.MethodGet, "/api/v1/orders/"+view.ID.String(), nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		reader.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)
		id := uuid.New()
		reader.On("GetOrder", mock.Anything, id).Return(nil, ordering.NewNotFoundError(ordering.EntityOrder, id))

		w := doJSON(router, http.MethodGet, "/api/v1/orders/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "order", decodeError(t, w).Error.Details["entity_kind"])
	})

	t.Run("malformed id", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)

		w := doJSON(router, http.MethodGet, "/api/v1/orders/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reader.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_List(t *testing.T) {
	t.Run("passes filters and meta", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)
		parentID := uuid.New()

		reader.On("ListOrders", mock.Anything, mock.MatchedBy(func(f orderingapp.OrderListFilter) bool {
			return f.Page == 2 && f.PageSize == 5 &&
				f.ParentID != nil && *f.ParentID == parentID &&
				f.Status != nil && *f.Status == ordering.OrderStatusConfirmed &&
				f.FulfilmentDate != nil && f.FulfilmentDate.Format(time.DateOnly) == "2026-03-02"
		})).Return(&shared.Paginated[orderingapp.OrderView]{
			Items:      []orderingapp.OrderView{*testOrderView(ordering.OrderStatusConfirmed)},
			Total:      6,
			Page:       2,
			PageSize:   5,
			TotalPages: 2,
		}, nil)

		w := doJSON(router, http.MethodGet,
			"/api/v1/orders?page=2&page_size=5&status=CONFIRMED&fulfilment_date=2026-03-02&parent_id="+parentID.String(),
			nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(6), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		reader.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)

		w := doJSON(router, http.MethodGet, "/api/v1/orders?status=SHIPPED", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reader.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_Transition(t *testing.T) {
	t.Run("named routes map to target status", func(t *testing.T) {
		routes := map[string]ordering.OrderStatus{
			"confirm": ordering.OrderStatusConfirmed,
			"fulfill": ordering.OrderStatusFulfilled,
			"cancel":  ordering.OrderStatusCancelled,
		}
		for action, target := range routes {
			t.Run(action, func(t *testing.T) {
				reader := new(MockOrderReader)
				router := setupOrderRouter(new(MockOrderPlacer), reader)
				view := testOrderView(target)
				reader.On("TransitionOrder", mock.Anything, view.ID, target).Return(view, nil)

				w := doJSON(router, http.MethodPost, "/api/v1/orders/"+view.ID.String()+"/"+action, nil, nil)

				assert.Equal(t, http.StatusOK, w.Code)
				reader.AssertExpectations(t)
			})
		}
	})

	t.Run("transition body", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)
		view := testOrderView(ordering.OrderStatusFulfilled)
		reader.On("TransitionOrder", mock.Anything, view.ID, ordering.OrderStatusFulfilled).Return(view, nil)

		w := doJSON(router, http.MethodPost, "/api/v1/orders/"+view.ID.String()+"/transition",
			[]byte(`{"status":"FULFILLED"}`), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		reader.AssertExpectations(t)
	})

	t.Run("PLACED is not a transition target", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)

		w := doJSON(router, http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/transition",
			[]byte(`{"status":"PLACED"}`), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reader.AssertNotCalled(t, "TransitionOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid transition answers 422", func(t *testing.T) {
		reader := new(MockOrderReader)
		router := setupOrderRouter(new(MockOrderPlacer), reader)
		id := uuid.New()
		reader.On("TransitionOrder", mock.Anything, id, ordering.OrderStatusCancelled).
			Return(nil, ordering.NewInvalidTransitionError(ordering.OrderStatusFulfilled, ordering.OrderEventCancel))

		w := doJSON(router, http.MethodPost, "/api/v1/orders/"+id.String()+"/cancel", nil, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeInvalidTransition, body.Error.Code)
		assert.Equal(t, "FULFILLED", body.Error.Details["from_state"])
		assert.Equal(t, "cancel", body.Error.Details["event"])
	})
}
