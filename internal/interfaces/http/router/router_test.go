package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	orderingapp "github.com/canteen/backend/internal/application/ordering"
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/interfaces/http/handler"
	"github.com/canteen/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("orders", "/orders")
		assert.Equal(t, "orders", g.Name())
		assert.Equal(t, "/orders", g.Prefix())
	})

	t.Run("applies middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").
			Use(func(c *gin.Context) {
				c.Header("X-Test-Middleware", "applied")
				c.Next()
			}).
			POST("/items", func(c *gin.Context) {
				c.String(http.StatusCreated, "created")
			})
		g.RegisterRoutes(engine.Group("/api/v1"))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/test/items", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
	})
}

type stubOrders struct{}

func (stubOrders) PlaceOrder(context.Context, orderingapp.PlaceOrderCommand) (*orderingapp.PlacementResult, error) {
	return nil, ordering.NewNotFoundError(ordering.EntityParent, uuid.Nil)
}

func (stubOrders) GetOrder(_ context.Context, id uuid.UUID) (*orderingapp.OrderView, error) {
	return nil, ordering.NewNotFoundError(ordering.EntityOrder, id)
}

func (stubOrders) ListOrders(context.Context, orderingapp.OrderListFilter) (*shared.Paginated[orderingapp.OrderView], error) {
	return &shared.Paginated[orderingapp.OrderView]{Items: []orderingapp.OrderView{}, Page: 1, PageSize: 20}, nil
}

func (stubOrders) TransitionOrder(_ context.Context, id uuid.UUID, _ ordering.OrderStatus) (*orderingapp.OrderView, error) {
	return nil, ordering.NewNotFoundError(ordering.EntityOrder, id)
}

func newTestEngine(t *testing.T, maxBody int64) *gin.Engine {
	t.Helper()
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = []string{"https://canteen.example"}

	engine, err := NewEngine(EngineConfig{
		Logger:      zap.NewNop(),
		CORS:        cors,
		MaxBodySize: maxBody,
		Orders:      handler.NewOrderHandler(stubOrders{}, stubOrders{}),
		Health:      handler.NewHealthHandler(nil),
		System:      handler.NewSystemHandler("canteen-backend", "test"),
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, 0)

	registered := make(map[string]bool)
	for _, r := range engine.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/orders",
		"GET /api/v1/orders",
		"GET /api/v1/orders/:id",
		"POST /api/v1/orders/:id/transition",
		"POST /api/v1/orders/:id/confirm",
		"POST /api/v1/orders/:id/fulfill",
		"POST /api/v1/orders/:id/cancel",
		"GET /api/v1/system/info",
		"GET /api/v1/system/ping",
		"GET /health",
		"GET /health/live",
		"GET /health/ready",
	} {
		assert.True(t, registered[want], "route %s should be registered", want)
	}
}

func TestNewEngine_Middleware(t *testing.T) {
	t.Run("echoes request id", func(t *testing.T) {
		engine := newTestEngine(t, 0)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
		req.Header.Set(middleware.RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
		assert.Contains(t, w.Body.String(), `"request_id":"abc-123"`)
	})

	t.Run("answers preflight", func(t *testing.T) {
		engine := newTestEngine(t, 0)
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
		req.Header.Set("Origin", "https://canteen.example")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://canteen.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		engine := newTestEngine(t, 64)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(strings.Repeat("x", 128)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("recovers panics", func(t *testing.T) {
		engine := newTestEngine(t, 0)
		engine.GET("/boom", func(*gin.Context) { panic("boom") })
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("health is live", func(t *testing.T) {
		engine := newTestEngine(t, 0)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
