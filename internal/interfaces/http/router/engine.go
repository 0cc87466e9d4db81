package router

import (
	"github.com/canteen/backend/internal/infrastructure/logger"
	"github.com/canteen/backend/internal/interfaces/http/handler"
	"github.com/canteen/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngineConfig assembles the HTTP surface
type EngineConfig struct {
	Logger         *zap.Logger
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
	MaxBodySize    int64
	TrustedProxies []string

	Orders *handler.OrderHandler
	Health *handler.HealthHandler
	System *handler.SystemHandler
}

// NewEngine builds the gin engine with the middleware chain and all routes.
// Recovery runs outermost; request ids exist before tracing and access logs.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(cfg.Logger), middleware.RequestID(cfg.Logger))
	engine.Use(middleware.Tracing(cfg.Tracing)...)
	engine.Use(
		logger.GinMiddleware(cfg.Logger),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Ready)
		engine.GET("/health/live", cfg.Health.Live)
		engine.GET("/health/ready", cfg.Health.Ready)
	}

	r := NewRouter(engine)
	if cfg.Orders != nil {
		r.Register(OrderRoutes(cfg.Orders))
	}
	if cfg.System != nil {
		r.Register(SystemRoutes(cfg.System))
	}
	r.Setup()
	return engine, nil
}

// OrderRoutes mounts order placement and lifecycle under /orders
func OrderRoutes(h *handler.OrderHandler) *DomainGroup {
	return NewDomainGroup("orders", "/orders").
		POST("", h.Place).
		GET("", h.List).
		GET("/:id", h.GetByID).
		POST("/:id/transition", h.Transition).
		POST("/:id/confirm", h.Confirm).
		POST("/:id/fulfill", h.Fulfill).
		POST("/:id/cancel", h.Cancel)
}

// SystemRoutes mounts service information under /system
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo).
		GET("/ping", h.Ping)
}
