package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	orderingapp "github.com/canteen/backend/internal/application/ordering"
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/cache"
	"github.com/canteen/backend/internal/infrastructure/config"
	"github.com/canteen/backend/internal/infrastructure/event"
	"github.com/canteen/backend/internal/infrastructure/logger"
	"github.com/canteen/backend/internal/infrastructure/migration"
	"github.com/canteen/backend/internal/infrastructure/persistence"
	"github.com/canteen/backend/internal/infrastructure/telemetry"
	"github.com/canteen/backend/internal/interfaces/http/handler"
	"github.com/canteen/backend/internal/interfaces/http/middleware"
	"github.com/canteen/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "canteen-backend:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := &logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	}
	// the bootstrap logger reports telemetry setup; the final one tees into OTLP
	bootLog, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, version, bootLog)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			bootLog.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	log, err := logger.New(logCfg, providers.Logs.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting canteen backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.App.Location().String()),
	)

	db, err := openDatabase(cfg, providers, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	idemCache, err := cache.NewIdempotencyCacheFactory(cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		return fmt.Errorf("initialize idempotency cache: %w", err)
	}
	if idemCache != nil {
		defer idemCache.Close()
	}

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewOrderEventLogger(log))
	if cfg.Event.Broker == "rabbitmq" {
		publisher, err := event.NewAMQPPublisher(ctx, event.AMQPConfig{
			URL:      cfg.Event.AMQPURL,
			Exchange: cfg.Event.Exchange,
		}, log)
		if err != nil {
			return fmt.Errorf("connect event broker: %w", err)
		}
		defer publisher.Close()
		bus.Subscribe(publisher)
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}

	var metrics orderingapp.PlacementMetrics
	if providers.Meter.IsEnabled() {
		pm, err := telemetry.NewPlacementMetrics(providers.Meter.Meter("canteen/ordering"))
		if err != nil {
			return fmt.Errorf("initialize placement metrics: %w", err)
		}
		metrics = pm
	}

	uowFactory := persistence.NewGormUnitOfWorkFactory(db.DB)
	serviceOpts := []orderingapp.Option{
		orderingapp.WithEventPublisher(bus),
		orderingapp.WithLogger(log),
		orderingapp.WithDuplicatePolicy(orderingapp.DuplicatePolicy(cfg.Ordering.DuplicatePolicy)),
	}
	if metrics != nil {
		serviceOpts = append(serviceOpts, orderingapp.WithMetrics(metrics))
	}

	placement := orderingapp.NewPlacementService(
		uowFactory,
		ordering.NewPipeline(ordering.WithLocation(cfg.App.Location())),
		orderingapp.NewIdempotencyGuard(
			orderingapp.WithIdempotencyCache(idemCache, cfg.Idempotency.TTL),
			orderingapp.WithGuardLogger(log),
		),
		serviceOpts...,
	)
	orders := orderingapp.NewOrderService(uowFactory, serviceOpts...)

	engine, err := newEngine(cfg, providers, log, db, idemCache, placement, orders)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		// drain requests before the bus stops so their events are still delivered
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, bus.Stop(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

// openDatabase connects, instruments and prepares the schema
func openDatabase(cfg *config.Config, providers *telemetry.Providers, log *zap.Logger) (*persistence.Database, error) {
	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("Database connected", zap.String("driver", db.Driver))

	dbSystem := "postgresql"
	if db.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	tracingCfg := telemetry.DBTracing(cfg.Telemetry, dbSystem)
	tracingCfg.TracerProvider = otel.GetTracerProvider()
	if err := telemetry.NewDBTracingPlugin(tracingCfg, log).Register(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register database tracing: %w", err)
	}

	if providers.Meter.IsEnabled() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			_, err = telemetry.RegisterPoolMetrics(providers.Meter.Meter("canteen/database"), sqlDB)
		}
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}

	if err := prepareSchema(cfg, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// prepareSchema applies versioned migrations on PostgreSQL and AutoMigrate on
// SQLite, then loads the reference data when seeding is enabled
func prepareSchema(cfg *config.Config, db *persistence.Database, log *zap.Logger) error {
	if cfg.Database.AutoMigrate {
		if db.Driver == config.DriverSQLite {
			if err := db.AutoMigrate(); err != nil {
				return err
			}
		} else {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return fmt.Errorf("get sql.DB: %w", err)
			}
			m, err := migration.New(sqlDB, log.Named("migrate"))
			if err != nil {
				return err
			}
			// closing the migrator would close the shared *sql.DB
			if err := m.Up(); err != nil {
				return err
			}
		}
	}

	if cfg.Database.Seed {
		data := persistence.ReferenceData(time.Now().UTC())
		if err := persistence.Seed(context.Background(), db.DB, data); err != nil {
			return fmt.Errorf("seed reference data: %w", err)
		}
		log.Info("Reference data seeded",
			zap.Int("parents", len(data.Parents)),
			zap.Int("canteens", len(data.Canteens)),
			zap.Int("menu_items", len(data.MenuItems)),
		)
	}
	return nil
}

func newEngine(
	cfg *config.Config,
	providers *telemetry.Providers,
	log *zap.Logger,
	db *persistence.Database,
	idemCache shared.IdempotencyCache,
	placement handler.OrderPlacer,
	orders handler.OrderReader,
) (*gin.Engine, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handler.CheckFunc{
		"database": func(context.Context) error { return db.Ping() },
	}
	if rc, ok := idemCache.(*cache.RedisIdempotencyCache); ok {
		checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	tracing := middleware.DefaultTracingConfig()
	tracing.Enabled = providers.Tracer.IsEnabled()
	if cfg.Telemetry.ServiceName != "" {
		tracing.ServiceName = cfg.Telemetry.ServiceName
	}

	return router.NewEngine(router.EngineConfig{
		Logger:         log,
		CORS:           cors,
		Tracing:        tracing,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Orders:         handler.NewOrderHandler(placement, orders),
		Health:         handler.NewHealthHandler(checks),
		System:         handler.NewSystemHandler(cfg.App.Name, version),
	})
}
