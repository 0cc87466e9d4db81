package cache

import (
	"fmt"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency cache backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// IdempotencyCacheFactory builds the idempotency cache named by configuration
type IdempotencyCacheFactory struct {
	cfg                   config.IdempotencyConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyCacheFactoryOption configures the factory
type IdempotencyCacheFactoryOption func(*IdempotencyCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyCacheFactoryOption {
	return func(f *IdempotencyCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) IdempotencyCacheFactoryOption {
	return func(f *IdempotencyCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyCacheFactory creates a new factory
func NewIdempotencyCacheFactory(cfg config.IdempotencyConfig, redisCfg config.RedisConfig, opts ...IdempotencyCacheFactoryOption) *IdempotencyCacheFactory {
	f := &IdempotencyCacheFactory{
		cfg:                   cfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the configured cache. Backend "none" yields a nil cache,
// which the idempotency guard treats as disabled.
func (f *IdempotencyCacheFactory) Create() (shared.IdempotencyCache, error) {
	switch f.cfg.Cache {
	case BackendNone:
		f.logger.Info("Idempotency cache disabled")
		return nil, nil
	case BackendMemory, "":
		f.logger.Info("Using in-memory idempotency cache")
		return NewMemoryIdempotencyCache(f.cfg.CleanupInterval), nil
	case BackendRedis:
		return f.createRedis()
	default:
		return nil, fmt.Errorf("unknown idempotency cache backend %q", f.cfg.Cache)
	}
}

func (f *IdempotencyCacheFactory) createRedis() (shared.IdempotencyCache, error) {
	c, err := NewRedisIdempotencyCache(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis idempotency cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency cache but unavailable: %w", err)
	}

	// The unique index stays authoritative, so a local cache only costs hit rate
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency cache",
		zap.Error(err),
	)
	return NewMemoryIdempotencyCache(f.cfg.CleanupInterval), nil
}
