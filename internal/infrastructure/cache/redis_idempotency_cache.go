package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces idempotency keys in Redis
const DefaultKeyPrefix = "canteen:idempotency:"

// RedisIdempotencyCache shares key -> order hints between instances through Redis
type RedisIdempotencyCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedisIdempotencyCache connects to Redis and verifies the connection
func NewRedisIdempotencyCache(cfg RedisConfig) (*RedisIdempotencyCache, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIdempotencyCacheWithClient(client, DefaultKeyPrefix), nil
}

// NewRedisIdempotencyCacheWithClient wraps an existing client
func NewRedisIdempotencyCacheWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Remember stores key -> orderID with ttl
func (c *RedisIdempotencyCache) Remember(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, orderID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to remember idempotency key: %w", err)
	}
	return nil
}

// Lookup returns the order ID remembered for key
func (c *RedisIdempotencyCache) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// a value this cache never wrote; treat as a miss
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Forget deletes key
func (c *RedisIdempotencyCache) Forget(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to forget idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisIdempotencyCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *RedisIdempotencyCache) Client() *redis.Client {
	return c.client
}

var _ shared.IdempotencyCache = (*RedisIdempotencyCache)(nil)
