package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdempotencyCache remembers which order an idempotency key resolved to.
// It is a lookup hint only: the store's unique constraint stays authoritative,
// so implementations may lose entries at any time.
type IdempotencyCache interface {
	// Remember records key -> orderID for ttl
	Remember(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error

	// Lookup returns the remembered order ID, if any
	Lookup(ctx context.Context, key string) (uuid.UUID, bool, error)

	// Forget drops a remembered key
	Forget(ctx context.Context, key string) error

	// Close releases resources
	Close() error
}

// IdempotencyConfig holds configuration for the idempotency cache
type IdempotencyConfig struct {
	// TTL bounds how long a key -> order hint is kept. Default: 24 hours
	TTL time.Duration

	// Enabled determines whether the cache is consulted at all
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
