package ordering

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyOutcome is the result class of an idempotency check
type IdempotencyOutcome int

const (
	// OutcomeNoKey means the request carried no key and is always processed
	OutcomeNoKey IdempotencyOutcome = iota
	// OutcomeNotFound means the key is unused
	OutcomeNotFound
	// OutcomeFound means an order already holds the key
	OutcomeFound
)

// String returns the outcome name
func (o IdempotencyOutcome) String() string {
	switch o {
	case OutcomeNoKey:
		return "no_key"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFound:
		return "found"
	}
	return "unknown"
}

// IdempotencyCheck is returned by CheckOrFetch. Order is set only for OutcomeFound.
type IdempotencyCheck struct {
	Outcome IdempotencyOutcome
	Order   *ordering.Order
}

// IdempotencyGuard resolves an idempotency key to a previously placed order.
// The store's unique index is authoritative; the optional cache only saves
// the key lookup and every hit is verified against the store.
type IdempotencyGuard struct {
	cache  shared.IdempotencyCache
	ttl    time.Duration
	logger *zap.Logger
}

// GuardOption configures an IdempotencyGuard
type GuardOption func(*IdempotencyGuard)

// WithIdempotencyCache enables the key -> order hint cache
func WithIdempotencyCache(cache shared.IdempotencyCache, ttl time.Duration) GuardOption {
	return func(g *IdempotencyGuard) {
		g.cache = cache
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuardLogger sets the logger for cache faults
func WithGuardLogger(logger *zap.Logger) GuardOption {
	return func(g *IdempotencyGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewIdempotencyGuard creates a guard. Without options it only consults the store.
func NewIdempotencyGuard(opts ...GuardOption) *IdempotencyGuard {
	g := &IdempotencyGuard{
		ttl:    shared.DefaultIdempotencyConfig().TTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckOrFetch looks the key up through uow. It does not begin a transaction;
// the caller decides whether the lookup runs inside one.
func (g *IdempotencyGuard) CheckOrFetch(ctx context.Context, uow ordering.UnitOfWork, key string) (IdempotencyCheck, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return IdempotencyCheck{Outcome: OutcomeNoKey}, nil
	}
	if err := ordering.ValidateIdempotencyKey(&key); err != nil {
		return IdempotencyCheck{}, err
	}

	if order := g.fromCache(ctx, uow, key); order != nil {
		return IdempotencyCheck{Outcome: OutcomeFound, Order: order}, nil
	}

	order, err := uow.Orders().FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return IdempotencyCheck{Outcome: OutcomeNotFound}, nil
		}
		return IdempotencyCheck{}, ordering.NewStoreFailureError(err)
	}
	g.Remember(ctx, key, order.ID)
	return IdempotencyCheck{Outcome: OutcomeFound, Order: order}, nil
}

// fromCache returns the order a cached hint points at, or nil when the hint is
// missing, stale or unreadable
func (g *IdempotencyGuard) fromCache(ctx context.Context, uow ordering.UnitOfWork, key string) *ordering.Order {
	if g.cache == nil {
		return nil
	}
	orderID, ok, err := g.cache.Lookup(ctx, key)
	if err != nil {
		g.logger.Warn("Idempotency cache lookup failed",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}

	order, err := uow.Orders().FindByID(ctx, orderID)
	if err != nil || order.IdempotencyKey == nil || *order.IdempotencyKey != key {
		g.Forget(ctx, key)
		return nil
	}
	return order
}

// Remember records key -> orderID in the cache. Failures are logged only.
func (g *IdempotencyGuard) Remember(ctx context.Context, key string, orderID uuid.UUID) {
	if g.cache == nil || key == "" {
		return
	}
	if err := g.cache.Remember(ctx, key, orderID, g.ttl); err != nil {
		g.logger.Warn("Idempotency cache write failed",
			zap.String("idempotency_key", key),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}
}

// Forget drops a cached hint. Failures are logged only.
func (g *IdempotencyGuard) Forget(ctx context.Context, key string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Forget(ctx, key); err != nil {
		g.logger.Warn("Idempotency cache delete failed",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
}
