package cache

import (
	"context"
	"sync"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultCleanupInterval is how often expired keys are swept
const DefaultCleanupInterval = 5 * time.Minute

// entry is a remembered order ID with its expiry
type entry struct {
	orderID   uuid.UUID
	expiresAt time.Time
}

// MemoryIdempotencyCache keeps key -> order hints in process memory.
// Suitable for single-instance deployments and tests.
type MemoryIdempotencyCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryIdempotencyCache creates the cache and starts its sweeper.
// A non-positive interval uses DefaultCleanupInterval.
func NewMemoryIdempotencyCache(cleanupInterval time.Duration) *MemoryIdempotencyCache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	c := &MemoryIdempotencyCache{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop(cleanupInterval)

	return c
}

// Remember records key -> orderID until ttl elapses
func (c *MemoryIdempotencyCache) Remember(_ context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{orderID: orderID, expiresAt: c.now().Add(ttl)}
	return nil
}

// Lookup returns the remembered order ID for key, ignoring expired entries
func (c *MemoryIdempotencyCache) Lookup(_ context.Context, key string) (uuid.UUID, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return uuid.Nil, false, nil
	}
	return e.orderID, true, nil
}

// Forget drops key
func (c *MemoryIdempotencyCache) Forget(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (c *MemoryIdempotencyCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *MemoryIdempotencyCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries
func (c *MemoryIdempotencyCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries held, expired or not
func (c *MemoryIdempotencyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ shared.IdempotencyCache = (*MemoryIdempotencyCache)(nil)
