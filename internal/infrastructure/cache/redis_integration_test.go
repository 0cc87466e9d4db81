//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisIdempotencyCache_Integration(t *testing.T) {
	c, err := NewRedisIdempotencyCache(RedisConfig{Addr: newRedisContainer(t)})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	orderID := uuid.New()

	_, ok, err := c.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Remember(ctx, "abc", orderID, time.Minute))
	got, ok, err := c.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, orderID, got)

	ttl, err := c.Client().TTL(ctx, DefaultKeyPrefix+"abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Client().Set(ctx, DefaultKeyPrefix+"bad", "not-a-uuid", time.Minute).Err())
	_, ok, err = c.Lookup(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Forget(ctx, "abc"))
	_, ok, err = c.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
