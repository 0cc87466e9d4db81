//go:build integration

package persistence

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	appordering "github.com/canteen/backend/internal/application/ordering"
	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"
)

// newPostgresDatabase starts a PostgreSQL container, applies the embedded
// migrations and loads the reference data
func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("canteen_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(postgres.Open(dsn), gormlogger.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)

	migrator, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	require.NoError(t, Seed(ctx, db.DB, ReferenceData(seedTime)))
	return db
}

func newPostgresPlacement(t *testing.T, db *Database) (*GormUnitOfWorkFactory, *appordering.PlacementService) {
	factory := NewGormUnitOfWorkFactory(db.DB)
	service := appordering.NewPlacementService(
		factory,
		ordering.NewPipeline(),
		appordering.NewIdempotencyGuard(),
		appordering.WithClock(placementClock),
	)
	return factory, service
}

func TestPostgres_DuplicateKeyIsClassified(t *testing.T) {
	db := newPostgresDatabase(t)
	orders := NewGormOrderRepository(db.DB)
	ctx := context.Background()
	key := "abc"

	require.NoError(t, orders.Insert(ctx, newSeedOrder(t, &key, seedTime)))
	err := orders.Insert(ctx, newSeedOrder(t, &key, seedTime))
	assert.ErrorIs(t, err, ordering.ErrDuplicateIdempotencyKey)

	// the index is partial, keyless orders never collide
	require.NoError(t, orders.Insert(ctx, newSeedOrder(t, nil, seedTime)))
	require.NoError(t, orders.Insert(ctx, newSeedOrder(t, nil, seedTime)))
}

func TestPostgres_ConcurrentSameKeyPlacesOnce(t *testing.T) {
	db := newPostgresDatabase(t)
	factory, service := newPostgresPlacement(t, db)

	const attempts = 10
	var created, replayed atomic.Int32

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			result, err := service.PlaceOrder(context.Background(), liamLunch("race"))
			if err != nil {
				return err
			}
			if result.Replayed {
				replayed.Add(1)
			} else {
				created.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(attempts-1), replayed.Load())

	parent, err := factory.New().Parents().FindByID(context.Background(), SeedID(SeedParent, 1))
	require.NoError(t, err)
	assert.Equal(t, "36.00", parent.WalletBalance.StringFixed(2))
}

func TestPostgres_RowLocksSerializeStock(t *testing.T) {
	db := newPostgresDatabase(t)
	factory, service := newPostgresPlacement(t, db)

	const attempts = 6
	var placed, shortOfStock atomic.Int32

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := service.PlaceOrder(context.Background(), appordering.PlaceOrderCommand{
				ParentID:       SeedID(SeedParent, 3),
				StudentID:      SeedID(SeedStudent, 4),
				CanteenID:      SeedID(SeedCanteen, 2),
				FulfilmentDate: fulfilmentDay,
				Items:          []appordering.OrderLineCommand{{MenuItemID: SeedID(SeedMenuItem, 5), Quantity: 3}},
				IdempotencyKey: fmt.Sprintf("salad-%d", i),
			})
			switch {
			case err == nil:
				placed.Add(1)
			case ordering.IsKind(err, ordering.FailureInsufficientStock):
				shortOfStock.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(4), placed.Load())
	assert.Equal(t, int32(2), shortOfStock.Load())

	item, err := factory.New().MenuItems().FindByID(context.Background(), SeedID(SeedMenuItem, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, *item.DailyStockCount)

	parent, err := factory.New().Parents().FindByID(context.Background(), SeedID(SeedParent, 3))
	require.NoError(t, err)
	assert.Equal(t, "16.00", parent.WalletBalance.StringFixed(2))
}

func TestPostgres_MigrationsRoundTrip(t *testing.T) {
	db := newPostgresDatabase(t)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	migrator, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Down())
	require.NoError(t, migrator.Up())
}
