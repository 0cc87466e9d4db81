package ordering

import (
	"context"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Store gateway errors
var (
	// ErrTransactionActive is returned by Begin when the unit of work already holds a transaction
	ErrTransactionActive = shared.NewDomainError("TRANSACTION_ACTIVE", "Transaction already started")
	// ErrNoTransaction is returned by Commit when no transaction is active
	ErrNoTransaction = shared.NewDomainError("NO_TRANSACTION", "No transaction to commit")
	// ErrDuplicateIdempotencyKey is returned by OrderRepository.Insert when the key's unique constraint fires
	ErrDuplicateIdempotencyKey = shared.NewDomainError("DUPLICATE_IDEMPOTENCY_KEY", "Idempotency key already used by another order")
)

// ParentRepository reads and updates parents
type ParentRepository interface {
	// FindByID returns shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Parent, error)
	// FindByIDForUpdate loads the parent holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Parent, error)
	// Update persists the wallet under an optimistic version check and bumps Version.
	// Returns shared.ErrConcurrencyConflict when the row changed underneath.
	Update(ctx context.Context, parent *Parent) error
}

// StudentRepository reads students
type StudentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Student, error)
}

// CanteenRepository reads canteens
type CanteenRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Canteen, error)
}

// MenuItemRepository reads and updates menu items
type MenuItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	// FindByIDs returns the items that exist; missing IDs are simply absent
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*MenuItem, error)
	// FindByIDsForUpdate is FindByIDs holding row locks until the transaction ends
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*MenuItem, error)
	// Update persists stock under an optimistic version check and bumps Version
	Update(ctx context.Context, item *MenuItem) error
}

// OrderFilter narrows order listings
type OrderFilter struct {
	shared.Filter
	ParentID       *uuid.UUID
	StudentID      *uuid.UUID
	CanteenID      *uuid.UUID
	Status         *OrderStatus
	FulfilmentDate *time.Time
}

// OrderRepository reads and writes orders with their items
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByIdempotencyKey returns shared.ErrNotFound when no order holds the key
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	// Insert persists a new order and its items.
	// Returns ErrDuplicateIdempotencyKey when another order holds the same key.
	Insert(ctx context.Context, order *Order) error
	// Update persists status changes under an optimistic version check and bumps Version
	Update(ctx context.Context, order *Order) error
	// List returns one page of orders and the total matching count
	List(ctx context.Context, filter OrderFilter) ([]*Order, int64, error)
}

// UnitOfWork is one transactional session over the canteen store.
// Repositories obtained from it run inside the active transaction, or
// directly against the store when none is active.
type UnitOfWork interface {
	// Begin starts a transaction bound to ctx. Fails with ErrTransactionActive if one is open.
	Begin(ctx context.Context) error
	// Commit commits the active transaction. Fails with ErrNoTransaction if none is open.
	Commit() error
	// Rollback discards the active transaction. It is a no-op when none is open.
	Rollback() error
	// InTransaction reports whether a transaction is open
	InTransaction() bool

	Parents() ParentRepository
	Students() StudentRepository
	Canteens() CanteenRepository
	MenuItems() MenuItemRepository
	Orders() OrderRepository
}

// UnitOfWorkFactory creates a fresh UnitOfWork per operation
type UnitOfWorkFactory interface {
	New() UnitOfWork
}
