package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/canteen/backend/internal/domain/ordering"
	"gorm.io/gorm"
)

// GormUnitOfWorkFactory creates GORM backed units of work
type GormUnitOfWorkFactory struct {
	db *gorm.DB
}

// NewGormUnitOfWorkFactory creates a new GormUnitOfWorkFactory
func NewGormUnitOfWorkFactory(db *gorm.DB) *GormUnitOfWorkFactory {
	return &GormUnitOfWorkFactory{db: db}
}

// New implements ordering.UnitOfWorkFactory
func (f *GormUnitOfWorkFactory) New() ordering.UnitOfWork {
	return &GormUnitOfWork{db: f.db}
}

// GormUnitOfWork implements ordering.UnitOfWork over one optional transaction.
// It is not safe for concurrent use; each operation takes its own.
type GormUnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

// Begin starts a transaction bound to ctx
func (u *GormUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ordering.ErrTransactionActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}
	u.tx = tx
	return nil
}

// Commit commits the active transaction
func (u *GormUnitOfWork) Commit() error {
	if u.tx == nil {
		return ordering.ErrNoTransaction
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the active transaction; it is a no-op without one
func (u *GormUnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether a transaction is open
func (u *GormUnitOfWork) InTransaction() bool {
	return u.tx != nil
}

func (u *GormUnitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// Parents implements ordering.UnitOfWork
func (u *GormUnitOfWork) Parents() ordering.ParentRepository {
	return NewGormParentRepository(u.conn())
}

// Students implements ordering.UnitOfWork
func (u *GormUnitOfWork) Students() ordering.StudentRepository {
	return NewGormStudentRepository(u.conn())
}

// Canteens implements ordering.UnitOfWork
func (u *GormUnitOfWork) Canteens() ordering.CanteenRepository {
	return NewGormCanteenRepository(u.conn())
}

// MenuItems implements ordering.UnitOfWork
func (u *GormUnitOfWork) MenuItems() ordering.MenuItemRepository {
	return NewGormMenuItemRepository(u.conn())
}

// Orders implements ordering.UnitOfWork
func (u *GormUnitOfWork) Orders() ordering.OrderRepository {
	return NewGormOrderRepository(u.conn())
}

// Interface assertions
var (
	_ ordering.UnitOfWorkFactory = (*GormUnitOfWorkFactory)(nil)
	_ ordering.UnitOfWork        = (*GormUnitOfWork)(nil)
)
