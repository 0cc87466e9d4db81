package persistence

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// idempotencyKeyConstraint is the unique index guarding orders.idempotency_key
const idempotencyKeyConstraint = "idx_orders_idempotency_key"

// isUniqueViolation reports whether err is a unique constraint failure on the
// given index (PostgreSQL) or column (SQLite). An empty name matches any unique failure.
func isUniqueViolation(err error, constraint, column string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			(column == "" || strings.Contains(liteErr.Error(), column))
	}

	// Translated by the dialector; the constraint name is no longer available
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// isDuplicateIdempotencyKey reports whether an order insert hit the idempotency key index
func isDuplicateIdempotencyKey(err error) bool {
	return isUniqueViolation(err, idempotencyKeyConstraint, "orders.idempotency_key")
}
