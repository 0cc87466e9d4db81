package ordering

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FailureKind tags each member of the placement failure taxonomy
type FailureKind string

const (
	FailureNotFound            FailureKind = "NOT_FOUND"
	FailureCutOffExceeded      FailureKind = "CUT_OFF_EXCEEDED"
	FailureInsufficientStock   FailureKind = "INSUFFICIENT_STOCK"
	FailureInsufficientBalance FailureKind = "INSUFFICIENT_BALANCE"
	FailureAllergenConflict    FailureKind = "ALLERGEN_CONFLICT"
	FailureDuplicateRequest    FailureKind = "DUPLICATE_REQUEST"
	FailureInvalidTransition   FailureKind = "INVALID_TRANSITION"
	FailureStoreFailure        FailureKind = "STORE_FAILURE"
)

// EntityKind names the entity a NotFoundError refers to
type EntityKind string

const (
	EntityParent   EntityKind = "parent"
	EntityStudent  EntityKind = "student"
	EntityCanteen  EntityKind = "canteen"
	EntityMenuItem EntityKind = "menu_item"
	EntityOrder    EntityKind = "order"
)

// Failure is the closed set of typed outcomes an ordering operation can fail with.
// Only types in this package implement it; switch on Kind() to branch exhaustively.
type Failure interface {
	error
	Kind() FailureKind
	isFailure()
}

// AsFailure extracts a Failure from err's chain
func AsFailure(err error) (Failure, bool) {
	var f Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err carries a Failure of the given kind
func IsKind(err error, kind FailureKind) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind() == kind
}

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Entity EntityKind `json:"entity_kind"`
	ID     uuid.UUID  `json:"id"`
}

func NewNotFoundError(kind EntityKind, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Kind() FailureKind { return FailureNotFound }
func (e *NotFoundError) isFailure()        {}

// CutOffExceededError reports an order placed after the canteen's cut-off
type CutOffExceededError struct {
	CutOff    time.Time `json:"cutoff_instant"`
	Requested time.Time `json:"requested_instant"`
}

func NewCutOffExceededError(cutOff, requested time.Time) *CutOffExceededError {
	return &CutOffExceededError{CutOff: cutOff, Requested: requested}
}

func (e *CutOffExceededError) Error() string {
	return fmt.Sprintf("Order cut-off time (%s) has been exceeded. Requested at %s",
		e.CutOff.Format("2006-01-02 15:04"), e.Requested.In(e.CutOff.Location()).Format("2006-01-02 15:04"))
}

func (e *CutOffExceededError) Kind() FailureKind { return FailureCutOffExceeded }
func (e *CutOffExceededError) isFailure()        {}

// InsufficientStockError reports a line asking for more than the daily stock
type InsufficientStockError struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Requested  int       `json:"requested"`
	Available  int       `json:"available"`
}

func NewInsufficientStockError(item *MenuItem, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		MenuItemID: item.ID,
		Name:       item.Name,
		Requested:  requested,
		Available:  available,
	}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for '%s'. Requested: %d, Available: %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Kind() FailureKind { return FailureInsufficientStock }
func (e *InsufficientStockError) isFailure()        {}

// InsufficientBalanceError reports a wallet that cannot cover the order total
type InsufficientBalanceError struct {
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

func NewInsufficientBalanceError(required, available decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{Required: required, Available: available}
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient wallet balance. Required: %s, Available: %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Kind() FailureKind { return FailureInsufficientBalance }
func (e *InsufficientBalanceError) isFailure()        {}

// AllergenConflictError reports a menu item carrying one of the student's allergens
type AllergenConflictError struct {
	StudentName     string   `json:"student_name"`
	MenuItemName    string   `json:"menu_item_name"`
	ConflictingTags []string `json:"conflicting_tags"`
}

func NewAllergenConflictError(studentName, menuItemName string, tags []string) *AllergenConflictError {
	return &AllergenConflictError{
		StudentName:     studentName,
		MenuItemName:    menuItemName,
		ConflictingTags: tags,
	}
}

func (e *AllergenConflictError) Error() string {
	return fmt.Sprintf("Allergen conflict for student '%s' with menu item '%s'. Conflicting allergens: %s",
		e.StudentName, e.MenuItemName, strings.Join(e.ConflictingTags, ", "))
}

func (e *AllergenConflictError) Kind() FailureKind { return FailureAllergenConflict }
func (e *AllergenConflictError) isFailure()        {}

// DuplicateRequestError reports that an idempotency key already produced an order.
// Placement itself resolves duplicates to the existing order; this form exists for
// callers that prefer to surface the replay as a conflict.
type DuplicateRequestError struct {
	IdempotencyKey  string    `json:"idempotency_key"`
	ExistingOrderID uuid.UUID `json:"existing_order_id"`
}

func NewDuplicateRequestError(key string, existingOrderID uuid.UUID) *DuplicateRequestError {
	return &DuplicateRequestError{IdempotencyKey: key, ExistingOrderID: existingOrderID}
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("Order with idempotency key '%s' already exists (Order ID: %s)", e.IdempotencyKey, e.ExistingOrderID)
}

func (e *DuplicateRequestError) Kind() FailureKind { return FailureDuplicateRequest }
func (e *DuplicateRequestError) isFailure()        {}

// InvalidTransitionError reports a lifecycle event not allowed from the current state
type InvalidTransitionError struct {
	From  OrderStatus `json:"from_state"`
	Event OrderEvent  `json:"event"`
}

func NewInvalidTransitionError(from OrderStatus, event OrderEvent) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, Event: event}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Cannot %s order in %s status", e.Event, e.From)
}

func (e *InvalidTransitionError) Kind() FailureKind { return FailureInvalidTransition }
func (e *InvalidTransitionError) isFailure()        {}

// StoreFailureError wraps any fault raised by the transactional store
type StoreFailureError struct {
	Cause error `json:"-"`
}

func NewStoreFailureError(cause error) *StoreFailureError {
	return &StoreFailureError{Cause: cause}
}

func (e *StoreFailureError) Error() string {
	if e.Cause == nil {
		return "store failure"
	}
	return "store failure: " + e.Cause.Error()
}

func (e *StoreFailureError) Unwrap() error { return e.Cause }

func (e *StoreFailureError) Kind() FailureKind { return FailureStoreFailure }
func (e *StoreFailureError) isFailure()        {}
