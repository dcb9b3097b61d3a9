package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden indicates the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock is matched by every *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrIllegalTransition is matched by every *IllegalTransitionError.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("conflict")

	ErrCartEmpty = &ValidationError{Msg: "cart is empty"}
)

// ValidationError reports bad input. It is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError from a format string.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the product that could not be reserved and
// the quantity that was available when the guard failed.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s, only %d available", name, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// IllegalTransitionError is returned when an order status change is not in
// the transition table.
type IllegalTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// ConflictError means a transaction was aborted by a concurrent modification.
// Retrying the whole operation from scratch is safe.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: concurrent modification, please retry", e.Op)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ServerError wraps an unexpected failure. Error hides the cause; Unwrap keeps
// it for logging.
type ServerError struct {
	Op  string
	Err error
}

func (e *ServerError) Error() string { return e.Op + ": internal error" }

func (e *ServerError) Unwrap() error { return e.Err }

// IsBusiness reports whether err belongs to the caller-facing taxonomy and
// should be surfaced unchanged rather than wrapped in a ServerError.
func IsBusiness(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrConflict):
		return true
	}
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
