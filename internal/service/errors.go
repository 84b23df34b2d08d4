package service

import (
	"errors"
	"fmt"
)

// Error kinds. Anything that does not match one of these is an internal error.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service error")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Error carries a user-facing message and the kind it belongs to.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrProductNotFound = &Error{ErrNotFound, "Product not found"}
	ErrCartNotFound    = &Error{ErrNotFound, "Cart not found"}
	ErrCartItemMissing = &Error{ErrNotFound, "Cart item not found"}
	ErrOrderNotFound   = &Error{ErrNotFound, "Order not found"}
	ErrPaymentNotFound = &Error{ErrNotFound, "Payment not found"}

	ErrEmptyCart            = &Error{ErrValidation, "Cart is empty"}
	ErrInvalidQuantity      = &Error{ErrValidation, "Quantity must be at least 1"}
	ErrInvalidPaymentMethod = &Error{ErrValidation, "Invalid payment method"}
	ErrInvalidAddress       = &Error{ErrValidation, "Shipping address is required"}
	ErrInvalidSize          = &Error{ErrValidation, "Invalid size"}
	ErrOrderAlreadyPaid     = &Error{ErrValidation, "Order is already paid"}
	ErrOrderCancelled       = &Error{ErrValidation, "Order is cancelled"}

	ErrCodeExhausted = &Error{ErrConflict, "Could not allocate a unique code, please retry"}

	ErrUserAlreadyExists  = &Error{ErrConflict, "User already exists"}
	ErrCategoryExists     = &Error{ErrConflict, "Category already exists"}
	ErrInvalidCredentials = &Error{ErrUnauthorized, "Invalid credentials"}
)

func errProductUnavailable(name string) *Error {
	return newError(ErrValidation, "Product %s is not available", name)
}

func errInsufficientStock(name string, available int) *Error {
	return newError(ErrValidation, "Insufficient stock for %s. Available: %d", name, available)
}

// errStockExhausted reports a stock guard that failed after validation passed,
// i.e. another checkout took the units first.
func errStockExhausted(name string) *Error {
	return newError(ErrConflict, "Insufficient stock for %s", name)
}
