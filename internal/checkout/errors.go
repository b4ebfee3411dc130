package checkout

import (
	"errors"
	"fmt"

	"grocery-checkout/internal/inventory"
)

var (
	ErrEmptyOrder           = errors.New("order has no items")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrProductNotFound      = errors.New("product not found")
	ErrNotAuthorized        = errors.New("not authorized to access this order")
	ErrNotCancellable       = errors.New("order can no longer be cancelled")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidAddress       = errors.New("shipping address and city are required")
	ErrNotManualPayment     = errors.New("order was not paid by mobile wallet")
)

// InsufficientStockError names the product whose pool could not cover a line.
type InsufficientStockError struct {
	Product   string
	Label     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.Product, e.Label, e.Requested, e.Available)
}

// Is lets callers match with errors.Is(err, inventory.ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == inventory.ErrInsufficientStock
}
