package checkout

import (
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var (
	ErrLoginRequired = errors.New("please log in to continue to checkout")
	ErrEmptyCart     = errors.New("your cart is empty")
	// ErrExitCheckout is returned by Previous on the first step: the caller
	// leaves the checkout flow and goes back to the cart.
	ErrExitCheckout = errors.New("checkout: exit to cart")
	// ErrPaymentInitiation is the user-facing failure for a card payment that
	// could not be started. The cause is logged, not shown.
	ErrPaymentInitiation = errors.New("the payment could not be started, please try again")
	ErrProcessing        = errors.New("a payment is already being processed")
	ErrNoCheckout        = errors.New("no checkout in progress")
)

// ValidationError is a local, re-enterable input failure. It never changes state.
type ValidationError = domain.ValidationError

func invalid(msg string) error { return domain.Invalid(msg) }

type IllegalTransitionError struct {
	From Step
	To   Step
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal checkout transition from %s to %s", e.From, e.To)
}
