package checkout

import "errors"

var (
	ErrEmptyCart   = errors.New("cart is empty, nothing to place")
	ErrInvalidLine = errors.New("cart line is malformed")
	// ErrGuestInfoMissing is returned when an unauthenticated checkout
	// arrives without the contact details needed for a guest customer.
	ErrGuestInfoMissing = errors.New("guest contact details are required")
)
