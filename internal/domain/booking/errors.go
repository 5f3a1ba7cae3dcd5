package booking

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNotOwner        = errors.New("booking belongs to another user")
	ErrAlreadyPaid     = errors.New("booking payment already confirmed")
	ErrInvalidAmount   = errors.New("invalid amount: must be greater than 0")
	ErrInternal        = errors.New("internal error")
)
