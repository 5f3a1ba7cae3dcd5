package credit

import "errors"

var (
	ErrInsufficientCredit = errors.New("insufficient credit balance")
	ErrInvalidAmount      = errors.New("invalid amount: must be greater than 0")
	ErrCreditNotFound     = errors.New("credit not found")
	ErrInternal           = errors.New("internal error")
)
