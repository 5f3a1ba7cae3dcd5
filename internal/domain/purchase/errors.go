package purchase

import "errors"

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrPurchaseFailed   = errors.New("purchase has failed and cannot be completed")
	ErrNotOwner         = errors.New("purchase belongs to another user")
	ErrInvalidQuantity  = errors.New("invalid quantity: must be greater than 0")
	ErrInternal         = errors.New("internal error")
)
