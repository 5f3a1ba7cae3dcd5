package pass

import "errors"

var (
	ErrPassNotFound         = errors.New("no active pass found")
	ErrInsufficientCapacity = errors.New("insufficient pass capacity")
	ErrForbidden            = errors.New("pass belongs to another user")
	ErrInvalidUnits         = errors.New("invalid units: must be greater than 0")
	ErrInternal             = errors.New("internal error")
)
