package catalog

import "errors"

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrPackageInactive = errors.New("package is not available for purchase")
	ErrInternal        = errors.New("internal error")
)
