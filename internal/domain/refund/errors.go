package refund

import "errors"

var (
	ErrRefundNotFound = errors.New("refund transaction not found")
	ErrRefundConflict = errors.New("refund already requested or processed for this booking")
	ErrNotConfirmed   = errors.New("booking has no confirmed payment")
	ErrNotRequested   = errors.New("refund transaction is not in requested state")
	ErrInternal       = errors.New("internal error")
)
