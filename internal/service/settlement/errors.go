package settlement

import "errors"

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAlreadyCancelled    = errors.New("payment already cancelled")
	ErrRefundFailed        = errors.New("gateway did not confirm the refund")
	ErrReservationNotFound = errors.New("reservation not found")
)
