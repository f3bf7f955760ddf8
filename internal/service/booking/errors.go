package booking

import "errors"

var (
	ErrInvalidSeatCount  = errors.New("a booking covers one or two seats")
	ErrInvalidAmount     = errors.New("total amount must be positive")
	ErrInvalidHoldToken  = errors.New("missing or malformed hold token")
	ErrScreeningNotFound = errors.New("screening not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatsUnavailable  = errors.New("some seats are unavailable")
	ErrSeatNotLocked     = errors.New("seat is not locked under this hold")
	ErrNoReservations    = errors.New("user has no reservations")
)
