package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatsUnavailable  = errors.New("some seats unavailable")
	ErrSeatNotLocked     = errors.New("seat not locked")
	ErrAlreadyCancelled  = errors.New("payment already cancelled")
	ErrUserNotFound      = errors.New("user not found")
	ErrScreeningNotFound = errors.New("screening not found")
)
