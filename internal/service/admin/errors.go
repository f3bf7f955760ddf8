package admin

import "errors"

var (
	ErrTheaterConflict   = errors.New("theater already exists")
	ErrSeatsConflict     = errors.New("seat already exists")
	ErrScreeningConflict = errors.New("screening already exists")
	ErrFailedToInitSeats = errors.New("failed to initialize screening seats")
)
