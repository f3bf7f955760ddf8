package query

import "errors"

var (
	ErrScreeningNotFound = errors.New("screening not found")
)
