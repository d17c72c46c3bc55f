package state

import "errors"

var (
	// ErrUnknownField indicates a field outside the closed field set.
	ErrUnknownField = errors.New("unknown state field")

	// ErrInvalidValue indicates a value the field's parser rejected.
	ErrInvalidValue = errors.New("invalid value for state field")
)
