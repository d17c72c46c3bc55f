package event

import "errors"

var (
	// ErrUnknownType indicates an event type outside the closed enumeration.
	ErrUnknownType = errors.New("unknown event type")

	// ErrHandlerRegistered indicates a duplicate handler registration for a type.
	ErrHandlerRegistered = errors.New("handler already registered")
)
