package services

import (
	"errors"
	"fmt"
)

// Client-facing error taxonomy. Handlers map these onto HTTP status codes;
// the websocket layer turns them into error events scoped to the sender.
// Anything not wrapping one of these is treated as a store failure (500).
var (
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not allowed")
	ErrConflict     = errors.New("already handled")
	ErrInvalidState = errors.New("invalid state")
)

// HTTPStatus returns the response code for a service error.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrInvalidState):
		return 400
	default:
		return 500
	}
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

func conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

func invalidState(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, reason)
}
