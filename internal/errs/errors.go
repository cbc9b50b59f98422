// Package errs declares the error taxonomy reported back to websocket clients.
package errs

import "errors"

// Error is a comparable string error usable as a sentinel constant.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrValidation marks malformed client input, such as a room PIN that is not six digits.
	ErrValidation = Error("validation error")
	// ErrNotFound marks a reference to an unknown room or drawing.
	ErrNotFound = Error("not found")
	// ErrAuth marks a wrong room password or an unauthorized drawing deletion.
	ErrAuth = Error("not authorized")
)

// Kind returns the taxonomy sentinel wrapped by err, or nil when err is outside the taxonomy.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAuth):
		return ErrAuth
	default:
		return nil
	}
}
