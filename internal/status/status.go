package status

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("entry not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Validation wraps ErrValidation with the field-level message shown to the
// customer.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// NotFoundf wraps ErrNotFound with lookup context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidTransition wraps ErrInvalidTransition with the rejected target
// status.
func InvalidTransition(target string) error {
	return fmt.Errorf("%w: %q", ErrInvalidTransition, target)
}

func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }
