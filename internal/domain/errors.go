package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller may not target this recipient or
	// touch this notification. Never swallowed: a silent drop would hide a
	// routing bug.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation marks requests rejected before any persistence.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
