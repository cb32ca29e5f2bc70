package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrValidation rejects an operation before any side effect.
	ErrValidation = fmt.Errorf("validation failed")
	// ErrNotFound covers absent groups and absent messages.
	ErrNotFound = fmt.Errorf("not found")
	// ErrForbidden covers non-member sends and non-author edits/deletes.
	ErrForbidden = fmt.Errorf("forbidden")
	// ErrPersistence aborts the operation; no delivery event may follow it.
	ErrPersistence = fmt.Errorf("persistence failure")
)

// Code maps an error chain to the wire-level error code reported to the
// originating connection. Unknown errors are never detailed to clients.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE"
	default:
		return "INTERNAL"
	}
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
