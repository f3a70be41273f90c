package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a referenced entity (item id, cart name, order id)
	// that is absent where the operation cannot proceed without it.
	ErrNotFound = errors.New("not found")

	// ErrNotLoaded is returned for operations issued before the startup load
	// has populated the stores.
	ErrNotLoaded = errors.New("store not loaded yet")
)

// ValidationError reports caller input that violates a precondition.
// It is always surfaced synchronously and the operation is never partially
// applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid is a shorthand constructor for ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError wraps a failed gateway read or write. It is reported for
// observability only: the in-memory state stays authoritative and the failed
// write is terminal (no automatic retry).
type PersistenceError struct {
	Key string
	Op  string // "get" or "set"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
