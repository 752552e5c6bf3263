package store

import (
	"errors"
	"fmt"
)

// Error classes. Use errors.Is to test which class an error belongs to.
var (
	ErrValidation  = errors.New("store: validation failed")
	ErrPersistence = errors.New("store: persistence failed")
)

// ValidationError reports input rejected before any mutation took place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store: invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError reports a failed gateway call. The in-memory change has already been
// rolled back when it is returned.
type PersistenceError struct {
	Op        string
	ProjectID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store.%s(%s): %v", e.Op, e.ProjectID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
