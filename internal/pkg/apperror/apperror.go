// Package apperror defines the error kinds shared by every domain.
//
// Domain packages declare their own sentinels with New so callers can match
// either the precise error (errors.Is(err, invoice.ErrInvoiceNotFound)) or the
// kind (errors.Is(err, apperror.ErrNotFound)).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrState       = errors.New("invalid state")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
)

var kinds = []error{ErrValidation, ErrNotFound, ErrState, ErrConflict, ErrPersistence}

// Error is a domain error tagged with one of the kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New creates a domain sentinel of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation creates an ad-hoc validation error.
func Validation(format string, args ...any) error {
	return New(ErrValidation, fmt.Sprintf(format, args...))
}

// PersistenceError reports a failed read or write against a store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Persistence wraps err as a PersistenceError unless it already carries a kind.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &PersistenceError{Op: op, Err: err}
}

// KindOf returns the kind sentinel err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the message of the innermost domain error, falling back to
// err.Error() when none is present.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
