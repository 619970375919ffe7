// Package apperr holds the error kinds shared by stores, services and handlers.
//
// Stores return these (wrapped) so services and handlers can branch with errors.Is:
//   - ErrNotFound: entity does not exist
//   - ErrValidation: missing required field or broken invariant in the input
//   - ErrConflict: unique key already taken (a lost insert race)
//   - ErrUnavailable: storage backend unreachable or timed out
//
// Closed admissions and duplicate check-ins are normal outcomes, not errors.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound wraps ErrNotFound with the missing entity name.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Kind returns the sentinel matching err, or nil when err is not one of ours.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrUnavailable):
		return ErrUnavailable
	}
	return nil
}

// IsAny reports whether err matches any of targets.
func IsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
