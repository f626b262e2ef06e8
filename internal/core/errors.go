package core

import (
	"errors"
	"fmt"
)

// Error categories. Concrete errors match them through errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrFormat     = errors.New("format error")

	// ErrDuplicate is carried inside a ValidationError when a unique
	// constraint rejects a write.
	ErrDuplicate = errors.New("duplicate value")
)

// ValidationError reports a missing or invalid field, or a reference to an
// entity that does not exist.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Kind != "" && e.Field != "":
		return fmt.Sprintf("invalid %s.%s: %s", e.Kind, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	case e.Kind != "":
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
	default:
		return "invalid input: " + e.Reason
	}
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError without a wrapped cause.
func NewValidationError(kind Kind, field, reason string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// NotFoundError reports a lookup by id or code that matched nothing.
type NotFoundError struct {
	Kind Kind
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFoundID is a shorthand for lookups by numeric identity.
func NotFoundID(kind Kind, id int64) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: fmt.Sprintf("id=%d", id)}
}

// FormatError reports text input that does not match an expected shape.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed input %q: %s", e.Input, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }
