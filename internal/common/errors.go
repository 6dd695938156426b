package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Request-level errors. Callers match them with errors.Is.
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAlreadyExists is a Conflict raised by unique name constraints.
	ErrAlreadyExists = fmt.Errorf("%w: already exists", ErrConflict)
)

// FieldError describes a validation failure for a single submitted field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level failures detected before any I/O.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// ConflictError is returned when an operation is refused because other
// records still depend on the target. References lists what blocks it.
type ConflictError struct {
	Message    string
	References []string
}

func (e *ConflictError) Error() string {
	if len(e.References) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.References, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StorageError wraps a failed blob or document store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

// Unavailable wraps err as a StorageError for op. Errors that already carry
// a request-level classification are returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrorNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
