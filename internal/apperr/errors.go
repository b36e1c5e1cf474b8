// Package apperr defines the error taxonomy shared by the store, service and
// HTTP layers.
//
// Every failure that leaves the repository is an *AppError carrying one of the
// Type values below. Callers classify with the Is* predicates, which unwrap, so
// an AppError wrapped with fmt.Errorf("...: %w") still classifies correctly.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type identifies the kind of failure
type Type string

const (
	TypeValidation       Type = "VALIDATION"
	TypeNotFound         Type = "NOT_FOUND"
	TypeConstraint       Type = "CONSTRAINT"
	TypeStoreUnavailable Type = "STORE_UNAVAILABLE"
	TypeSchema           Type = "SCHEMA"
	TypeInternal         Type = "INTERNAL"
)

// AppError is an application error with a stable type and an HTTP mapping
type AppError struct {
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithDetails attaches structured details
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// NewValidation creates a validation error. No mutation has been attempted
// when one of these is returned.
func NewValidation(message string) *AppError {
	return &AppError{
		Type:       TypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error for resource/id
func NewNotFound(resource, id string) *AppError {
	return &AppError{
		Type:       TypeNotFound,
		Message:    fmt.Sprintf("%s %s not found", resource, id),
		Details:    map[string]any{"resource": resource, "id": id},
		HTTPStatus: http.StatusNotFound,
	}
}

// NewConstraint creates an error for a foreign-key or uniqueness violation
func NewConstraint(message string) *AppError {
	return &AppError{
		Type:       TypeConstraint,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewStoreUnavailable creates an error for connectivity or timeout failures
func NewStoreUnavailable(message string) *AppError {
	return &AppError{
		Type:       TypeStoreUnavailable,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// NewSchema creates a schema error that names the failing step
func NewSchema(step, message string) *AppError {
	return &AppError{
		Type:       TypeSchema,
		Message:    fmt.Sprintf("%s: %s", step, message),
		Details:    map[string]any{"step": step},
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewInternal creates an unclassified internal error
func NewInternal(message string) *AppError {
	return &AppError{
		Type:       TypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// As returns the first *AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// TypeOf returns the error type, or TypeInternal for foreign errors
func TypeOf(err error) Type {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return TypeInternal
}

// StatusOf returns the HTTP status for err
func StatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func IsValidation(err error) bool       { return is(err, TypeValidation) }
func IsNotFound(err error) bool         { return is(err, TypeNotFound) }
func IsConstraint(err error) bool       { return is(err, TypeConstraint) }
func IsStoreUnavailable(err error) bool { return is(err, TypeStoreUnavailable) }
func IsSchema(err error) bool           { return is(err, TypeSchema) }

func is(err error, t Type) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
