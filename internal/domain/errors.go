package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error carries exactly one of these, so callers can use
// errors.Is(err, domain.ErrInvalidInput) regardless of the message.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrLifestyleNotFound = errors.New("lifestyle not found")
	ErrCalculationFailed = errors.New("calculation failed")
	ErrCacheUnavailable  = errors.New("cache unavailable")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Machine-readable error codes returned to API clients.
const (
	CodeInvalidInput      = "RC-400"
	CodeLifestyleNotFound = "RC-404"
	CodeCalculationFailed = "RC-500"
	CodeCacheUnavailable  = "RC-503"
)

// Error is the single error type returned across the service boundary.
type Error struct {
	Kind    error
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Code returns the machine-readable code for the error kind.
func (e *Error) Code() string {
	return codeOf(e.Kind)
}

// InvalidInput reports a request field that breaks a domain rule.
func InvalidInput(field, reason string) *Error {
	return &Error{
		Kind:    ErrInvalidInput,
		Field:   field,
		Message: "Invalid input: " + field + " - " + reason,
	}
}

// LifestyleNotFound reports a lifestyle type without a configured value.
func LifestyleNotFound(lifestyleType string) *Error {
	return &Error{
		Kind:    ErrLifestyleNotFound,
		Field:   "lifestyleType",
		Message: "No deposit amount configured for lifestyle type: " + lifestyleType,
	}
}

// CalculationFailed wraps an unexpected failure during resolution or computation.
func CalculationFailed(err error) *Error {
	return &Error{
		Kind:    ErrCalculationFailed,
		Message: "Unexpected error during retirement calculation",
		Err:     err,
	}
}

// CacheUnavailable wraps a connectivity failure of a cache adapter.
func CacheUnavailable(op string, err error) *Error {
	return &Error{
		Kind:    ErrCacheUnavailable,
		Message: "cache " + op + " failed",
		Err:     err,
	}
}

// CodeOf returns the code of err, or the calculation-failed code for foreign errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code()
	}
	return codeOf(err)
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrLifestyleNotFound):
		return CodeLifestyleNotFound
	case errors.Is(err, ErrCacheUnavailable):
		return CodeCacheUnavailable
	default:
		return CodeCalculationFailed
	}
}
