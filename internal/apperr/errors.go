package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrAccessDenied    = errors.New("access denied")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)

// ValidationError names the offending field. It unwraps to ErrValidation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func Denied(reason string) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
}

func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

// Status maps an error onto the HTTP status the API reports for it.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
