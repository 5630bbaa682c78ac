// Package apperr defines the error taxonomy shared by the resource services
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Error kinds. Every error produced by a service wraps exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authorization error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrCapacity   = errors.New("capacity exceeded")
	ErrInternal   = errors.New("internal error")
)

// UnknownErrorMessage is the message sent for errors that carry no kind,
// including recovered panics.
const UnknownErrorMessage = "An unknown error has occured"

// Error is a user-facing error: Message is safe to show to clients,
// while Err keeps the underlying cause for logging.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func newError(kind error, message string, cause error) error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     cause,
	}
}

// Validation reports malformed or missing input.
func Validation(message string) error {
	return newError(ErrValidation, message, nil)
}

// Auth reports a missing, invalid or expired token, or an ownership mismatch.
func Auth(message string) error {
	return newError(ErrAuth, message, nil)
}

// NotFound reports an unknown identifier.
func NotFound(message string) error {
	return newError(ErrNotFound, message, nil)
}

// Conflict reports a duplicate create.
func Conflict(message string) error {
	return newError(ErrConflict, message, nil)
}

// Capacity reports an exceeded per-owner quota.
func Capacity(message string) error {
	return newError(ErrCapacity, message, nil)
}

// Internal reports a storage failure or a consistency violation.
func Internal(message string, cause error) error {
	return newError(ErrInternal, message, cause)
}

// Status maps an error onto the HTTP status code it should be answered with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrCapacity):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	return UnknownErrorMessage
}
