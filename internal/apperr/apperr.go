// Package apperr defines the error kinds shared by the engines and the
// HTTP layer. Every engine operation returns either a value or an *Error
// tagged with one of these kinds.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error
type Kind int

const (
	KindStorage Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindExpired
	KindNotFound
	KindConflict
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindExpired:
		return "expired"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "storage_failure"
	}
}

// httpStatus maps kinds to HTTP status codes
var httpStatus = map[Kind]int{
	KindStorage:      http.StatusInternalServerError,
	KindInvalidInput: http.StatusBadRequest,
	KindUnauthorized: http.StatusForbidden,
	KindExpired:      http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusBadRequest,
}

// HTTPStatus returns the HTTP status code for the kind
func (k Kind) HTTPStatus() int {
	if status, ok := httpStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is an application error with a kind and a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags cause with a kind. Errors that already carry a kind keep it.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindStorage for untagged errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err. Untagged errors and
// storage failures never expose their detail.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage {
		return e.Message
	}
	return "internal error"
}

func InvalidInput(message string) *Error { return New(KindInvalidInput, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Expired(message string) *Error { return New(KindExpired, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

// Storage wraps an unexpected persistence failure
func Storage(message string, cause error) error {
	return Wrap(KindStorage, message, cause)
}
