// Package api defines the HTTP response envelope, the wire form of the
// refresh status, and the error kinds the core surfaces at the API boundary.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an API-boundary failure.
type ErrorKind uint8

const (
	// ErrorKindNotFound indicates that a requested entity or file cannot be
	// located.
	ErrorKindNotFound ErrorKind = iota
	// ErrorKindBadRequest indicates a malformed identifier, unknown enum
	// value, invalid metadata, or out-of-range option.
	ErrorKindBadRequest
	// ErrorKindDatabase indicates a catalog access failure.
	ErrorKindDatabase
	// ErrorKindInternal indicates a render, cache I/O, or worker failure.
	ErrorKindInternal
	// ErrorKindNotImplemented is reserved for planned endpoints.
	ErrorKindNotImplemented
)

// Error is an API-boundary error with a classification.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind
	// Message is the human-readable message placed in the envelope.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements error.Error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap implements error unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode maps the error kind to its HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindBadRequest:
		return http.StatusBadRequest
	case ErrorKindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// NotFound creates a not-found error.
func NotFound(format string, arguments ...interface{}) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, arguments...)}
}

// BadRequest creates a bad-request error.
func BadRequest(format string, arguments ...interface{}) *Error {
	return &Error{Kind: ErrorKindBadRequest, Message: fmt.Sprintf(format, arguments...)}
}

// Database wraps a catalog failure.
func Database(cause error) *Error {
	return &Error{Kind: ErrorKindDatabase, Message: "database error", Cause: cause}
}

// Internal wraps an internal failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: ErrorKindInternal, Message: message, Cause: cause}
}

// AsError coerces an arbitrary error into an API error, defaulting to the
// internal kind.
func AsError(err error) *Error {
	var apiError *Error
	if errors.As(err, &apiError) {
		return apiError
	}
	return &Error{Kind: ErrorKindInternal, Message: err.Error(), Cause: err}
}
