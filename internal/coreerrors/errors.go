// Package coreerrors defines the transport-agnostic error taxonomy shared
// by the store, graph, and analysis packages. Transports (internal/api)
// map a Kind to their own status codes at the edge; the core never
// imports net/http.
package coreerrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy a core component can return.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindUnauthorized       Kind = "unauthorized"
	KindUnavailable        Kind = "unavailable"
	KindBadGateway         Kind = "bad_gateway"
	KindNotImplemented     Kind = "not_implemented"
	KindTimeout            Kind = "timeout"
	KindInvariantViolation Kind = "invariant_violation"
)

// Error is the error type returned by core components. Message is safe to
// surface to a caller; Hint, when set, suggests a remedy.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	cause   error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, message string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(message, args...)}
}

// NewValidation reports a caller-supplied value that fails an invariant.
func NewValidation(message string, args ...interface{}) *Error {
	return newError(KindValidation, message, args...)
}

// NewNotFound reports a lookup that found nothing by that key.
func NewNotFound(message string, args ...interface{}) *Error {
	return newError(KindNotFound, message, args...)
}

// NewConflict reports a write that collided with existing state.
func NewConflict(message string, args ...interface{}) *Error {
	return newError(KindConflict, message, args...)
}

// NewUnauthorized reports a caller lacking the rights for an operation.
func NewUnauthorized(message string, args ...interface{}) *Error {
	return newError(KindUnauthorized, message, args...)
}

// NewUnavailable reports a dependency that is temporarily down.
func NewUnavailable(message string, args ...interface{}) *Error {
	return newError(KindUnavailable, message, args...)
}

// NewBadGateway reports an upstream integration returning a bad response.
func NewBadGateway(message string, args ...interface{}) *Error {
	return newError(KindBadGateway, message, args...)
}

// NewNotImplemented reports an operation recognized but not yet built.
func NewNotImplemented(message string, args ...interface{}) *Error {
	return newError(KindNotImplemented, message, args...)
}

// NewTimeout reports an operation that exceeded its deadline.
func NewTimeout(message string, args ...interface{}) *Error {
	return newError(KindTimeout, message, args...)
}

// NewInvariantViolation reports internal state that should be impossible,
// e.g. a graph index out of sync with its node set.
func NewInvariantViolation(message string, args ...interface{}) *Error {
	return newError(KindInvariantViolation, message, args...)
}

// Wrap attaches kind to an existing error as its cause, preserving message.
func Wrap(kind Kind, cause error, message string, args ...interface{}) *Error {
	e := newError(kind, message, args...)
	e.cause = cause
	return e
}

// WrapUnknown wraps an error of unknown origin as an internal failure,
// unless it already carries a Kind, in which case that Kind is preserved.
func WrapUnknown(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInvariantViolation, err, "unexpected error: %v", err)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// As extracts *Error from err, if present, mirroring errors.As's shape for
// callers that prefer not to import errors themselves.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
