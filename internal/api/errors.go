package api

import (
	"fmt"
	"net/http"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorCode represents error codes used in API responses
type ErrorCode string

const (
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodeUnavailable      ErrorCode = "UNAVAILABLE"
	ErrorCodeBadGateway       ErrorCode = "BAD_GATEWAY"
	ErrorCodeNotImplemented   ErrorCode = "NOT_IMPLEMENTED"
	ErrorCodeTimeout          ErrorCode = "TIMEOUT"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// APIError represents an API error with status code and message
type APIError struct {
	Code       ErrorCode
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// GetResponse returns the error response
func (e *APIError) GetResponse() ErrorResponse {
	return ErrorResponse{Error: string(e.Code), Message: e.Message}
}

// NewAPIError creates a new API error
func NewAPIError(code ErrorCode, statusCode int, message string) *APIError {
	return &APIError{Code: code, StatusCode: statusCode, Message: message}
}

// NewValidationError creates an invalid request error
func NewValidationError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeInvalidRequest, http.StatusBadRequest, fmt.Sprintf(message, args...))
}

// kindToAPIError maps a core error Kind to its HTTP status/code.
var kindToAPIError = map[coreerrors.Kind]struct {
	code   ErrorCode
	status int
}{
	coreerrors.KindValidation:         {ErrorCodeInvalidRequest, http.StatusBadRequest},
	coreerrors.KindNotFound:           {ErrorCodeNotFound, http.StatusNotFound},
	coreerrors.KindConflict:           {ErrorCodeConflict, http.StatusConflict},
	coreerrors.KindUnauthorized:       {ErrorCodeUnauthorized, http.StatusUnauthorized},
	coreerrors.KindUnavailable:        {ErrorCodeUnavailable, http.StatusServiceUnavailable},
	coreerrors.KindBadGateway:         {ErrorCodeBadGateway, http.StatusBadGateway},
	coreerrors.KindNotImplemented:     {ErrorCodeNotImplemented, http.StatusNotImplemented},
	coreerrors.KindTimeout:            {ErrorCodeTimeout, http.StatusGatewayTimeout},
	coreerrors.KindInvariantViolation: {ErrorCodeInternalError, http.StatusInternalServerError},
}

// MapError translates a core error into the APIError a handler writes back.
// Errors that don't carry a coreerrors.Kind are treated as internal
// failures: the core never panics on bad input, so an untyped error here
// means something the core itself didn't anticipate.
func MapError(err error) *APIError {
	if coreErr, ok := coreerrors.As(err); ok {
		if mapped, ok := kindToAPIError[coreErr.Kind]; ok {
			return NewAPIError(mapped.code, mapped.status, coreErr.Message)
		}
	}
	return NewAPIError(ErrorCodeInternalError, http.StatusInternalServerError, err.Error())
}
