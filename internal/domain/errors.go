// Package domain provides the core types and canonical error taxonomy for the gateway
// and the document compilation pipeline.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates a missing or mismatched shared secret.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeRateLimit indicates the request window is exhausted.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeUpstream indicates the provider was unreachable, failed, or replied with garbage.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeNotConfigured indicates the routed provider has no configuration.
	ErrorTypeNotConfigured ErrorType = "not_configured"

	// ErrorTypeToolchain indicates the external compiler binary is missing or broken.
	ErrorTypeToolchain ErrorType = "toolchain"

	// ErrorTypeCompilationTimeout indicates the compiler exceeded its time bound.
	ErrorTypeCompilationTimeout ErrorType = "compilation_timeout"

	// ErrorTypeCompilation indicates the compiler failed or produced no artifact.
	ErrorTypeCompilation ErrorType = "compilation"

	// ErrorTypeFilesystem indicates output directory or artifact I/O failed.
	ErrorTypeFilesystem ErrorType = "filesystem"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError is the canonical error returned by every component and rendered
// by the frontdoor handlers.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"error"`

	// Details carries diagnostics such as upstream bodies or compiler output.
	Details string `json:"details,omitempty"`

	// StatusCode overrides the default status for Type when non-zero.
	StatusCode int `json:"-"`

	// RetryAfter is a hint for rate limited callers.
	RetryAfter time.Duration `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithDetails attaches diagnostic output.
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithRetryAfter sets the retry hint.
func (e *APIError) WithRetryAfter(d time.Duration) *APIError {
	e.RetryAfter = d
	return e
}

// WithCause records the error that triggered this one.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// Convenience constructors for common errors

// ErrInvalidRequest creates a validation error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string, retryAfter time.Duration) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message).WithRetryAfter(retryAfter)
}

// ErrUpstream creates an upstream provider error.
func ErrUpstream(message string) *APIError {
	return NewAPIError(ErrorTypeUpstream, message)
}

// ErrNotConfigured creates a provider-not-configured error.
func ErrNotConfigured(message string) *APIError {
	return NewAPIError(ErrorTypeNotConfigured, message)
}

// ErrToolchain creates a missing compiler error.
func ErrToolchain(message string) *APIError {
	return NewAPIError(ErrorTypeToolchain, message)
}

// ErrCompilationTimeout creates a compiler timeout error.
func ErrCompilationTimeout(message string) *APIError {
	return NewAPIError(ErrorTypeCompilationTimeout, message)
}

// ErrCompilation creates a compiler failure error.
func ErrCompilation(message string) *APIError {
	return NewAPIError(ErrorTypeCompilation, message)
}

// ErrFilesystem creates a filesystem error.
func ErrFilesystem(message string) *APIError {
	return NewAPIError(ErrorTypeFilesystem, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// ToAPIError converts any error to a *APIError.
// If the error already wraps one, it is returned directly;
// otherwise the error is wrapped in a generic server error.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrServer(err.Error()).WithCause(err)
}

// IsType reports whether err carries an APIError of the given type.
func IsType(err error, t ErrorType) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == t
}
