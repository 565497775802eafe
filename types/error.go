package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a machine-readable error code carried by every
// structured error in the generation core.
type ErrorCode string

const (
	// Caller input malformed. Never retryable.
	ErrValidation ErrorCode = "VALIDATION"
	// Credential rejected by the vendor. Never retryable without a new key.
	ErrAuthentication ErrorCode = "AUTHENTICATION"
	// Vendor throttling. Retryable by the caller after RetryAfter elapses.
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// Generic provider failure codes.
	ErrNoResult            ErrorCode = "NO_RESULT"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrDownload            ErrorCode = "DOWNLOAD_ERROR"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrRequest             ErrorCode = "REQUEST_ERROR"
	ErrGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	ErrNoCredential        ErrorCode = "NO_CREDENTIAL"
	ErrEndpointNotDeployed ErrorCode = "ENDPOINT_NOT_DEPLOYED"
	ErrUnsupported         ErrorCode = "UNSUPPORTED"
)

// Error is the structured error used across the generation core. It carries
// the provider identity, an HTTP status when one exists, a retry hint for
// rate limits, and free-form detail.
type Error struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"http_status,omitempty"`
	Retryable  bool           `json:"retryable"`
	Provider   string         `json:"provider,omitempty"`
	RetryAfter time.Duration  `json:"retry_after,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewValidationError creates a validation error for a malformed caller input.
func NewValidationError(message string) *Error {
	return &Error{Code: ErrValidation, Message: message}
}

// NewAuthError creates an authentication error for a rejected credential.
func NewAuthError(provider, message string) *Error {
	return &Error{Code: ErrAuthentication, Message: message, Provider: provider}
}

// NewRateLimitError creates a rate-limit error with a suggested retry delay.
// The core never auto-retries rate limits; the hint is for the caller.
func NewRateLimitError(provider string, retryAfter time.Duration) *Error {
	return &Error{
		Code:       ErrRateLimited,
		Message:    fmt.Sprintf("%s rate limit exceeded", provider),
		Provider:   provider,
		RetryAfter: retryAfter,
		Retryable:  true,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithDetail attaches a structured detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error, or "" for untyped errors.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// WrapProviderError re-wraps an arbitrary failure as a generation failure for
// the given provider, preserving the original message. Errors that are
// already typed pass through unchanged so they are never double-wrapped.
func WrapProviderError(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return &Error{
		Code:     ErrGenerationFailed,
		Message:  err.Error(),
		Provider: provider,
		Cause:    err,
	}
}
