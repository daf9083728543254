package types

import "fmt"

// ErrorCode represents a unified error code across the assistant.
type ErrorCode string

// Remote analysis error codes
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrAuthentication   ErrorCode = "AUTHENTICATION"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"
	ErrModelNotFound    ErrorCode = "MODEL_NOT_FOUND"
	ErrModelOverloaded  ErrorCode = "MODEL_OVERLOADED"
	ErrEmptyResponse    ErrorCode = "EMPTY_RESPONSE"
	ErrContentFiltered  ErrorCode = "CONTENT_FILTERED"
	ErrMalformedAnswer  ErrorCode = "MALFORMED_ANSWER"
	ErrUpstreamTimeout  ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError    ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Local pipeline error codes
const (
	ErrCaptureFailed    ErrorCode = "CAPTURE_FAILED"
	ErrNoCredential     ErrorCode = "NO_CREDENTIAL"
	ErrRelayUnavailable ErrorCode = "RELAY_UNAVAILABLE"
	ErrSessionStopped   ErrorCode = "SESSION_STOPPED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Model     string    `json:"model,omitempty"`
	Cause     error     `json:"-"`
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

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithModel records which model variant produced the error.
func (e *Error) WithModel(model string) *Error {
	e.Model = model
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsQuotaExhausted reports whether the error is a billing/quota failure.
// These disable the automation master switch at the call site.
func IsQuotaExhausted(err error) bool {
	return GetErrorCode(err) == ErrQuotaExceeded
}
