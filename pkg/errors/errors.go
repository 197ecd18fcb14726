package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeHTTP              ErrorType = "http"
	ErrorTypeExhausted         ErrorType = "exhausted"
	ErrorTypeCheckpointCorrupt ErrorType = "checkpoint_corrupt"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a harvest error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// RetryAfter is the wait the server asked for, zero when it did not say.
	RetryAfter time.Duration
	// Page is the page index the error belongs to, zero when not page-bound.
	Page int
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Type == ErrorTypeExhausted && e.Page > 0:
		return fmt.Sprintf("fetch exhausted on page %d: %s", e.Page, e.Message)
	case e.Type == ErrorTypeExhausted:
		return fmt.Sprintf("fetch exhausted: %s", e.Message)
	case e.Code > 0:
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Type, e.Message)
	}
}

// Reason is the short operator-facing cause: "rate limit", "HTTP 503",
// "network error: <cause>".
func (e *Error) Reason() string {
	if e.Type == ErrorTypeNetwork {
		return "network error: " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeHTTP:
		return true
	default:
		return false
	}
}

// RateLimited builds the error for an HTTP 429 response.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Type:       ErrorTypeRateLimit,
		Message:    "rate limit",
		Code:       429,
		RetryAfter: retryAfter,
	}
}

// HTTPStatus builds the error for any other non-2xx response.
func HTTPStatus(code int) *Error {
	return &Error{
		Type:    ErrorTypeHTTP,
		Message: fmt.Sprintf("HTTP %d", code),
		Code:    code,
	}
}

// Network builds the error for a request that never produced a usable body.
func Network(cause error) *Error {
	return &Error{
		Type:    ErrorTypeNetwork,
		Message: fmt.Sprint(cause),
		Err:     cause,
	}
}

// FetchExhausted wraps the last failure of a page whose retries ran out.
func FetchExhausted(page int, cause error) *Error {
	msg := "retries exhausted"
	var last *Error
	if errors.As(cause, &last) {
		msg = last.Reason()
	} else if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Type:    ErrorTypeExhausted,
		Message: msg,
		Page:    page,
		Err:     cause,
	}
}

// CheckpointCorrupt marks a checkpoint that could not be trusted.
func CheckpointCorrupt(path string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeCheckpointCorrupt,
		Message: fmt.Sprintf("%s: %v", path, cause),
		Err:     cause,
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type.
func Is(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// RetryAfterOf returns the server-requested wait carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
