package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
// All components use these constants instead of hardcoded strings.
type ErrorCode string

const (
	// ErrCodeConfigMissing indicates a required configuration value was
	// absent. It aborts the single notification attempt and is logged; it is
	// never raised to the event source.
	ErrCodeConfigMissing ErrorCode = "config_missing"

	// ErrCodeLookupFailed indicates the resolver could not map an internal
	// user to a chat identity. It triggers a fallback channel notice, not a
	// fatal error.
	ErrCodeLookupFailed ErrorCode = "lookup_failed"

	// ErrCodeTransportFailed indicates a non-2xx HTTP response or a
	// platform-level ok:false. It aborts only the one recipient's send.
	ErrCodeTransportFailed ErrorCode = "transport_failed"

	// ErrCodeMalformedEvent indicates unexpected or missing activity fields.
	// The classifier degrades these to Ignore; the code exists for the rare
	// paths that must report the condition.
	ErrCodeMalformedEvent ErrorCode = "malformed_event"

	// ErrCodeLockTimeout indicates the dedup lease could not be acquired
	// within the configured acquisition timeout.
	ErrCodeLockTimeout ErrorCode = "lock_timeout"

	// Infrastructure codes.
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_slack_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// AppError is the standard application error type. All domain errors are
// expressed as AppError to enable consistent formatting and error chain
// support.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ErrNotFound is the sentinel for repository lookups that found no row.
// Callers distinguish "absent" from infrastructure failure with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrNoSlackUser is returned by the resolver when the chat platform has no
// user for the given email. It is an expected outcome, not a failure, and is
// never cached.
var ErrNoSlackUser = errors.New("no slack user for email")
