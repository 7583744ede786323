package hal

import (
	"errors"
	"fmt"
)

// Error is a bridge-level error with a stable code callers can branch on.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNotFound    = "NOT_FOUND"    // unknown device, stream or connection
	ErrCodeBadValue    = "BAD_VALUE"    // driver rejected an operation
	ErrCodeDriverError = "DRIVER_ERROR" // enumeration or open failed or returned malformed data
	ErrCodeTimeout     = "TIMEOUT"      // bounded wait exceeded while swapping surfaces
	ErrCodeWorkerFatal = "WORKER_FATAL" // unexpected surface or driver error inside the capture loop
)

// ErrSessionClosed is returned by session operations after Close.
var ErrSessionClosed = errors.New("session closed")

// NewError creates a bridge error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the bridge error code, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
