// Package errors provides coded errors shared by the booking core and the console boundary.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is a stable machine-readable error classification.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrPermission ErrorCode = "PERMISSION_DENIED"
	ErrConfig     ErrorCode = "CONFIG_ERROR"

	// Local persistence errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Remote gateway errors
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrRemoteStatus      ErrorCode = "REMOTE_STATUS"
	ErrRemoteDecode      ErrorCode = "REMOTE_DECODE"

	// Sync and capture errors
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncConflict   ErrorCode = "SYNC_CONFLICT"
	ErrCaptureTimeout ErrorCode = "CAPTURE_TIMEOUT"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int // HTTP status for remote errors, 0 otherwise
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithStatus creates a remote status error carrying the HTTP status code.
func WithStatus(status int, message string) *AppError {
	return &AppError{
		Code:       ErrRemoteStatus,
		Message:    message,
		StatusCode: status,
	}
}

// Is checks if any error in the chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in the chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Message returns the human-readable message of an AppError, falling back to
// err.Error() for foreign errors and to fallback for nil.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
