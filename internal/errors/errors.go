// Package errors provides coded application errors shared by the store, the
// sync queue and the local HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a stable error code that can be reported to the UI shell.
type ErrorCode string

const (
	// General errors
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
	ErrInvalid           ErrorCode = "INVALID_INPUT"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrUnknownCollection ErrorCode = "UNKNOWN_COLLECTION"
	ErrConfig            ErrorCode = "CONFIG_ERROR"

	// Local store errors
	ErrPersistence ErrorCode = "PERSISTENCE_ERROR"
	ErrMigration   ErrorCode = "MIGRATION_FAILED"

	// Sync errors
	ErrSyncDispatch ErrorCode = "SYNC_DISPATCH_ERROR"
	ErrRegistration ErrorCode = "REGISTRATION_ERROR"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	// Status is the HTTP status returned by the remote API, 0 when the
	// request never got a response.
	Status int
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

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if any error in the chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in the chain,
// or ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// StatusOf returns the remote HTTP status carried by the chain, if any.
func StatusOf(err error) int {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return 0
		}
		if appErr.Status != 0 {
			return appErr.Status
		}
		err = appErr.Err
	}
	return 0
}
