// Package errors defines the error taxonomy shared across the analyzer.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeIoError           = "IO_ERROR"
	CodeHeaderInvalid     = "HEADER_INVALID"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeTruncatedStream   = "TRUNCATED_STREAM"
	CodeTruncatedRecord   = "TRUNCATED_RECORD"
	CodeUnknownSubTag     = "UNKNOWN_SUB_TAG"
	CodeUnknownTopTag     = "UNKNOWN_TOP_TAG"
	CodeDesync            = "DESYNC"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConfigError       = "CONFIG_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
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

// Is checks if the error matches the target by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Sentinel instances, one per error kind. Stage code returns errors.Wrap of
// these with record-specific detail; callers compare with errors.Is.
var (
	ErrIoError           = New(CodeIoError, "i/o error")
	ErrHeaderInvalid     = New(CodeHeaderInvalid, "invalid hprof header")
	ErrUnsupportedFormat = New(CodeUnsupportedFormat, "unsupported hprof format")
	ErrTruncatedStream   = New(CodeTruncatedStream, "stream ended before a complete top-level record")
	ErrTruncatedRecord   = New(CodeTruncatedRecord, "record ended before its declared length was consumed")
	ErrUnknownSubTag     = New(CodeUnknownSubTag, "unrecognized heap dump sub-record tag")
	ErrUnknownTopTag     = New(CodeUnknownTopTag, "unrecognized top-level record tag")
	ErrDesync            = New(CodeDesync, "parser position desynchronized from record boundaries")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrNotFound          = New(CodeNotFound, "resource not found")
)

// Is reports whether err carries the given AppError's code, anywhere in its
// Unwrap chain.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// IsIoError reports whether err is (or wraps) an i/o error.
func IsIoError(err error) bool { return stderrors.Is(err, ErrIoError) }

// IsFatal reports whether err should abort the pipeline outright. Every
// error kind is fatal except UnknownTopTag, which the Record Framer skips by
// declared length and continues past.
func IsFatal(err error) bool {
	return !stderrors.Is(err, ErrUnknownTopTag)
}

// GetErrorCode extracts the error code from an error, or CodeUnknown.
func GetErrorCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
