package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeHeaderInvalid, "bad magic"),
			expected: "[HEADER_INVALID] bad magic",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeIoError, "read failed", errors.New("connection reset")),
			expected: "[IO_ERROR] read failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeTruncatedRecord, "instance dump truncated", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeDesync, "error 1")
	err2 := New(CodeDesync, "error 2")
	err3 := New(CodeUnsupportedFormat, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsIoError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "io error", err: ErrIoError, expected: true},
		{name: "wrapped io error", err: Wrap(CodeIoError, "read failed", errors.New("eof")), expected: true},
		{name: "other error", err: ErrDesync, expected: false},
		{name: "nil error", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsIoError(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(ErrUnknownTopTag))
	assert.False(t, IsFatal(Wrap(CodeUnknownTopTag, "tag 0x99 unrecognized", nil)))
	assert.True(t, IsFatal(ErrUnknownSubTag))
	assert.True(t, IsFatal(ErrDesync))
	assert.True(t, IsFatal(ErrTruncatedRecord))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "app error", err: New(CodeHeaderInvalid, "bad"), expected: CodeHeaderInvalid},
		{name: "wrapped app error", err: Wrap(CodeDesync, "drift", errors.New("inner")), expected: CodeDesync},
		{name: "standard error", err: errors.New("standard error"), expected: CodeUnknown},
		{name: "nil error", err: nil, expected: CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "app error", err: New(CodeHeaderInvalid, "bad magic"), expected: "bad magic"},
		{name: "standard error", err: errors.New("standard error"), expected: "standard error"},
		{name: "nil error", err: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorMessage(tt.err))
		})
	}
}
