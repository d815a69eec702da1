// Package errors provides structured error codes for Aura tool and
// approval failures. Codes are stable strings so the REST surface and the
// agent loop can branch on them without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a failure class.
type ErrorCode string

const (
	// Approval pipeline
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeExpired      ErrorCode = "EXPIRED"

	// File operations
	ErrCodeFileNotFound     ErrorCode = "FILE_NOT_FOUND"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodePathEscape       ErrorCode = "PATH_ESCAPE"
	ErrCodeAmbiguousMatch   ErrorCode = "AMBIGUOUS_MATCH"
	ErrCodeUnknownTool      ErrorCode = "UNKNOWN_TOOL"

	// LaTeX compilation
	ErrCodeCompilationFailed ErrorCode = "COMPILATION_FAILED"

	// External services
	ErrCodeAPIError ErrorCode = "API_ERROR"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"

	// Input validation
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidPath  ErrorCode = "INVALID_PATH"

	// Generic
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is a structured Aura error.
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Details    map[string]any
}

// New creates a new structured error.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new structured error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an Aura error code. Returns nil when
// err is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Underlying: err}
}

// WithDetail adds a context key-value pair to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Details {
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: %v", k, v)
			first = false
		}
		sb.WriteString("}")
	}
	if e.Underlying != nil {
		fmt.Fprintf(&sb, ": %v", e.Underlying)
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// ToMap converts the error to a JSON-serializable map.
func (e *Error) ToMap() map[string]any {
	m := map[string]any{
		"code":    string(e.Code),
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	return m
}

// IsCode reports whether err carries the given error code anywhere in its
// chain.
func IsCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// GetCode extracts the error code from an error. Unstructured errors map to
// ErrCodeInternal; nil maps to the empty code.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}
