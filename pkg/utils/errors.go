package utils

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType maps errors onto the dispatcher's terminal states
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation" // InvalidRequest: caller error, never retried
	ErrorTypeNoBackend  ErrorType = "no_backend" // NoBackendAvailable: every probe failed
	ErrorTypeBackend    ErrorType = "backend"    // BackendFailure: the selected backend ran but failed
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeSystem     ErrorType = "system"
)

// FailureKind is the cause sub-kind carried by every BackendError.
// Downstream logging must distinguish these.
type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureUnreachable     FailureKind = "unreachable"
	FailureMalformedOutput FailureKind = "malformed_output"
	FailureNonZeroExit     FailureKind = "nonzero_exit"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target by type
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new application error
func NewError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates an invalid-request error
func NewValidationError(message string, cause error) *AppError {
	return NewError(ErrorTypeValidation, message, cause)
}

// NewNoBackendError creates a no-backend-available error
func NewNoBackendError(message string, cause error) *AppError {
	return NewError(ErrorTypeNoBackend, message, cause)
}

// NewIOError creates an I/O error
func NewIOError(message string, cause error) *AppError {
	return NewError(ErrorTypeIO, message, cause)
}

// WrapError wraps an existing error with additional context, preserving an
// existing AppError type when none is given
func WrapError(err error, errorType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok && errorType == "" {
		return &AppError{
			Type:    appErr.Type,
			Message: message + ": " + appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	if errorType == "" {
		errorType = ErrorTypeSystem
	}
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   err,
	}
}

// BackendError reports that a selected backend ran but failed. Every variant
// maps its transport-specific failures into this one shape so nothing leaks
// to the caller.
type BackendError struct {
	Kind    FailureKind
	Backend string // descriptor identifier, e.g. "subprocess(docconv)"
	Message string
	Cause   error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %s failed (%s): %s: %v", e.Backend, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %s failed (%s): %s", e.Backend, e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError creates a classified backend failure
func NewBackendError(kind FailureKind, backend, message string, cause error) *BackendError {
	return &BackendError{
		Kind:    kind,
		Backend: backend,
		Message: message,
		Cause:   cause,
	}
}

// GetErrorType extracts the terminal-state classification from an error
func GetErrorType(err error) ErrorType {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return ErrorTypeBackend
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeSystem
}

// GetFailureKind extracts the cause sub-kind from a backend failure,
// returning false for anything else
func GetFailureKind(err error) (FailureKind, bool) {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Kind, true
	}
	return "", false
}

// ClassifyContextErr maps a context error onto a failure kind. Deadline
// expiry is the only cancellation source in this contract.
func ClassifyContextErr(err error) (FailureKind, bool) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTimeout, true
	}
	return "", false
}
