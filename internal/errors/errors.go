// Package errors provides the structured error taxonomy for the issuance pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid submission input; surfaced
	// synchronously to the caller, no job is created.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeRender indicates a template or field problem. Rendering is
	// deterministic, so these are terminal and never retried.
	ErrCodeRender ErrorCode = "render"
	// ErrCodeConversion indicates an external document conversion failure,
	// assumed transient and retried up to the attempt budget.
	ErrCodeConversion ErrorCode = "conversion"
	// ErrCodeDelivery indicates a mail transport failure, assumed transient
	// and retried up to the attempt budget.
	ErrCodeDelivery ErrorCode = "delivery"
	// ErrCodeNotFound indicates an unknown job or task identifier.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a collision with existing state, such as a
	// duplicate active event or an already-existing job output directory.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeStore indicates a persistence failure. It fails the affected
	// task's current attempt and is surfaced, never swallowed.
	ErrCodeStore ErrorCode = "store"
	// ErrCodeInternal indicates an unclassified internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError is a structured application error with a code, message, and
// optional cause. It supports errors.Is and errors.As via Unwrap.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Validation creates a new validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a new validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Render creates a new render error.
func Render(message string) *AppError {
	return &AppError{Code: ErrCodeRender, Message: message}
}

// Renderf creates a new render error with formatted message.
func Renderf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeRender, Message: fmt.Sprintf(format, args...)}
}

// Conversion creates a new conversion error.
func Conversion(message string) *AppError {
	return &AppError{Code: ErrCodeConversion, Message: message}
}

// Delivery creates a new delivery error.
func Delivery(message string) *AppError {
	return &AppError{Code: ErrCodeDelivery, Message: message}
}

// NotFound creates a new not-found error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new not-found error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Conflictf creates a new conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Store creates a new store error.
func Store(message string) *AppError {
	return &AppError{Code: ErrCodeStore, Message: message}
}

// Internal creates a new internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsRender checks if an error is a render error.
func IsRender(err error) bool {
	return isCode(err, ErrCodeRender)
}

// IsConversion checks if an error is a conversion error.
func IsConversion(err error) bool {
	return isCode(err, ErrCodeConversion)
}

// IsDelivery checks if an error is a delivery error.
func IsDelivery(err error) bool {
	return isCode(err, ErrCodeDelivery)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsStore checks if an error is a store error.
func IsStore(err error) bool {
	return isCode(err, ErrCodeStore)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
