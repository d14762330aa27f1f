// Package errors provides standardized error types for the quarry access layer.
package errors

import (
	"errors"
	"fmt"
)

// Error codes covering the access-layer taxonomy.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodePoolExhausted      = "POOL_EXHAUSTED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMissingParameter   = "MISSING_PARAMETER"
	CodeTypeMismatch       = "TYPE_MISMATCH"
	CodeQueryExecution     = "QUERY_EXECUTION_ERROR"
	CodeProcedureExecution = "PROCEDURE_EXECUTION_ERROR"
	CodeUnavailable        = "UNAVAILABLE"
	CodeCanceled           = "CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error represents an access-layer error with code, message, and optional details.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrPoolClosed        = &Error{Code: CodeUnavailable, Message: "connection pool is closed"}
	ErrPoolNotReady      = &Error{Code: CodeConfiguration, Message: "connection pool is not initialized"}
	ErrPoolExhausted     = &Error{Code: CodePoolExhausted, Message: "connection pool exhausted"}
	ErrSchemaNotFound    = &Error{Code: CodeNotFound, Message: "schema not found"}
	ErrTableNotFound     = &Error{Code: CodeNotFound, Message: "table not found"}
	ErrProcedureNotFound = &Error{Code: CodeNotFound, Message: "stored procedure not found"}
	ErrNotReadOnly       = &Error{Code: CodeValidation, Message: "statement is not read-only"}
	ErrConnectionFailed  = &Error{Code: CodeUnavailable, Message: "database connection failed"}
)

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with an Error.
func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Code == CodeNotFound
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Code == CodeValidation
	}
	return false
}

// IsPoolExhausted checks if an error is a pool exhaustion error.
func IsPoolExhausted(err error) bool {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Code == CodePoolExhausted
	}
	return false
}

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Code == CodeConfiguration
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Message
	}
	return err.Error()
}
