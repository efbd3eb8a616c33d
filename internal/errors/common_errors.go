package errors

import (
	"errors"
	"fmt"
)

// ErrorType is the coarse category of a pipeline failure. The HTTP layer
// maps each category to a problem type and status.
type ErrorType string

const (
	ErrTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"
	ErrTypeIntegrity      ErrorType = "INTEGRITY"
	ErrTypeParsing        ErrorType = "PARSING"
	ErrTypeStorage        ErrorType = "STORAGE"
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeConfig         ErrorType = "CONFIG"
)

// AppError is the error type pipeline stages return. Context carries
// diagnostic fields (file, row, column) that surface in problem
// responses and logs.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches one diagnostic field and returns the error for
// chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError builds an AppError with an empty context map. cause may be
// nil.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err is an AppError of the given type anywhere in
// its chain.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// NewSchemaMismatchError creates a schema reconciliation error. It is fatal
// for the offending file only; callers skip the file and continue the run.
func NewSchemaMismatchError(source string, missing, unknown []string) *AppError {
	return NewAppError(ErrTypeSchemaMismatch,
		fmt.Sprintf("header of %s does not reconcile to the canonical schema", source), nil).
		WithContext("file", source).
		WithContext("missing_columns", missing).
		WithContext("unknown_columns", unknown)
}

// NewIntegrityError creates an integrity error. Integrity errors abort the
// run; they signal corrupted state that must never reach an output table.
func NewIntegrityError(message string, cause error) *AppError {
	return NewAppError(ErrTypeIntegrity, message, cause)
}

// NewParsingError marks a cell or row that could not be decoded.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError marks a filesystem read or write failure.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError marks unusable configuration, caught at startup.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
