package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{
			name:     "schema mismatch error type",
			errType:  ErrTypeSchemaMismatch,
			expected: "SCHEMA_MISMATCH",
		},
		{
			name:     "integrity error type",
			errType:  ErrTypeIntegrity,
			expected: "INTEGRITY",
		},
		{
			name:     "parsing error type",
			errType:  ErrTypeParsing,
			expected: "PARSING",
		},
		{
			name:     "storage error type",
			errType:  ErrTypeStorage,
			expected: "STORAGE",
		},
		{
			name:     "validation error type",
			errType:  ErrTypeValidation,
			expected: "VALIDATION",
		},
		{
			name:     "not found error type",
			errType:  ErrTypeNotFound,
			expected: "NOT_FOUND",
		},
		{
			name:     "config error type",
			errType:  ErrTypeConfig,
			expected: "CONFIG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeSchemaMismatch,
				Message: "header does not reconcile",
				Cause:   nil,
			},
			wantMessage: "[SCHEMA_MISMATCH] header does not reconcile",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "failed to open workbook",
				Cause:   fmt.Errorf("permission denied"),
			},
			wantMessage: "[STORAGE] failed to open workbook: permission denied",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "",
				Cause:   nil,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			assert.Equal(t, tt.wantMessage, got)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("original error")
	err := NewAppError(ErrTypeStorage, "read failed", cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))

	noCause := NewAppError(ErrTypeValidation, "bad input", nil)
	assert.Nil(t, noCause.Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrTypeIntegrity, "empty group field", nil).
		WithContext("row", 42).
		WithContext("column", "NEIGHBORHOOD")

	require.NotNil(t, err.Context)
	assert.Equal(t, 42, err.Context["row"])
	assert.Equal(t, "NEIGHBORHOOD", err.Context["column"])
}

func TestAppError_WithContext_NilMap(t *testing.T) {
	err := &AppError{Type: ErrTypeParsing, Message: "bad cell"}
	err.WithContext("value", "N/A")
	assert.Equal(t, "N/A", err.Context["value"])
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{
			name:    "direct match",
			err:     NewSchemaMismatchError("jan.xlsx", []string{"SALE DATE"}, nil),
			errType: ErrTypeSchemaMismatch,
			want:    true,
		},
		{
			name:    "wrapped match",
			err:     fmt.Errorf("processing jan.xlsx: %w", NewIntegrityError("empty group field", nil)),
			errType: ErrTypeIntegrity,
			want:    true,
		},
		{
			name:    "different type",
			err:     NewStorageError("read failed", nil),
			errType: ErrTypeSchemaMismatch,
			want:    false,
		},
		{
			name:    "plain error",
			err:     errors.New("plain"),
			errType: ErrTypeIntegrity,
			want:    false,
		},
		{
			name:    "nil error",
			err:     nil,
			errType: ErrTypeIntegrity,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestNewSchemaMismatchError(t *testing.T) {
	err := NewSchemaMismatchError("rollingsales_brooklyn.xlsx",
		[]string{"SALE PRICE", "SALE DATE"},
		[]string{"MYSTERY COLUMN"})

	require.NotNil(t, err)
	assert.Equal(t, ErrTypeSchemaMismatch, err.Type)
	assert.Contains(t, err.Error(), "rollingsales_brooklyn.xlsx")
	assert.Equal(t, "rollingsales_brooklyn.xlsx", err.Context["file"])
	assert.Equal(t, []string{"SALE PRICE", "SALE DATE"}, err.Context["missing_columns"])
	assert.Equal(t, []string{"MYSTERY COLUMN"}, err.Context["unknown_columns"])
}

func TestNewIntegrityError(t *testing.T) {
	cause := errors.New("empty NEIGHBORHOOD")
	err := NewIntegrityError("record cannot be grouped", cause)

	require.NotNil(t, err)
	assert.Equal(t, ErrTypeIntegrity, err.Type)
	assert.True(t, errors.Is(err, cause))
}

func TestHelperConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
	}{
		{"parsing", NewParsingError("bad cell", nil), ErrTypeParsing},
		{"storage", NewStorageError("write failed", nil), ErrTypeStorage},
		{"config", NewConfigError("bad yaml", nil), ErrTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.wantType, tt.err.Type)
		})
	}
}
