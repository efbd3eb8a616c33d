package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{
			name:       "bad request error",
			statusCode: http.StatusBadRequest,
			errorCode:  "INVALID_REQUEST",
			message:    "Invalid request format",
		},
		{
			name:       "not found error",
			statusCode: http.StatusNotFound,
			errorCode:  "NOT_FOUND",
			message:    "Resource not found",
		},
		{
			name:       "internal error",
			statusCode: http.StatusInternalServerError,
			errorCode:  "INTERNAL_SERVER_ERROR",
			message:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.statusCode, tt.errorCode, tt.message)

			require.NotNil(t, got)
			assert.Equal(t, tt.statusCode, got.StatusCode)
			assert.Equal(t, tt.errorCode, got.ErrorCode)
			assert.Equal(t, tt.message, got.Message)
			assert.Nil(t, got.Details)
		})
	}
}

func TestNewWithDetails(t *testing.T) {
	details := map[string]string{"file": "jan.xlsx"}
	got := NewWithDetails(http.StatusNotFound, "NOT_FOUND", "file not found", details)

	require.NotNil(t, got)
	assert.Equal(t, http.StatusNotFound, got.StatusCode)
	assert.Equal(t, details, got.Details)
}

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	assert.Equal(t, "Invalid request format", err.Error())
}

func TestInvalidRequestWithError(t *testing.T) {
	cause := fmt.Errorf("unexpected field 'yeear'")
	got := InvalidRequestWithError(cause)

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", got.ErrorCode)
	assert.Equal(t, cause.Error(), got.Details)
}

func TestErrValidation(t *testing.T) {
	got := ErrValidation("year", "must be a four digit year")

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", got.ErrorCode)

	details, ok := got.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "year", details.Field)
	assert.Equal(t, "must be a four digit year", details.Message)
}

func TestNewValidationErrors(t *testing.T) {
	fields := []ValidationError{
		{Field: "year", Message: "must be numeric"},
		{Field: "borough", Message: "unknown borough"},
	}

	got := NewValidationErrors(fields)

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	details, ok := got.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, details.Errors, 2)
}
