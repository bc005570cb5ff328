package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsStandardError_Wrapped(t *testing.T) {
	base := NewQueryTimeoutError("promos.active")
	wrapped := fmt.Errorf("assemble: %w", base)

	got, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)

	_, ok = AsStandardError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	std := NewSchemaViolationError("x", "bad column")
	assert.Same(t, std, Normalize(std))

	n := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.Equal(t, "boom", n.Details)
	assert.False(t, n.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name    string
		err     *StandardError
		code    string
		retries int
	}{
		{"retryable database", NewDatabaseUnavailableError(stderrors.New("down")), "DATABASE_UNAVAILABLE", 3},
		{"timeout", NewQueryTimeoutError("p"), "QUERY_TIMEOUT", 2},
		{"generation timeout", NewGenerationTimeoutError(time.Second), "GENERATION_TIMEOUT", 1},
		{"schema violation", NewSchemaViolationError("p", "d"), "SCHEMA_VIOLATION", 0},
		{"unmapped", &StandardError{Code: "SOMETHING_ELSE", Retryable: true}, "SOMETHING_ELSE", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.code, b.Code)
			assert.Equal(t, tt.retries, b.Retries)

			vars := b.ToErrorVariables()
			assert.Equal(t, tt.code, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeInvalidRequest))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrCodeAuthentication))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeDataUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeDatabaseUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeSchemaViolation))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeAuthentication))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchTimeout))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeGenerationUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidRequest))
	assert.Equal(t, "SCHEMA", GetErrorCategory(ErrCodeSchemaViolation))
}
