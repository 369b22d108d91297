package httputil

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustcore/pkg/domain-errors"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWriteErrorLockedCarriesRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	err := dErrors.WithDetails(dErrors.CodeAccountLocked, "too many failed attempts",
		map[string]string{"retry_after_seconds": "540"})

	WriteError(rec, err)

	assert.Equal(t, 423, rec.Code)
	assert.Equal(t, "540", rec.Header().Get("Retry-After"))
	body := decodeBody(t, rec)
	assert.Equal(t, "account_locked", body["error"])
	assert.Equal(t, "540", body["retry_after_seconds"])
}

func TestWriteErrorSurfacesAttemptsRemaining(t *testing.T) {
	rec := httptest.NewRecorder()
	err := dErrors.WithDetails(dErrors.CodeInvalidCredentials, "invalid email or password",
		map[string]string{"attempts_remaining": "3"})

	WriteError(rec, err)

	assert.Equal(t, 401, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid_credentials", body["error"])
	assert.Equal(t, "3", body["attempts_remaining"])
}

func TestWriteErrorMasksInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := dErrors.WithDetails(dErrors.CodeInternal, "pg connection refused",
		map[string]string{"dsn": "postgres://internal"})

	WriteError(rec, err)

	assert.Equal(t, 500, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, body, "dsn")
	assert.NotContains(t, body, "error_description")
}

func TestWriteErrorUnknownError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, fmt.Errorf("plain failure"))

	assert.Equal(t, 500, rec.Code)
	assert.Equal(t, "internal_error", decodeBody(t, rec)["error"])
}
