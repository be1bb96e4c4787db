package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/testutil"
)

func write(t *testing.T, ew *Writer, err error) (int, APIError) {
	t.Helper()
	rec := httptest.NewRecorder()
	ew.Write(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, body.Error
}

func TestWriteMapsKinds(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{model.Validation("Username is required"), http.StatusBadRequest, CodeValidation, "Username is required"},
		{model.Parse(errors.New("unexpected EOF")), http.StatusBadRequest, CodeParse, "Invalid JSON in request body"},
		{model.ErrDuplicateIdentity, http.StatusConflict, CodeDuplicateIdentity, "Username or email already exists"},
		{model.ErrEmailTaken, http.StatusConflict, CodeDuplicateIdentity, "Email already taken"},
		{model.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password"},
		{model.ErrNoToken, http.StatusUnauthorized, CodeNoToken, "No authentication token provided"},
		{model.ErrTokenExpired, http.StatusUnauthorized, CodeTokenExpired, "Token expired"},
		{model.ErrTokenInvalid, http.StatusUnauthorized, CodeTokenInvalid, "Invalid token"},
		{model.ErrUnknownAccount, http.StatusUnauthorized, CodeUserNotFound, "User not found"},
		{model.ErrAccountDeactivated, http.StatusForbidden, CodeAccountDeactivated, "Account deactivated"},
		{model.ErrAccountNotFound, http.StatusNotFound, CodeNotFound, "User not found"},
		{model.ErrCurrentPasswordIncorrect, http.StatusUnauthorized, CodeCurrentPasswordIncorrect, "Current password is incorrect"},
		{fmt.Errorf("handler: %w", model.ErrTokenExpired), http.StatusUnauthorized, CodeTokenExpired, "Token expired"},
		{model.Persistence(errors.New("dial tcp: refused")), http.StatusInternalServerError, CodeInternalError, "Internal server error"},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternalError, "Internal server error"},
	}

	ew := NewWriter(testutil.NopLogger(), false)
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.message, func(t *testing.T) {
			status, apiErr := write(t, ew, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Empty(t, apiErr.Details)
		})
	}
}

func TestWriteHidesDetailsInProduction(t *testing.T) {
	ew := NewWriter(testutil.NopLogger(), false)
	_, apiErr := write(t, ew, model.Persistence(errors.New("pq: password authentication failed")))
	assert.Empty(t, apiErr.Details)
}

func TestWriteExposesDetailsInDevelopment(t *testing.T) {
	ew := NewWriter(testutil.NopLogger(), true)

	_, apiErr := write(t, ew, model.Persistence(errors.New("dial tcp: refused")))
	assert.Equal(t, "Internal server error", apiErr.Message)
	assert.Contains(t, apiErr.Details, "dial tcp: refused")

	// Client errors never carry details
	_, apiErr = write(t, ew, model.ErrInvalidCredentials)
	assert.Empty(t, apiErr.Details)
}

func TestPanic(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWriter(testutil.NopLogger(), true).Panic(rec, httptest.NewRequest(http.MethodGet, "/", nil), "nil map write")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternalError, body.Error.Code)
	assert.Equal(t, "nil map write", body.Error.Details)
}
