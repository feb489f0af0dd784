package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petfolio/internal/contextutils"
	"petfolio/internal/validation"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var body APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWriteSuccessCarriesRequestID(t *testing.T) {
	b := NewBuilder(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextutils.WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	b.WriteSuccess(rec, req, map[string]string{"ok": "yes"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotZero(t, body.Timestamp)
	assert.Nil(t, body.Error)
}

func TestWriteErrorStatusCodes(t *testing.T) {
	b := NewBuilder(nil, nil)
	verr := validation.ValidateStruct(&struct {
		Type string `json:"type" validate:"required"`
	}{})

	cases := []struct {
		name    string
		err     error
		status  int
		errType string
		message string
	}{
		{"validation", NewValidationError("invalid body", verr), http.StatusBadRequest, TypeValidation, "invalid body"},
		{"not found", NewNotFoundError("no pet"), http.StatusNotFound, TypeNotFound, "no pet"},
		{"unavailable", NewUnavailableError("stopping", nil), http.StatusServiceUnavailable, TypeUnavailable, "stopping"},
		{"internal masked", NewInternalError("db exploded", nil), http.StatusInternalServerError, TypeInternal, "An internal error occurred"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, TypeInternal, "An unexpected error occurred"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			b.WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.errType, body.Error.Type)
			assert.Equal(t, tc.message, body.Error.Message)
		})
	}
}

func TestValidationErrorFields(t *testing.T) {
	verr := validation.ValidateStruct(&struct {
		Type string `json:"type" validate:"required"`
	}{})

	apiErr := NewValidationError("invalid body", verr)
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "type", apiErr.Fields[0].Field)
	assert.Equal(t, "required", apiErr.Fields[0].Code)
	assert.ErrorIs(t, apiErr, verr)
}
