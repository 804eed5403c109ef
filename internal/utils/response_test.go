package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-venues/internal/apperrors"
	"ms-venues/internal/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   apperrors.Kind
	}{
		{apperrors.Validation("limit", "limit must be a positive integer"), http.StatusBadRequest, apperrors.KindValidation},
		{fmt.Errorf("wrapped: %w", apperrors.VenueNotFound("abc")), http.StatusNotFound, apperrors.KindNotFound},
		{apperrors.Conflict("busy"), http.StatusConflict, apperrors.KindConflict},
		{apperrors.Unauthorized("missing token"), http.StatusUnauthorized, apperrors.KindUnauthorized},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, httptest.NewRequest(http.MethodGet, "/api/venues", nil), logger.NewNop(), tc.err)

		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		body := decodeError(t, rec)
		assert.False(t, body.Success)
		assert.Equal(t, tc.kind, body.Error.Kind)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	var logs bytes.Buffer
	log, err := logger.New(logger.Options{Terminal: &logs})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	cause := errors.New(`pq: relation "venues" does not exist`)
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/api/venues", nil), log, apperrors.Internal("failed to list venues", cause))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Contains(t, logs.String(), "relation")

	rec = httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestValidationErrorCarriesParam(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, apperrors.Validation("sort_by", "bad sort"))

	body := decodeError(t, rec)
	assert.Equal(t, "sort_by", body.Error.Param)
	assert.Equal(t, "bad sort", body.Error.Message)
}

func TestEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, MessageResponse("Venue with ID v1 deleted successfully"))
	assert.JSONEq(t, `{"success": true, "message": "Venue with ID v1 deleted successfully"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, ListResponse{Success: true, Count: 0, Page: 1, Limit: 20, TotalPages: 0, Data: []string{}})
	assert.JSONEq(t, `{"success": true, "count": 0, "page": 1, "limit": 20, "total_pages": 0, "data": []}`, rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	log, err := logger.New(logger.Options{Terminal: &logs})
	require.NoError(t, err)

	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/venues", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, logs.String(), "/api/venues")
	assert.Contains(t, logs.String(), "418")
}
