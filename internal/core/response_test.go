package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

func TestError_MapsAppErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", types.NewAppError(types.ErrCodeValidationInvalidStatus, "bad status", nil), http.StatusBadRequest, "validation_invalid_status"},
		{"auth", types.NewAppError(types.ErrCodeAuthUnauthorized, "no", nil), http.StatusUnauthorized, "auth_unauthorized"},
		{"rate limited", types.NewAppError(types.ErrCodeRateLimited, "slow down", nil), http.StatusTooManyRequests, "rate_limited"},
		{"plain error", errors.New("kaboom"), http.StatusInternalServerError, "internal_unexpected_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-9"))
			rec := httptest.NewRecorder()

			Error(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, http.StatusText(tt.status), body.Error)
			assert.Equal(t, "req-9", body.RequestID)
			assert.NotContains(t, rec.Body.String(), "kaboom")
		})
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_unexpected_error")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/notify", nil), http.MethodPost)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
	assert.JSONEq(t, `{"error":"Method not allowed","allowed":["POST"]}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"valid with unknown field", `{"status":"info","message":"hi","runner":"linux"}`, ""},
		{"empty", ``, "request body must not be empty"},
		{"syntax", `{"status":`, "malformed JSON in request body"},
		{"bad json token", `{"status" "info"}`, "malformed JSON in request body"},
		{"wrong type", `{"status":7}`, "invalid value for field status"},
		{"two values", `{"status":"info"} {"status":"error"}`, "request body must contain a single JSON object"},
		{"too large", `{"message":"` + strings.Repeat("x", maxRequestBodySize) + `"}`, "request body must not exceed 1MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(tt.body))
			var dst notifyRequest
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.msg == "" {
				require.NoError(t, err)
				assert.Equal(t, "info", dst.Status)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidBody))
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}
}
