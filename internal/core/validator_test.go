package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

func TestValidateNotify(t *testing.T) {
	rv := NewRequestValidator()

	tests := []struct {
		name string
		req  notifyRequest
		code types.ErrorCode
		msg  string
	}{
		{"valid", notifyRequest{Status: "success", Message: "ok"}, "", ""},
		{"status is trimmed", notifyRequest{Status: "  warning ", Message: "ok"}, "", ""},
		{"missing status", notifyRequest{Message: "ok"}, types.ErrCodeValidationMissingField, msgMissingFields},
		{"empty message", notifyRequest{Status: "info", Message: ""}, types.ErrCodeValidationMissingField, msgMissingFields},
		{"whitespace message is accepted", notifyRequest{Status: "info", Message: "   "}, "", ""},
		{"missing wins over bad status", notifyRequest{Status: "broken"}, types.ErrCodeValidationMissingField, msgMissingFields},
		{"bad status", notifyRequest{Status: "SUCCESS", Message: "ok"}, types.ErrCodeValidationInvalidStatus, msgInvalidStatus},
		{"title too long", notifyRequest{Status: "error", Message: "ok", Title: strings.Repeat("t", 257)}, types.ErrCodeValidationInvalidBody, "Invalid value for field title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := rv.ValidateNotify(&req)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}
}

func TestValidateNotify_TrimsStatus(t *testing.T) {
	req := notifyRequest{Status: " error\n", Message: "deploy failed"}
	require.NoError(t, NewRequestValidator().ValidateNotify(&req))
	assert.Equal(t, "error", req.Status)
}
