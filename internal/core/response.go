package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cinotify/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20

// ErrorResponse is the body of every non-2xx response. Error carries the
// HTTP reason phrase; Code is the machine-readable types.ErrorCode.
type ErrorResponse struct {
	Success   *bool    `json:"success,omitempty"`
	Error     string   `json:"error"`
	Message   string   `json:"message,omitempty"`
	Code      string   `json:"code,omitempty"`
	Allowed   []string `json:"allowed,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// JSON writes data with the given status code. If marshalling fails it falls
// back to a 500 error body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error:     http.StatusText(http.StatusInternalServerError),
			Message:   "failed to marshal response",
			Code:      string(types.ErrCodeInternalUnexpected),
			RequestID: types.GetRequestID(r.Context()),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an ErrorResponse. AppErrors keep their message and map
// their code to a status; anything else becomes an opaque 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus()
		JSON(w, r, status, ErrorResponse{
			Error:     http.StatusText(status),
			Message:   appErr.Message,
			Code:      string(appErr.Code),
			RequestID: requestID,
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, ErrorResponse{
		Error:     http.StatusText(http.StatusInternalServerError),
		Message:   "an unexpected error occurred",
		Code:      string(types.ErrCodeInternalUnexpected),
		RequestID: requestID,
	})
}

// MethodNotAllowed writes a 405 listing the allowed methods.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	JSON(w, r, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "Method not allowed",
		Allowed: allowed,
	})
}

// DecodeJSON reads a single JSON object from the body into dst. The body is
// capped at 1 MB. Unknown fields are accepted: CI producers attach extra
// keys freely.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidBody,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "request body must not exceed 1MB", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidBody,
			"invalid value for field "+typeErr.Field, err,
			map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()})
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "request body must not be empty", err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "malformed JSON in request body", err)
	}
	return types.NewAppError(types.ErrCodeValidationInvalidBody, "invalid JSON in request body", err)
}
