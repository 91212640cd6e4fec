package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cinotify/internal/types"
)

// Messages returned for rejected notify bodies.
const (
	msgMissingFields = "Missing required fields: status, message"
	msgInvalidStatus = "Invalid status. Must be: success, error, warning, info"
)

// RequestValidator wraps go-playground/validator with the service's custom
// tags. Field names in errors use the JSON tag.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator registers the custom tags:
//   - event_status: one of success, error, warning, info.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("event_status", func(fl validator.FieldLevel) bool {
		return types.EventStatus(fl.Field().String()).IsValid()
	})
	return &RequestValidator{v: v}
}

// ValidateNotify checks a notify body. Missing required fields win over an
// invalid status so the caller sees the most basic problem first. Only an
// absent or zero-length message is missing; whitespace is kept as sent.
func (rv *RequestValidator) ValidateNotify(req *notifyRequest) error {
	req.Status = strings.TrimSpace(req.Status)

	err := rv.v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "invalid request body", err)
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, msgMissingFields, nil,
				map[string]any{"field": fe.Field()})
		}
	}
	for _, fe := range verrs {
		if fe.Tag() == "event_status" {
			return types.NewAppError(types.ErrCodeValidationInvalidStatus, msgInvalidStatus, nil)
		}
	}
	fe := verrs[0]
	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidBody,
		"Invalid value for field "+fe.Field(), nil,
		map[string]any{"field": fe.Field(), "rule": fe.Tag()})
}
