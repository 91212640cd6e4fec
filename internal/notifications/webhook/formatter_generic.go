package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"cinotify/internal/types"
)

// GenericFormatter emits the event as a stable JSON envelope for endpoints
// that match no known platform.
type GenericFormatter struct{}

func (f *GenericFormatter) Platform() Platform { return PlatformGeneric }

// GenericPayload is the envelope posted to generic endpoints.
type GenericPayload struct {
	Event          string                   `json:"event"`
	OrganizationID string                   `json:"organization_id"`
	RequestID      string                   `json:"request_id"`
	Title          string                   `json:"title"`
	Notification   *types.NotificationEvent `json:"notification"`
}

func (f *GenericFormatter) Format(_ context.Context, e *types.NotificationEvent, _ types.ChannelConfig) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("generic formatter: event is nil")
	}
	return json.Marshal(GenericPayload{
		Event:          "ci." + string(e.Status),
		OrganizationID: e.Metadata.OrganizationID,
		RequestID:      e.Metadata.RequestID,
		Title:          e.DisplayTitle(),
		Notification:   e,
	})
}

func (f *GenericFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("generic webhook: unexpected status %d: %s", statusCode, truncateBody(body))
}
