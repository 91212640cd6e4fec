package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"cinotify/internal/types"
)

// TeamsFormatter formats events as an Adaptive Card for Teams workflows.
type TeamsFormatter struct{}

func (f *TeamsFormatter) Platform() Platform { return PlatformTeams }

func (f *TeamsFormatter) Format(_ context.Context, e *types.NotificationEvent, _ types.ChannelConfig) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("teams formatter: event is nil")
	}

	body := []AdaptiveItem{
		{Type: "TextBlock", Text: e.DisplayTitle(), Size: "Large", Weight: "Bolder", Color: teamsColor(e.Status), Wrap: true},
		{Type: "TextBlock", Text: e.Message, Wrap: true},
	}
	if e.Details != "" {
		body = append(body, AdaptiveItem{Type: "TextBlock", Text: e.Details, Size: "Small", Wrap: true})
	}

	var facts []Fact
	for _, fc := range eventFacts(e) {
		facts = append(facts, Fact{Title: fc.label, Value: fc.value})
	}
	if len(facts) > 0 {
		body = append(body, AdaptiveItem{Type: "FactSet", Facts: facts})
	}

	card := AdaptiveCard{Type: "AdaptiveCard", Version: "1.4", Body: body}
	if e.SourceURL != "" {
		card.Actions = []AdaptiveItem{{Type: "Action.OpenUrl", Title: "View workflow run", URL: e.SourceURL}}
	}

	return json.Marshal(TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content:     card,
		}},
	})
}

func teamsColor(s types.EventStatus) string {
	switch s {
	case types.EventStatusSuccess:
		return "Good"
	case types.EventStatusError:
		return "Attention"
	case types.EventStatusWarning:
		return "Warning"
	default:
		return "Accent"
	}
}

// ValidateResponse accepts 2xx. Workflows answer 202 Accepted.
func (f *TeamsFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("teams: unexpected status %d: %s", statusCode, truncateBody(body))
}
