package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"cinotify/internal/types"
)

// GoogleChatFormatter formats events as a Google Chat card.
type GoogleChatFormatter struct{}

func (f *GoogleChatFormatter) Platform() Platform { return PlatformGoogleChat }

func (f *GoogleChatFormatter) Format(_ context.Context, e *types.NotificationEvent, _ types.ChannelConfig) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("google chat formatter: event is nil")
	}

	text := e.Message
	if e.SourceURL != "" {
		text += fmt.Sprintf(`<br><a href="%s">View workflow run</a>`, e.SourceURL)
	}
	sections := []GoogleSection{{
		Widgets: []GoogleWidget{{TextParagraph: &GoogleTextParagraph{Text: text}}},
	}}

	var details []GoogleWidget
	for _, fc := range eventFacts(e) {
		details = append(details, GoogleWidget{KeyValue: &GoogleKeyValue{TopLabel: fc.label, Content: fc.value}})
	}
	if len(details) > 0 {
		sections = append(sections, GoogleSection{Header: "Details", Widgets: details})
	}

	return json.Marshal(GoogleChatPayload{Cards: []GoogleCard{{
		Header:   GoogleHeader{Title: statusEmoji(e.Status) + " " + e.DisplayTitle(), Subtitle: e.Repository},
		Sections: sections,
	}}})
}

func (f *GoogleChatFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("google chat: unexpected status %d: %s", statusCode, truncateBody(body))
}
