package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cinotify/internal/types"
)

// SlackFormatter formats events as Slack Block Kit JSON.
type SlackFormatter struct{}

func (f *SlackFormatter) Platform() Platform { return PlatformSlack }

// Format builds a header, the message, a field grid and a context footer.
func (f *SlackFormatter) Format(_ context.Context, e *types.NotificationEvent, _ types.ChannelConfig) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("slack formatter: event is nil")
	}

	payload := SlackPayload{
		Text: headline(e),
		Blocks: []SlackBlock{
			{Type: "header", Text: &SlackText{Type: "plain_text", Text: statusEmoji(e.Status) + " " + e.DisplayTitle()}},
			{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: e.Message}},
		},
	}

	if e.Details != "" {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: "```" + e.Details + "```"},
		})
	}

	var fields []*SlackText
	for _, fc := range eventFacts(e) {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", fc.label, fc.value)})
	}
	// Slack rejects sections with more than 10 fields.
	for len(fields) > 0 {
		n := min(len(fields), 10)
		payload.Blocks = append(payload.Blocks, SlackBlock{Type: "section", Fields: fields[:n]})
		fields = fields[n:]
	}

	footer := "CI Notifications"
	if e.SourceURL != "" {
		footer = fmt.Sprintf("<%s|View workflow run> | %s", e.SourceURL, footer)
	}
	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type:     "context",
		Elements: []*SlackText{{Type: "mrkdwn", Text: footer}},
	})

	return json.Marshal(payload)
}

// ValidateResponse detects Slack's soft failures.
func (f *SlackFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", statusCode)
	}

	bodyStr := strings.TrimSpace(string(body))
	if bodyStr == "" || bodyStr == "ok" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	switch bodyStr {
	case "no_text", "channel_not_found", "channel_is_archived", "invalid_payload", "no_service":
		return fmt.Errorf("slack: API error: %s", bodyStr)
	}
	return nil
}
