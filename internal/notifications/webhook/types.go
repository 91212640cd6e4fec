package webhook

import (
	"context"

	"cinotify/internal/types"
)

// Platform identifies a webhook destination platform.
type Platform string

const (
	PlatformGeneric    Platform = "generic"
	PlatformSlack      Platform = "slack"
	PlatformDiscord    Platform = "discord"
	PlatformTeams      Platform = "teams"
	PlatformGoogleChat Platform = "google_chat"
)

// PlatformFormatter transforms an event into platform-specific JSON.
type PlatformFormatter interface {
	Format(ctx context.Context, e *types.NotificationEvent, ch types.ChannelConfig) ([]byte, error)

	Platform() Platform

	// ValidateResponse interprets the response body to catch soft failures
	// (Slack answering 200 with "ok": false).
	ValidateResponse(statusCode int, body []byte) error
}

// --- Slack Payload Types (Block Kit) ---

type SlackPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type     string       `json:"type"`
	Text     *SlackText   `json:"text,omitempty"`
	Fields   []*SlackText `json:"fields,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"` // "plain_text", "mrkdwn"
	Text string `json:"text"`
}

// --- Microsoft Teams Payload Types (Adaptive Cards) ---

type TeamsPayload struct {
	Type        string            `json:"type"`
	Attachments []TeamsAttachment `json:"attachments"`
}

type TeamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

type AdaptiveCard struct {
	Type    string         `json:"type"`
	Version string         `json:"version"`
	Body    []AdaptiveItem `json:"body"`
	Actions []AdaptiveItem `json:"actions,omitempty"`
}

type AdaptiveItem struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Color  string `json:"color,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
	Facts  []Fact `json:"facts,omitempty"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// --- Discord Payload Types (Embeds) ---

type DiscordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

// --- Google Chat Payload Types ---

type GoogleChatPayload struct {
	Cards []GoogleCard `json:"cards"`
}

type GoogleCard struct {
	Header   GoogleHeader    `json:"header"`
	Sections []GoogleSection `json:"sections"`
}

type GoogleHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

type GoogleSection struct {
	Header  string         `json:"header,omitempty"`
	Widgets []GoogleWidget `json:"widgets"`
}

type GoogleWidget struct {
	KeyValue      *GoogleKeyValue      `json:"keyValue,omitempty"`
	TextParagraph *GoogleTextParagraph `json:"textParagraph,omitempty"`
}

type GoogleKeyValue struct {
	TopLabel string `json:"topLabel"`
	Content  string `json:"content"`
}

type GoogleTextParagraph struct {
	Text string `json:"text"`
}
