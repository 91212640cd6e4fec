package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cinotify/internal/types"
)

// Discord caps embed descriptions at 4096 characters.
const maxDiscordDescription = 4096

// DiscordFormatter formats events as Discord webhook JSON with one embed.
type DiscordFormatter struct{}

func (f *DiscordFormatter) Platform() Platform { return PlatformDiscord }

func (f *DiscordFormatter) Format(_ context.Context, e *types.NotificationEvent, ch types.ChannelConfig) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("discord formatter: event is nil")
	}

	desc := e.Message
	if e.Details != "" {
		desc += "\n\n" + e.Details
	}
	if len(desc) > maxDiscordDescription {
		desc = desc[:maxDiscordDescription-3] + "..."
	}

	embed := DiscordEmbed{
		Title:       statusEmoji(e.Status) + " " + e.DisplayTitle(),
		Description: desc,
		URL:         e.SourceURL,
		Color:       statusColor(e.Status),
		Footer:      &DiscordFooter{Text: "CI Notifications"},
	}
	if !e.Metadata.Timestamp.IsZero() {
		embed.Timestamp = e.Metadata.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, fc := range eventFacts(e) {
		embed.Fields = append(embed.Fields, DiscordField{Name: fc.label, Value: fc.value, Inline: true})
	}

	username := optionString(ch.Options, "username")
	if username == "" {
		username = "CI Notifications"
	}

	return json.Marshal(DiscordPayload{
		Username: username,
		Content:  headline(e),
		Embeds:   []DiscordEmbed{embed},
	})
}

// ValidateResponse accepts any 2xx; Discord answers 204 without a body.
func (f *DiscordFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("discord: unexpected status %d: %s", statusCode, truncateBody(body))
}
