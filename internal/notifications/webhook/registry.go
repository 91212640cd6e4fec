package webhook

import (
	"strings"
)

// PlatformRegistry maps destination URLs to formatters.
type PlatformRegistry struct {
	formatters map[Platform]PlatformFormatter
}

// NewPlatformRegistry creates a registry with all built-in formatters.
func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{formatters: map[Platform]PlatformFormatter{
		PlatformSlack:      &SlackFormatter{},
		PlatformTeams:      &TeamsFormatter{},
		PlatformDiscord:    &DiscordFormatter{},
		PlatformGoogleChat: &GoogleChatFormatter{},
		PlatformGeneric:    &GenericFormatter{},
	}}
}

// Detect determines the target platform.
//
// Detection logic (priority order):
//  1. options["platform"], when it names a registered platform
//  2. URL patterns: hooks.slack.com, discord.com/api/webhooks,
//     .webhook.office.com or .logic.azure.com, chat.googleapis.com
//  3. PlatformGeneric
func (r *PlatformRegistry) Detect(url string, options map[string]any) Platform {
	if override := optionString(options, "platform"); override != "" {
		if _, ok := r.formatters[Platform(override)]; ok {
			return Platform(override)
		}
	}

	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "hooks.slack.com"):
		return PlatformSlack
	case strings.Contains(lower, "discord.com/api/webhooks"), strings.Contains(lower, "discordapp.com/api/webhooks"):
		return PlatformDiscord
	case strings.Contains(lower, ".webhook.office.com"), strings.Contains(lower, ".logic.azure.com"):
		return PlatformTeams
	case strings.Contains(lower, "chat.googleapis.com"):
		return PlatformGoogleChat
	}
	return PlatformGeneric
}

// Get returns the formatter for p, or the generic formatter.
func (r *PlatformRegistry) Get(p Platform) PlatformFormatter {
	if f, ok := r.formatters[p]; ok {
		return f
	}
	return r.formatters[PlatformGeneric]
}
