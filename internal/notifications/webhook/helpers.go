package webhook

import (
	"fmt"
	"sort"
	"strings"

	"cinotify/internal/types"
)

const maxBodyInError = 200

// fact is one labeled value shown by every platform formatter.
type fact struct {
	label string
	value string
}

// eventFacts lists the populated pipeline fields in display order, followed
// by the caller-supplied context keys sorted by name.
func eventFacts(e *types.NotificationEvent) []fact {
	var out []fact
	add := func(label, value string) {
		if value != "" {
			out = append(out, fact{label, value})
		}
	}
	add("Status", statusLabel(e.Status))
	add("Repository", e.Repository)
	add("Branch", e.Branch)
	add("Target", e.Target)

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, fmt.Sprint(e.Context[k]))
	}
	return out
}

func statusLabel(s types.EventStatus) string {
	switch s {
	case types.EventStatusSuccess:
		return "Success"
	case types.EventStatusError:
		return "Failed"
	case types.EventStatusWarning:
		return "Warning"
	case types.EventStatusInfo:
		return "Info"
	}
	return string(s)
}

func statusEmoji(s types.EventStatus) string {
	switch s {
	case types.EventStatusSuccess:
		return "✅"
	case types.EventStatusError:
		return "❌"
	case types.EventStatusWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Decimal color codes shared by Discord embeds and Teams accents.
const (
	colorSuccess = 0x4CAF50
	colorError   = 0xF44336
	colorWarning = 0xFF9800
	colorInfo    = 0x2196F3
)

func statusColor(s types.EventStatus) int {
	switch s {
	case types.EventStatusSuccess:
		return colorSuccess
	case types.EventStatusError:
		return colorError
	case types.EventStatusWarning:
		return colorWarning
	default:
		return colorInfo
	}
}

// headline is the one-line text used for push previews.
func headline(e *types.NotificationEvent) string {
	h := fmt.Sprintf("%s %s", statusEmoji(e.Status), e.DisplayTitle())
	if e.Repository != "" {
		h += " • " + e.Repository
	}
	return h
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyInError {
		return s[:maxBodyInError] + "..."
	}
	return s
}

func optionString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
