package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// fingerprintInput fixes the field order of the hashed document.
type fingerprintInput struct {
	Status     EventStatus `json:"status"`
	Repository string      `json:"repository"`
	Branch     string      `json:"branch"`
	Target     string      `json:"target"`
	Message    string      `json:"message"`
}

// Fingerprint returns the hex SHA-256 identity of an event used for
// deduplication. Metadata, title, details and context are ignored, so two
// submissions of the same outcome collide regardless of when they were sent.
func Fingerprint(e *NotificationEvent) string {
	if e == nil {
		e = &NotificationEvent{}
	}
	// Marshalling a struct of strings cannot fail.
	doc, _ := json.Marshal(fingerprintInput{
		Status:     e.Status,
		Repository: e.Repository,
		Branch:     e.Branch,
		Target:     e.Target,
		Message:    NormalizeMessage(e.Message),
	})
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// NormalizeMessage trims, lower-cases and collapses runs of whitespace.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}
