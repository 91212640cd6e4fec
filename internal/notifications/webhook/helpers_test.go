package webhook

import (
	"time"

	"cinotify/internal/types"
)

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) With(args ...any) types.Logger { return m }

// mockClock provides a controllable clock for testing.
type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

func testEvent(status types.EventStatus) *types.NotificationEvent {
	return &types.NotificationEvent{
		Status:     status,
		Message:    "Deploy to production finished",
		Details:    "3 services updated",
		Repository: "acme/api",
		Branch:     "main",
		Target:     "production",
		SourceURL:  "https://github.com/acme/api/actions/runs/42",
		Context:    map[string]any{"commit": "abc1234", "actor": "octocat"},
		Metadata: types.EventMetadata{
			Timestamp:      time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			RequestID:      "req-123",
			OrganizationID: "acme",
		},
	}
}
