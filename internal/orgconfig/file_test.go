package orgconfig

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

const validYAML = `
version: "2.0.0"
lastOptimized: 2026-01-15T00:00:00Z
organizations:
  default:
    deduplication: {enabled: false}
    channels:
      - {id: fallback, type: webhook, enabled: true, destination: "https://example.com/hook"}
  acme:
    version: "3.1.0"
    deduplication: {enabled: true, windowMs: 60000}
    channels:
      - {id: slack, type: webhook, enabled: true, destination: "https://hooks.slack.com/services/T/B/X"}
      - {id: mail, type: email, enabled: false, destination: "dev@acme.test"}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orgs.yaml", validYAML)

	orgs, err := LoadFile(path)
	require.NoError(t, err)
	require.Contains(t, orgs, "acme")

	acme := orgs["acme"]
	assert.Equal(t, "acme", acme.OrganizationID)
	assert.Equal(t, "3.1.0", acme.Version)
	assert.True(t, acme.Deduplication.Enabled)
	assert.Equal(t, time.Minute, acme.Deduplication.Window())
	require.Len(t, acme.Channels, 2)
	assert.Equal(t, types.ChannelEmail, acme.Channels[1].Kind)
	require.NotNil(t, acme.LastOptimized)
	assert.Equal(t, 2026, acme.LastOptimized.Year())

	// File-level version applies when the organization sets none.
	assert.Equal(t, "2.0.0", orgs["default"].Version)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orgs.json", `{
		"version": "1.0.0",
		"organizations": {
			"acme": {"channels": [{"id": "a", "type": "webhook", "enabled": true, "destination": "https://example.com/a"}]}
		}
	}`)

	orgs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", orgs["acme"].Version)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"unparseable":        "organizations: [",
		"no organizations":   "version: 1",
		"unknown kind":       "organizations:\n  a:\n    channels:\n      - {id: x, type: sms, enabled: true, destination: '+15551234'}",
		"bad webhook url":    "organizations:\n  a:\n    channels:\n      - {id: x, type: webhook, enabled: true, destination: 'not a url'}",
		"bad email":          "organizations:\n  a:\n    channels:\n      - {id: x, type: email, enabled: true, destination: 'nobody'}",
		"missing channel id": "organizations:\n  a:\n    channels:\n      - {type: webhook, enabled: true, destination: 'https://x.test'}",
		"duplicate ids":      "organizations:\n  a:\n    channels:\n      - {id: x, type: webhook, enabled: true, destination: 'https://x.test'}\n      - {id: x, type: webhook, enabled: true, destination: 'https://y.test'}",
		"negative window":    "organizations:\n  a:\n    deduplication: {enabled: true, windowMs: -5}",
		"window too long":    "organizations:\n  a:\n    deduplication: {enabled: true, windowMs: 172800000}",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "orgs.yaml", content)
			_, err := LoadFile(path)
			require.Error(t, err)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFileProvider_DefaultFallback(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orgs.yaml", validYAML)
	p, err := NewFileProvider(path, quietLogger())
	require.NoError(t, err)

	cfg, err := p.GetOrganizationConfig(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.OrganizationID)

	cfg, err = p.GetOrganizationConfig(context.Background(), "unknown-org")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.OrganizationID)
	assert.Equal(t, "fallback", cfg.Channels[0].ChannelID)

	assert.ElementsMatch(t, []string{"default", "acme"}, p.Organizations())
}

func TestFileProvider_NoDefault(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orgs.yaml",
		"organizations:\n  acme:\n    channels: []\n")
	p, err := NewFileProvider(path, quietLogger())
	require.NoError(t, err)

	_, err = p.GetOrganizationConfig(context.Background(), "globex")
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundOrgConfig))
}

func TestFileProvider_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "orgs.yaml", validYAML)
	p, err := NewFileProvider(path, quietLogger())
	require.NoError(t, err)

	writeFile(t, dir, "orgs.yaml", "organizations: [")
	require.Error(t, p.Reload())

	cfg, err := p.GetOrganizationConfig(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", cfg.Version)
	assert.Equal(t, int64(1), p.Reloads())
}

func TestFileProvider_ReturnsCopies(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orgs.yaml", validYAML)
	p, err := NewFileProvider(path, quietLogger())
	require.NoError(t, err)

	cfg, _ := p.GetOrganizationConfig(context.Background(), "acme")
	cfg.Version = "mutated"

	again, _ := p.GetOrganizationConfig(context.Background(), "acme")
	assert.Equal(t, "3.1.0", again.Version)
}

func TestFileProvider_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "orgs.yaml", validYAML)
	p, err := NewFileProvider(path, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	updated := "organizations:\n  acme:\n    version: \"9.9.9\"\n    channels: []\n"
	require.Eventually(t, func() bool {
		// Rewrite until the watcher has been registered and picks it up.
		_ = os.WriteFile(path, []byte(updated), 0o600)
		cfg, err := p.GetOrganizationConfig(context.Background(), "acme")
		return err == nil && cfg.Version == "9.9.9"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
