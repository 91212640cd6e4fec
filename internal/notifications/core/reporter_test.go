package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinotify/internal/types"
)

func TestErrorReporter_Delivers(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []types.ChannelConfig
		seen *types.NotificationEvent
	)
	sender := &captureSender{fn: func(e *types.NotificationEvent, ch types.ChannelConfig) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ch)
		seen = e
		return nil
	}}

	r := NewErrorReporter(sender, "https://admin.example.com/hook", time.Second, nil, &mockLogger{})
	require.True(t, r.Enabled())

	r.NotifyAndIgnore(errors.New("config provider exploded"), "req-42", "acme")
	r.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, AdminChannelID, got[0].ChannelID)
	assert.Equal(t, "https://admin.example.com/hook", got[0].Destination)
	assert.Equal(t, types.EventStatusError, seen.Status)
	assert.Contains(t, seen.Message, "config provider exploded")
	assert.Equal(t, "req-42", seen.Metadata.RequestID)
}

func TestErrorReporter_FailuresAreSwallowed(t *testing.T) {
	logger := &mockLogger{}
	sender := &captureSender{fn: func(*types.NotificationEvent, types.ChannelConfig) error {
		return errors.New("admin webhook down")
	}}
	r := NewErrorReporter(sender, "https://admin.example.com/hook", time.Second, nil, logger)

	r.NotifyAndIgnore(errors.New("boom"), "req-1", "acme")
	r.Wait()
	assert.Contains(t, logger.messages(), "failed to deliver admin notice")

	panicky := &captureSender{fn: func(*types.NotificationEvent, types.ChannelConfig) error { panic("bad") }}
	r = NewErrorReporter(panicky, "https://admin.example.com/hook", time.Second, nil, logger)
	r.NotifyAndIgnore(errors.New("boom"), "req-2", "acme")
	r.Wait()
	assert.Contains(t, logger.messages(), "admin notice panicked")
}

func TestErrorReporter_Disabled(t *testing.T) {
	called := false
	sender := &captureSender{fn: func(*types.NotificationEvent, types.ChannelConfig) error {
		called = true
		return nil
	}}

	r := NewErrorReporter(sender, "", time.Second, nil, &mockLogger{})
	assert.False(t, r.Enabled())
	r.NotifyAndIgnore(errors.New("boom"), "req-1", "acme")
	r.Wait()
	assert.False(t, called)

	var nilReporter *ErrorReporter
	assert.False(t, nilReporter.Enabled())
	nilReporter.NotifyAndIgnore(errors.New("boom"), "req-1", "acme")
	nilReporter.Wait()
}

type captureSender struct {
	fn func(*types.NotificationEvent, types.ChannelConfig) error
}

func (s *captureSender) Kind() types.ChannelKind { return types.ChannelWebhook }

func (s *captureSender) Send(_ context.Context, e *types.NotificationEvent, ch types.ChannelConfig) error {
	return s.fn(e, ch)
}
