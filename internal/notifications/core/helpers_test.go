package core

import (
	"context"
	"sync"
	"time"

	"cinotify/internal/types"
)

// mockLogger implements types.Logger and keeps messages for assertions.
type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *mockLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *mockLogger) Info(msg string, args ...any)  { l.record(msg) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(msg) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record(msg) }
func (l *mockLogger) With(args ...any) types.Logger { return l }

func (l *mockLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// funcSender is a Sender whose behavior is supplied per test.
type funcSender struct {
	kind types.ChannelKind
	fn   func(ctx context.Context, ch types.ChannelConfig) error
}

func (s *funcSender) Kind() types.ChannelKind { return s.kind }

func (s *funcSender) Send(ctx context.Context, _ *types.NotificationEvent, ch types.ChannelConfig) error {
	return s.fn(ctx, ch)
}

// recordingMetrics counts calls by result.
type recordingMetrics struct {
	mu         sync.Mutex
	deliveries map[MetricResult]int
	decisions  map[bool]int
	latencies  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{deliveries: map[MetricResult]int{}, decisions: map[bool]int{}}
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, _ types.ChannelKind, result MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[result]++
}

func (m *recordingMetrics) RecordLatency(context.Context, types.ChannelKind, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *recordingMetrics) RecordDecision(_ context.Context, _ string, notify bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[notify]++
}
