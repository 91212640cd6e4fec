package health

import (
	"context"
	"sort"
	"sync/atomic"

	"cinotify/internal/types"
)

// StatusRecorder receives the overall status after every monitor run.
type StatusRecorder interface {
	RecordHealth(ctx context.Context, status types.HealthStatus)
}

// Monitor runs the Aggregator periodically, caches the latest report and
// logs status transitions.
type Monitor struct {
	agg      *Aggregator
	logger   types.Logger
	recorder StatusRecorder
	latest   atomic.Pointer[Report]
}

// NewMonitor creates a Monitor. recorder may be nil.
func NewMonitor(agg *Aggregator, logger types.Logger, recorder StatusRecorder) *Monitor {
	return &Monitor{agg: agg, logger: logger, recorder: recorder}
}

// Latest returns the most recent report, or nil before the first run.
func (m *Monitor) Latest() *Report {
	return m.latest.Load()
}

// Run executes one round and logs when the overall status changed.
func (m *Monitor) Run(ctx context.Context) *Report {
	report := m.agg.Run(ctx)
	prev := m.latest.Swap(report)

	if m.recorder != nil {
		m.recorder.RecordHealth(ctx, report.Status)
	}

	from := types.HealthHealthy
	if prev != nil {
		from = prev.Status
	}
	if from == report.Status {
		return report
	}

	failing := failingChecks(report.Checks)
	switch report.Status {
	case types.HealthUnhealthy:
		m.logger.Error("service health changed", "from", from, "to", report.Status, "failing", failing)
	case types.HealthDegraded:
		m.logger.Warn("service health changed", "from", from, "to", report.Status, "failing", failing)
	default:
		m.logger.Info("service health recovered", "from", from, "to", report.Status)
	}
	return report
}

func failingChecks(checks types.ProbeSet) []string {
	var out []string
	for name, c := range checks {
		if c.Status != types.HealthHealthy {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
