package scheduler

import (
	"context"
	"time"

	"cinotify/internal/dedup"
	"cinotify/internal/health"
	"cinotify/internal/ratelimit"
	"cinotify/internal/types"
)

// Job names.
const (
	JobRateLimitSweep = "ratelimit_sweep"
	JobDedupPurge     = "dedup_purge"
	JobHealthMonitor  = "health_monitor"
)

// RateLimitSweeper forgets identifiers idle for longer than Retention.
type RateLimitSweeper struct {
	Store     ratelimit.Store
	Retention time.Duration
}

func (RateLimitSweeper) Name() string { return JobRateLimitSweep }

func (j RateLimitSweeper) Run(ctx context.Context) error {
	retention := j.Retention
	if retention <= 0 {
		retention = ratelimit.DefaultRetention
	}
	_, err := j.Store.Sweep(ctx, retention)
	return err
}

// DedupPurger drops fingerprints last seen more than MaxAge ago. MaxAge is
// raised to types.MaxDedupWindow so no fingerprint is dropped while an
// organization's window could still suppress it.
type DedupPurger struct {
	Store  dedup.Store
	MaxAge time.Duration
}

func (DedupPurger) Name() string { return JobDedupPurge }

func (j DedupPurger) Run(ctx context.Context) error {
	_, err := j.Store.Purge(ctx, max(j.MaxAge, types.MaxDedupWindow))
	return err
}

// HealthCheck runs one monitor round.
type HealthCheck struct {
	Monitor *health.Monitor
}

func (HealthCheck) Name() string { return JobHealthMonitor }

func (j HealthCheck) Run(ctx context.Context) error {
	j.Monitor.Run(ctx)
	return nil
}
