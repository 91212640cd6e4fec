// Package scheduler runs the service's periodic maintenance jobs on a cron
// schedule: rate-limit sweeps, dedup purges and health monitoring.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

type entry struct {
	job     Job
	spec    string
	timeout time.Duration
	id      cron.EntryID
}

// Runner owns the cron instance. Overlapping runs of the same job are
// skipped.
type Runner struct {
	mu      sync.Mutex
	log     *slog.Logger
	parser  cron.Parser
	c       *cron.Cron
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewRunner creates a stopped Runner.
func NewRunner(log *slog.Logger) *Runner {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:     log,
		parser:  parser,
		c:       cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		entries: map[string]*entry{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register schedules job with a cron spec or "@every" descriptor. Each run
// gets its own timeout; zero means no timeout beyond Stop.
func (r *Runner) Register(spec string, timeout time.Duration, job Job) error {
	if _, err := r.parser.Parse(spec); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for %s: %w", spec, job.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[job.Name()]; dup {
		return fmt.Errorf("scheduler: job %s already registered", job.Name())
	}
	e := &entry{job: job, spec: spec, timeout: timeout}
	id, err := r.c.AddFunc(spec, func() { r.execute(r.ctx, e) })
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", job.Name(), err)
	}
	e.id = id
	r.entries[job.Name()] = e
	return nil
}

// Start begins firing schedules.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.c.Start()
	r.log.Info("scheduler started", slog.Int("jobs", len(r.entries)))
	for name, e := range r.entries {
		r.log.Info("job scheduled",
			slog.String("job", name),
			slog.String("schedule", e.spec),
			slog.Time("next", r.c.Entry(e.id).Next),
		)
	}
}

// Stop cancels running jobs and waits for them until ctx expires.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	r.cancel()
	select {
	case <-r.c.Stop().Done():
		r.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered job immediately, outside its schedule.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %s", name)
	}
	return r.execute(ctx, e)
}

func (r *Runner) execute(ctx context.Context, e *entry) (err error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
		dur := time.Since(start)
		switch {
		case err == nil:
			r.log.Info("job finished", slog.String("job", e.job.Name()), slog.Duration("duration", dur))
		case errors.Is(err, context.Canceled):
			r.log.Warn("job cancelled", slog.String("job", e.job.Name()), slog.Duration("duration", dur))
		default:
			r.log.Error("job failed", slog.String("job", e.job.Name()), slog.Duration("duration", dur), slog.String("err", err.Error()))
		}
	}()

	return e.job.Run(ctx)
}
