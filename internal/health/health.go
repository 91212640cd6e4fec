// Package health runs subsystem probes concurrently and folds their results
// into a single service status.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cinotify/internal/types"
)

// DefaultTimeout bounds a whole Run. Probes still running when it expires
// are reported unhealthy.
const DefaultTimeout = 2 * time.Second

// Probe checks one subsystem. Check reports the probe's own view of the
// subsystem; an error means the check itself could not complete and is
// turned into an unhealthy result by the Aggregator.
type Probe interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) (types.HealthCheckResult, error)
}

// Report is the aggregated outcome of one Run.
type Report struct {
	Status    types.HealthStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Checks    types.ProbeSet     `json:"checks"`
}

// HTTPStatus maps the report status to the /health response code.
func (r *Report) HTTPStatus() int {
	if r.Status == types.HealthUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Add merges an extra result into the report and recomputes the status.
func (r *Report) Add(res types.HealthCheckResult) {
	if r.Checks == nil {
		r.Checks = make(types.ProbeSet)
	}
	r.Checks[res.Name] = res
	r.Status = Aggregate(r.Checks)
}

// Aggregate folds a ProbeSet into the overall status. Rules, in order:
// a critical unhealthy probe makes the service unhealthy; any degraded probe
// makes it degraded; a non-critical unhealthy probe also degrades it.
// An empty set is healthy.
func Aggregate(checks types.ProbeSet) types.HealthStatus {
	degraded := false
	for _, c := range checks {
		switch c.Status {
		case types.HealthUnhealthy:
			if c.Critical {
				return types.HealthUnhealthy
			}
			degraded = true
		case types.HealthDegraded:
			degraded = true
		}
	}
	if degraded {
		return types.HealthDegraded
	}
	return types.HealthHealthy
}

// Aggregator runs a fixed set of probes.
type Aggregator struct {
	probes  []Probe
	timeout time.Duration
	clock   types.Clock
	logger  types.Logger
}

// NewAggregator creates an Aggregator. A non-positive timeout means
// DefaultTimeout.
func NewAggregator(timeout time.Duration, clock types.Clock, logger types.Logger, probes ...Probe) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Aggregator{probes: probes, timeout: timeout, clock: clock, logger: logger}
}

// Probes returns the registered probe names in registration order.
func (a *Aggregator) Probes() []string {
	names := make([]string, len(a.probes))
	for i, p := range a.probes {
		names[i] = p.Name()
	}
	return names
}

type probeResult struct {
	index  int
	result types.HealthCheckResult
}

// Run executes every probe concurrently and returns the aggregated report.
// It never fails: probe errors, panics and timeouts become unhealthy results.
func (a *Aggregator) Run(ctx context.Context) *Report {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make(chan probeResult, len(a.probes))
	for i, p := range a.probes {
		go func() {
			results <- probeResult{index: i, result: a.runProbe(ctx, p)}
		}()
	}

	checks := make(types.ProbeSet, len(a.probes))
	done := make([]bool, len(a.probes))
collect:
	for range a.probes {
		select {
		case r := <-results:
			checks[r.result.Name] = r.result
			done[r.index] = true
		case <-ctx.Done():
			break collect
		}
	}
drain:
	for {
		select {
		case r := <-results:
			checks[r.result.Name] = r.result
			done[r.index] = true
		default:
			break drain
		}
	}

	for i, p := range a.probes {
		if done[i] {
			continue
		}
		checks[p.Name()] = types.HealthCheckResult{
			Name:      p.Name(),
			Status:    types.HealthUnhealthy,
			Critical:  p.Critical(),
			Detail:    map[string]any{"error": "health check timed out"},
			LatencyMs: a.timeout.Milliseconds(),
		}
		if a.logger != nil {
			a.logger.Warn("health probe timed out", "probe", p.Name())
		}
	}

	return &Report{
		Status:    Aggregate(checks),
		Timestamp: a.clock.Now(),
		Checks:    checks,
	}
}

func (a *Aggregator) runProbe(ctx context.Context, p Probe) (res types.HealthCheckResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = failed(p, fmt.Errorf("probe panicked: %v", r))
		}
		res.Name = p.Name()
		res.Critical = p.Critical()
		res.LatencyMs = time.Since(start).Milliseconds()
	}()

	res, err := p.Check(ctx)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("health probe failed", "probe", p.Name(), "error", err.Error())
		}
		return failed(p, err)
	}
	if res.Status == "" {
		res.Status = types.HealthHealthy
	}
	return res
}

func failed(p Probe, err error) types.HealthCheckResult {
	return types.HealthCheckResult{
		Name:     p.Name(),
		Status:   types.HealthUnhealthy,
		Critical: p.Critical(),
		Detail:   map[string]any{"error": err.Error()},
	}
}
