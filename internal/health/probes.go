package health

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker/v2"

	"cinotify/internal/dedup"
	"cinotify/internal/orgconfig"
	"cinotify/internal/ratelimit"
	"cinotify/internal/types"
)

// SentinelID is the identifier probes use against shared stores so they
// never touch a real organization's state.
const SentinelID = "__health_check__"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe pings the Postgres pool. It is critical: the postgres
// backends cannot work without it.
type DatabaseProbe struct {
	DB Pinger
}

func (DatabaseProbe) Name() string   { return "database" }
func (DatabaseProbe) Critical() bool { return true }

func (p DatabaseProbe) Check(ctx context.Context) (types.HealthCheckResult, error) {
	if err := p.DB.Ping(ctx); err != nil {
		return types.HealthCheckResult{}, err
	}
	res := types.HealthCheckResult{Status: types.HealthHealthy}
	if pool, ok := p.DB.(*pgxpool.Pool); ok {
		stat := pool.Stat()
		res.Detail = map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
	return res, nil
}

// ConfigProviderProbe resolves the sentinel organization. A NotFound answer
// still proves the provider is reachable.
type ConfigProviderProbe struct {
	Provider orgconfig.Provider
}

func (ConfigProviderProbe) Name() string   { return "config_provider" }
func (ConfigProviderProbe) Critical() bool { return false }

func (p ConfigProviderProbe) Check(ctx context.Context) (types.HealthCheckResult, error) {
	cfg, err := p.Provider.GetOrganizationConfig(ctx, SentinelID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundOrgConfig) {
			return types.HealthCheckResult{
				Status: types.HealthHealthy,
				Detail: map[string]any{"default_config": false},
			}, nil
		}
		return types.HealthCheckResult{}, err
	}
	return types.HealthCheckResult{
		Status: types.HealthHealthy,
		Detail: map[string]any{"default_config": true, "version": cfg.Version},
	}, nil
}

// RateLimiterProbe performs one admission round-trip for the sentinel id.
type RateLimiterProbe struct {
	Store ratelimit.Store
}

func (RateLimiterProbe) Name() string   { return "rate_limiter" }
func (RateLimiterProbe) Critical() bool { return false }

func (p RateLimiterProbe) Check(ctx context.Context) (types.HealthCheckResult, error) {
	if _, err := p.Store.Admit(ctx, SentinelID, math.MaxInt32, time.Second); err != nil {
		return types.HealthCheckResult{}, err
	}
	return types.HealthCheckResult{Status: types.HealthHealthy}, nil
}

// DedupStoreProbe performs a read against the sentinel organization.
type DedupStoreProbe struct {
	Store dedup.Store
}

func (DedupStoreProbe) Name() string   { return "dedup_store" }
func (DedupStoreProbe) Critical() bool { return false }

func (p DedupStoreProbe) Check(ctx context.Context) (types.HealthCheckResult, error) {
	if _, err := p.Store.WasSeenRecently(ctx, SentinelID, SentinelID, time.Minute); err != nil {
		return types.HealthCheckResult{}, err
	}
	return types.HealthCheckResult{Status: types.HealthHealthy}, nil
}

// BreakerReporter exposes per-destination circuit breaker states.
type BreakerReporter interface {
	BreakerStates() map[string]gobreaker.State
}

// ChannelsProbe reports degraded while any destination breaker is open.
type ChannelsProbe struct {
	Breakers BreakerReporter
}

func (ChannelsProbe) Name() string   { return "channels" }
func (ChannelsProbe) Critical() bool { return false }

func (p ChannelsProbe) Check(_ context.Context) (types.HealthCheckResult, error) {
	states := p.Breakers.BreakerStates()
	var open, halfOpen []string
	for host, st := range states {
		switch st {
		case gobreaker.StateOpen:
			open = append(open, host)
		case gobreaker.StateHalfOpen:
			halfOpen = append(halfOpen, host)
		}
	}
	sort.Strings(open)
	sort.Strings(halfOpen)

	res := types.HealthCheckResult{
		Status: types.HealthHealthy,
		Detail: map[string]any{"destinations": len(states)},
	}
	detail := res.Detail.(map[string]any)
	if len(halfOpen) > 0 {
		detail["half_open"] = halfOpen
	}
	if len(open) > 0 {
		detail["open"] = open
		res.Status = types.HealthDegraded
	}
	return res, nil
}

// RuntimeProbe reports degraded when the goroutine count exceeds
// MaxGoroutines.
type RuntimeProbe struct {
	MaxGoroutines int
}

func (RuntimeProbe) Name() string   { return "runtime" }
func (RuntimeProbe) Critical() bool { return false }

func (p RuntimeProbe) Check(_ context.Context) (types.HealthCheckResult, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	n := runtime.NumGoroutine()

	res := types.HealthCheckResult{
		Status: types.HealthHealthy,
		Detail: map[string]any{
			"goroutines":    n,
			"heap_alloc_mb": mem.HeapAlloc / (1 << 20),
		},
	}
	if p.MaxGoroutines > 0 && n > p.MaxGoroutines {
		res.Status = types.HealthDegraded
	}
	return res, nil
}

// APIResult builds the response-time pseudo-check the /health handler adds:
// healthy below threshold, degraded otherwise.
func APIResult(elapsed, threshold time.Duration) types.HealthCheckResult {
	status := types.HealthHealthy
	if elapsed >= threshold {
		status = types.HealthDegraded
	}
	return types.HealthCheckResult{
		Name:      "api",
		Status:    status,
		Detail:    map[string]any{"responseTime": elapsed.Milliseconds()},
		LatencyMs: elapsed.Milliseconds(),
	}
}
