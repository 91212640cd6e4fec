package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cinotify/internal/auth"
	"cinotify/internal/config"
	"cinotify/internal/core"
	"cinotify/internal/db"
	"cinotify/internal/dedup"
	"cinotify/internal/health"
	notifcore "cinotify/internal/notifications/core"
	"cinotify/internal/notifications/email"
	"cinotify/internal/notifications/webhook"
	"cinotify/internal/orgconfig"
	"cinotify/internal/ratelimit"
	"cinotify/internal/scheduler"
	"cinotify/internal/types"
)

// maintenanceJobTimeout bounds a single sweep or purge run.
const maintenanceJobTimeout = time.Minute

// app owns every long-lived component of the process.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *core.Server
	monitor *health.Monitor
	runner  *scheduler.Runner
	files   *orgconfig.FileProvider
	pool    *pgxpool.Pool

	stopWatch context.CancelFunc
	bg        sync.WaitGroup
}

type scheduledJob struct {
	spec    string
	timeout time.Duration
	job     scheduler.Job
}

// buildApp wires the components selected by cfg. Nothing runs until Start.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	clock := types.RealClock{}
	slogger := types.NewSlogLogger(logger)
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.UsesPostgres() {
		a.pool, err = db.NewPool(ctx, db.PoolConfig{
			URL:               cfg.Database.URL.Unmask(),
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			MaxConnLifetime:   cfg.Database.MaxConnLifetime,
			HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
			AcquireTimeout:    cfg.Database.AcquireTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.EnsureSchema(ctx, a.pool); err != nil {
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}

	var awsCfg aws.Config
	if cfg.Email.Enabled || cfg.Observability.MetricsBackend == "cloudwatch" {
		if awsCfg, err = loadAWSConfig(ctx, cfg.AWS); err != nil {
			return nil, err
		}
	}

	metrics, metricsHandler := buildMetrics(cfg, awsCfg, slogger)

	keys, err := auth.ParseAPIKeys(cfg.Auth.APIKeys.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing API keys: %w", err)
	}
	validator := auth.NewTokenValidator(cfg.Auth.JWTSecret.Unmask(), keys, clock, logger)
	logger.Info("credential store loaded",
		"static_keys", keys.Len(),
		"signed_tokens", !cfg.Auth.JWTSecret.IsZero(),
	)

	limiter, dedupStore := a.buildStores(clock)

	orgs, err := a.buildOrgProvider()
	if err != nil {
		return nil, err
	}

	hooks := webhook.NewChannel(cfg.Webhook, slogger)
	senders := []notifcore.Sender{hooks}
	if cfg.Email.Enabled {
		renderer, err := email.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("loading email templates: %w", err)
		}
		senders = append(senders, email.NewChannel(email.NewSESProvider(awsCfg), renderer, cfg.Email, slogger))
	}

	evaluator := notifcore.NewRuleEvaluator(dedupStore, slogger, metrics)
	dispatcher := notifcore.NewDispatcher(notifcore.NewSenderRegistry(senders...),
		cfg.Dispatch.ChannelTimeout, clock, slogger, metrics)
	reporter := notifcore.NewErrorReporter(hooks, cfg.Dispatch.AdminWebhookURL,
		cfg.Dispatch.AdminNoticeTimeout, clock, slogger)
	if !reporter.Enabled() {
		logger.Warn("ADMIN_WEBHOOK_URL not set, internal errors are only logged")
	}

	probes := []health.Probe{
		health.ConfigProviderProbe{Provider: orgs},
		health.RateLimiterProbe{Store: limiter},
		health.DedupStoreProbe{Store: dedupStore},
		health.ChannelsProbe{Breakers: hooks},
		health.RuntimeProbe{MaxGoroutines: cfg.Health.MaxGoroutines},
	}
	if a.pool != nil {
		probes = append([]health.Probe{health.DatabaseProbe{DB: a.pool}}, probes...)
	}
	aggregator := health.NewAggregator(cfg.Health.Timeout, clock, slogger, probes...)
	a.monitor = health.NewMonitor(aggregator, slogger, metrics)

	a.server, err = core.NewServer(cfg, logger, core.Dependencies{
		Authenticator:  validator,
		RateLimiter:    limiter,
		Organizations:  orgs,
		Evaluator:      evaluator,
		Dispatcher:     dispatcher,
		Health:         aggregator,
		Reporter:       reporter,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Clock:          clock,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.server.MountRoutes()

	a.runner = scheduler.NewRunner(logger)
	jobs := []scheduledJob{
		{cfg.RateLimit.SweepSchedule, maintenanceJobTimeout, scheduler.RateLimitSweeper{Store: limiter, Retention: cfg.RateLimit.Retention}},
		{cfg.Dedup.PurgeSchedule, maintenanceJobTimeout, scheduler.DedupPurger{Store: dedupStore, MaxAge: cfg.Dedup.PurgeMaxAge}},
	}
	if cfg.Health.MonitorSchedule != "" {
		jobs = append(jobs, scheduledJob{cfg.Health.MonitorSchedule, 2 * cfg.Health.Timeout, scheduler.HealthCheck{Monitor: a.monitor}})
	}
	for _, j := range jobs {
		if err := a.runner.Register(j.spec, j.timeout, j.job); err != nil {
			return nil, fmt.Errorf("scheduling %s: %w", j.job.Name(), err)
		}
	}

	return a, nil
}

func (a *app) buildStores(clock types.Clock) (ratelimit.Store, dedup.Store) {
	var limiter ratelimit.Store = ratelimit.NewMemoryStore(clock)
	if a.cfg.RateLimit.Backend == config.BackendPostgres {
		limiter = db.NewRateLimitRepository(a.pool, a.pool, clock)
	}
	var store dedup.Store = dedup.NewMemoryStore(clock)
	if a.cfg.Dedup.Backend == config.BackendPostgres {
		store = db.NewDedupRepository(a.pool, clock)
	}
	a.logger.Info("stores selected",
		"rate_limit_backend", a.cfg.RateLimit.Backend,
		"dedup_backend", a.cfg.Dedup.Backend,
	)
	return limiter, store
}

func (a *app) buildOrgProvider() (orgconfig.Provider, error) {
	if a.cfg.OrgConfig.Source == config.BackendPostgres {
		return orgconfig.NewRepositoryProvider(db.NewOrgConfigRepository(a.pool)), nil
	}
	fp, err := orgconfig.NewFileProvider(a.cfg.OrgConfig.Path, a.logger)
	if err != nil {
		return nil, fmt.Errorf("loading organization config: %w", err)
	}
	a.logger.Info("organization config loaded",
		"path", a.cfg.OrgConfig.Path,
		"organizations", len(fp.Organizations()),
	)
	if a.cfg.OrgConfig.Watch {
		a.files = fp
	}
	return fp, nil
}

// buildMetrics selects the telemetry backend. Only Prometheus exposes an
// HTTP handler.
func buildMetrics(cfg *config.Config, awsCfg aws.Config, logger types.Logger) (notifcore.ServiceMetrics, http.Handler) {
	switch cfg.Observability.MetricsBackend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return notifcore.NewPrometheusMetrics(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case "cloudwatch":
		client := cloudwatch.NewFromConfig(awsCfg)
		return notifcore.NewCloudWatchNotificationMetrics(client, cfg.Observability.MetricNamespace, logger), nil
	default:
		return notifcore.NoopMetrics{}, nil
	}
}

func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", c.Region, err)
	}
	if c.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return awsCfg, nil
}

// Start takes the first health snapshot, starts the config watcher and the
// job runner.
func (a *app) Start(ctx context.Context) {
	if a.cfg.Health.MonitorSchedule != "" {
		if err := a.runner.RunNow(ctx, scheduler.JobHealthMonitor); err != nil {
			a.logger.Warn("initial health check failed", "error", err)
		}
	} else {
		a.monitor.Run(ctx)
	}
	if report := a.monitor.Latest(); report != nil {
		a.logger.Info("initial health", "status", report.Status, "checks", len(report.Checks))
	}

	if a.files != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		a.stopWatch = cancel
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			if err := a.files.Watch(watchCtx); err != nil {
				a.logger.Error("organization config watcher stopped", "error", err)
			}
		}()
	}

	a.runner.Start()
}

// Shutdown stops background work and waits for pending admin notices.
func (a *app) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.runner.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping jobs: %w", err))
	}
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.bg.Wait()
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
