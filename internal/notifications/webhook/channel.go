// Package webhook delivers CI/CD events to chat platforms (Slack, Teams,
// Discord, Google Chat) and generic HTTP endpoints. Each destination gets its
// own circuit breaker and outbound throttle; generic endpoints receive an
// HMAC signature header.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"cinotify/internal/config"
	"cinotify/internal/notifications/core"
	"cinotify/internal/security"
	"cinotify/internal/types"
)

// maxResponseBodyRead limits how much of a response body is read.
const maxResponseBodyRead = 4096

// Compile-time assertion that Channel implements core.Sender.
var _ core.Sender = (*Channel)(nil)

// Channel is the webhook Sender.
type Channel struct {
	registry   *PlatformRegistry
	signer     Signer
	httpClient *http.Client
	userAgent  string
	logger     types.Logger
	clock      types.Clock

	perHostRate  rate.Limit
	perHostBurst int

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
	limiters map[string]*rate.Limiter
}

// NewChannel creates a Channel with an SSRF-safe HTTP client.
func NewChannel(cfg config.WebhookConfig, logger types.Logger) *Channel {
	client := security.NewSafeHTTPClient(cfg.DefaultTimeout, cfg.MaxRedirects, cfg.AllowPrivateTargets)
	return NewChannelWithClient(cfg, client, logger)
}

// NewChannelWithClient creates a Channel with a caller-supplied HTTP client.
func NewChannelWithClient(cfg config.WebhookConfig, client *http.Client, logger types.Logger) *Channel {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "CINotify-Webhook/1.0"
	}
	perHost := rate.Limit(cfg.PerHostRate)
	if cfg.PerHostRate <= 0 {
		perHost = rate.Inf
	}
	return &Channel{
		registry:     NewPlatformRegistry(),
		signer:       Signer{Secret: cfg.SigningSecret.Unmask()},
		httpClient:   client,
		userAgent:    userAgent,
		logger:       logger,
		clock:        types.RealClock{},
		perHostRate:  perHost,
		perHostBurst: max(cfg.PerHostBurst, 1),
		breakers:     make(map[string]*gobreaker.CircuitBreaker[struct{}]),
		limiters:     make(map[string]*rate.Limiter),
	}
}

// SetClock overrides the clock for testing.
func (c *Channel) SetClock(clock types.Clock) {
	c.clock = clock
}

// Kind implements core.Sender.
func (c *Channel) Kind() types.ChannelKind {
	return types.ChannelWebhook
}

// Send formats event for the destination platform and POSTs it. Every
// failure is returned as a types.AppError with code channel_delivery_failure
// or upstream_rate_limited.
func (c *Channel) Send(ctx context.Context, event *types.NotificationEvent, ch types.ChannelConfig) error {
	platform := c.registry.Detect(ch.Destination, ch.Options)
	formatter := c.registry.Get(platform)

	payload, err := formatter.Format(ctx, event, ch)
	if err != nil {
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "failed to format payload", err)
	}

	host := hostOf(ch.Destination)
	if err := c.limiter(host).Wait(ctx); err != nil {
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "outbound throttle wait aborted", err)
	}

	_, err = c.breaker(host).Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, event, ch, platform, formatter, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker open for "+host, err)
	}
	return err
}

func (c *Channel) post(ctx context.Context, event *types.NotificationEvent, ch types.ChannelConfig, platform Platform, formatter PlatformFormatter, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.Destination, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "invalid destination", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-CINotify-Event", "ci."+string(event.Status))
	if event.Metadata.RequestID != "" {
		req.Header.Set("X-Request-ID", event.Metadata.RequestID)
	}

	if platform == PlatformGeneric {
		signer := c.signer
		if secret := optionString(ch.Options, "secret"); secret != "" {
			signer = Signer{Secret: secret}
		}
		if signer.Enabled() {
			sig, err := signer.Sign(payload, c.clock.Now())
			if err != nil {
				return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "failed to sign payload", err)
			}
			req.Header.Set(SignatureHeader, sig)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if security.IsSSRFError(err) {
			c.logger.Error("webhook destination blocked", "channel", ch.ChannelID, "error", err.Error())
			return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "destination blocked", err)
		}
		return types.NewAppError(types.ErrCodeChannelDeliveryFailure, "network error", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("rate limited by %s", platform), nil,
			map[string]any{"status_code": resp.StatusCode, "retry_after": resp.Header.Get("Retry-After")})
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := formatter.ValidateResponse(resp.StatusCode, body); err != nil {
			return types.NewAppErrorWithDetails(types.ErrCodeChannelDeliveryFailure, "soft failure", err,
				map[string]any{"status_code": resp.StatusCode})
		}
		c.logger.Info("webhook delivered",
			"channel", ch.ChannelID,
			"platform", string(platform),
			"status", resp.StatusCode,
		)
		return nil
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeChannelDeliveryFailure,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncateBody(body)), nil,
			map[string]any{"status_code": resp.StatusCode})
	}
}

func (c *Channel) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.perHostRate, c.perHostBurst)
		c.limiters[host] = l
	}
	return l
}

// breaker returns the destination host's breaker. Five consecutive failures
// open it for 30 seconds; 4xx answers other than 429 do not count.
func (c *Channel) breaker(host string) *gobreaker.CircuitBreaker[struct{}] {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[host]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        host,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("webhook circuit breaker state change",
					"host", name, "from", from.String(), "to", to.String())
			},
		})
		c.breakers[host] = cb
	}
	return cb
}

// countsAsSuccess keeps destination-side configuration mistakes (bad
// payload, revoked hook, soft failures) from tripping the breaker; only
// transport failures, 5xx and 429 answers do.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status, ok := appErr.Details["status_code"].(int)
	return ok && status < 500 && status != http.StatusTooManyRequests
}

// BreakerStates reports every known destination host's breaker state.
func (c *Channel) BreakerStates() map[string]gobreaker.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]gobreaker.State, len(c.breakers))
	for host, cb := range c.breakers {
		out[host] = cb.State()
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
