package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinotify/internal/dedup"
	"cinotify/internal/ratelimit"
	"cinotify/internal/types"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type providerFunc func(ctx context.Context, orgID string) (*types.OrganizationConfig, error)

func (f providerFunc) GetOrganizationConfig(ctx context.Context, orgID string) (*types.OrganizationConfig, error) {
	return f(ctx, orgID)
}

type breakerStates map[string]gobreaker.State

func (b breakerStates) BreakerStates() map[string]gobreaker.State { return b }

func TestDatabaseProbe(t *testing.T) {
	p := DatabaseProbe{DB: pingFunc(func(context.Context) error { return nil })}
	assert.Equal(t, "database", p.Name())
	assert.True(t, p.Critical())

	res, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, res.Status)

	p = DatabaseProbe{DB: pingFunc(func(context.Context) error { return errors.New("connection refused") })}
	_, err = p.Check(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestConfigProviderProbe(t *testing.T) {
	var asked string
	p := ConfigProviderProbe{Provider: providerFunc(func(_ context.Context, orgID string) (*types.OrganizationConfig, error) {
		asked = orgID
		return &types.OrganizationConfig{Version: "3"}, nil
	})}
	res, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SentinelID, asked)
	assert.Equal(t, types.HealthHealthy, res.Status)
	assert.False(t, p.Critical())

	p.Provider = providerFunc(func(context.Context, string) (*types.OrganizationConfig, error) {
		return nil, types.NewAppError(types.ErrCodeNotFoundOrgConfig, "none", nil)
	})
	res, err = p.Check(context.Background())
	require.NoError(t, err, "not found still proves the provider answers")
	assert.Equal(t, types.HealthHealthy, res.Status)

	p.Provider = providerFunc(func(context.Context, string) (*types.OrganizationConfig, error) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "query failed", nil)
	})
	_, err = p.Check(context.Background())
	assert.Error(t, err)
}

func TestStoreProbes(t *testing.T) {
	clock := types.RealClock{}
	rl := RateLimiterProbe{Store: ratelimit.NewMemoryStore(clock)}
	res, err := rl.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, res.Status)

	dd := DedupStoreProbe{Store: dedup.NewMemoryStore(clock)}
	res, err = dd.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, res.Status)
}

func TestChannelsProbe(t *testing.T) {
	p := ChannelsProbe{Breakers: breakerStates{
		"hooks.slack.com": gobreaker.StateClosed,
	}}
	res, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, res.Status)

	p.Breakers = breakerStates{
		"hooks.slack.com":   gobreaker.StateClosed,
		"discord.com":       gobreaker.StateOpen,
		"example.org":       gobreaker.StateHalfOpen,
		"chat.googleapis.x": gobreaker.StateOpen,
	}
	res, err = p.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthDegraded, res.Status)

	detail := res.Detail.(map[string]any)
	assert.Equal(t, []string{"chat.googleapis.x", "discord.com"}, detail["open"])
	assert.Equal(t, []string{"example.org"}, detail["half_open"])
	assert.Equal(t, 4, detail["destinations"])
}

func TestRuntimeProbe(t *testing.T) {
	res, err := RuntimeProbe{MaxGoroutines: 1_000_000}.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, res.Status)

	res, err = RuntimeProbe{MaxGoroutines: 1}.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthDegraded, res.Status, "the test binary always runs more than one goroutine")
}

func TestAPIResult(t *testing.T) {
	assert.Equal(t, types.HealthHealthy, APIResult(999*time.Millisecond, time.Second).Status)
	assert.Equal(t, types.HealthDegraded, APIResult(time.Second, time.Second).Status)
}
