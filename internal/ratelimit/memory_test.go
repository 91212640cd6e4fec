package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAdmit_WithinLimit(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore(clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := s.Admit(ctx, "acme", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, 3, d.Limit)
		clock.Advance(time.Second)
	}
}

func TestAdmit_RejectsAndReportsReset(t *testing.T) {
	clock := newClock()
	start := clock.Now()
	s := NewMemoryStore(clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, _ := s.Admit(ctx, "acme", 2, time.Minute)
		require.True(t, d.Allowed)
		clock.Advance(10 * time.Second)
	}

	d, err := s.Admit(ctx, "acme", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, start.Add(time.Minute), d.ResetTime)

	// Rejections are not recorded.
	d, _ = s.Admit(ctx, "acme", 2, time.Minute)
	assert.Equal(t, 2, d.Count)
}

func TestAdmit_WindowSlides(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore(clock)
	ctx := context.Background()

	d, _ := s.Admit(ctx, "acme", 1, time.Minute)
	require.True(t, d.Allowed)

	clock.Advance(59 * time.Second)
	d, _ = s.Admit(ctx, "acme", 1, time.Minute)
	assert.False(t, d.Allowed)

	// A timestamp exactly window old is outside (now-window, now].
	clock.Advance(time.Second)
	d, _ = s.Admit(ctx, "acme", 1, time.Minute)
	assert.True(t, d.Allowed)
}

func TestAdmit_KeysAreIndependent(t *testing.T) {
	s := NewMemoryStore(newClock())
	ctx := context.Background()

	d, _ := s.Admit(ctx, "acme", 1, time.Minute)
	assert.True(t, d.Allowed)
	d, _ = s.Admit(ctx, "globex", 1, time.Minute)
	assert.True(t, d.Allowed)
	d, _ = s.Admit(ctx, "acme", 1, time.Minute)
	assert.False(t, d.Allowed)
}

func TestAdmit_ConcurrentSameKeyNeverOverAdmits(t *testing.T) {
	s := NewMemoryStore(newClock())
	ctx := context.Background()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := s.Admit(ctx, "acme", 25, time.Minute)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(25), admitted.Load())
}

func TestSweep_DropsIdleKeys(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore(clock)
	ctx := context.Background()

	_, _ = s.Admit(ctx, "old", 10, time.Minute)
	clock.Advance(50 * time.Minute)
	_, _ = s.Admit(ctx, "recent", 10, time.Minute)
	clock.Advance(15 * time.Minute)

	dropped, err := s.Sweep(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, s.Len())
}

func TestSweep_ConcurrentWithAdmit(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore(clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Admit(ctx, fmt.Sprintf("org-%d", i%4), 1000, time.Minute)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Sweep(ctx, 0)
		}()
	}
	wg.Wait()

	// Every key that survives holds its admissions.
	for i := 0; i < 4; i++ {
		d, err := s.Admit(ctx, fmt.Sprintf("org-%d", i), 1000, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}
