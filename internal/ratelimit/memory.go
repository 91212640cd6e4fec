package ratelimit

import (
	"context"
	"sync"
	"time"

	"cinotify/internal/types"
)

type window struct {
	mu      sync.Mutex
	hits    []time.Time // ascending
	removed bool
}

// MemoryStore keeps per-identifier timestamps in process memory. State is
// lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*window
	clock   types.Clock
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{
		windows: make(map[string]*window),
		clock:   clock,
	}
}

var _ Store = (*MemoryStore)(nil)

// windowFor returns the locked window for id, creating it if needed.
func (s *MemoryStore) windowFor(id string) *window {
	for {
		s.mu.RLock()
		w, ok := s.windows[id]
		s.mu.RUnlock()

		if !ok {
			s.mu.Lock()
			if w, ok = s.windows[id]; !ok {
				w = &window{}
				s.windows[id] = w
			}
			s.mu.Unlock()
		}

		w.mu.Lock()
		if !w.removed {
			return w
		}
		// Swept between lookup and lock; fetch the replacement.
		w.mu.Unlock()
	}
}

// Admit implements Store.
func (s *MemoryStore) Admit(_ context.Context, id string, limit int, windowLen time.Duration) (types.RateLimitDecision, error) {
	w := s.windowFor(id)
	defer w.mu.Unlock()

	now := s.clock.Now()
	w.hits = dropThrough(w.hits, now.Add(-windowLen))

	if len(w.hits) >= limit {
		reset := now.Add(windowLen)
		if len(w.hits) > 0 {
			reset = w.hits[0].Add(windowLen)
		}
		return types.RateLimitDecision{
			Allowed:   false,
			Count:     len(w.hits),
			Limit:     limit,
			Remaining: 0,
			ResetTime: reset,
		}, nil
	}

	w.hits = append(w.hits, now)
	return types.RateLimitDecision{
		Allowed:   true,
		Count:     len(w.hits),
		Limit:     limit,
		Remaining: limit - len(w.hits),
		ResetTime: w.hits[0].Add(windowLen),
	}, nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context, retention time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, w := range s.windows {
		w.mu.Lock()
		w.hits = dropThrough(w.hits, cutoff)
		if len(w.hits) == 0 {
			w.removed = true
			delete(s.windows, id)
			dropped++
		}
		w.mu.Unlock()
	}
	return dropped, nil
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

// dropThrough removes the prefix of hits at or before cutoff.
func dropThrough(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
