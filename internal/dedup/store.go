// Package dedup remembers recently seen event fingerprints per organization.
package dedup

import (
	"context"
	"sync"
	"time"

	"cinotify/internal/types"
)

// Store records fingerprints and answers whether one was seen recently.
// Concurrent Record/WasSeenRecently calls for the same key are safe; the
// race between two first submissions is resolved best-effort, so at most
// one duplicate slips through.
type Store interface {
	WasSeenRecently(ctx context.Context, orgID, fingerprint string, window time.Duration) (bool, error)
	Record(ctx context.Context, orgID, fingerprint string) error
	Purge(ctx context.Context, maxAge time.Duration) (int, error)
}

type key struct {
	org         string
	fingerprint string
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[key]*types.DeduplicationRecord
	clock   types.Clock
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{
		records: make(map[key]*types.DeduplicationRecord),
		clock:   clock,
	}
}

var _ Store = (*MemoryStore)(nil)

// WasSeenRecently reports whether fingerprint was recorded within window.
// A non-positive window never matches.
func (s *MemoryStore) WasSeenRecently(_ context.Context, orgID, fingerprint string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key{orgID, fingerprint}]
	if !ok {
		return false, nil
	}
	return s.clock.Now().Sub(rec.LastSeen) < window, nil
}

// Record inserts the fingerprint or refreshes LastSeen and bumps Count.
func (s *MemoryStore) Record(_ context.Context, orgID, fingerprint string) error {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{orgID, fingerprint}
	if rec, ok := s.records[k]; ok {
		rec.LastSeen = now
		rec.Count++
		return nil
	}
	s.records[k] = &types.DeduplicationRecord{
		OrganizationID: orgID,
		Fingerprint:    fingerprint,
		FirstSeen:      now,
		LastSeen:       now,
		Count:          1,
	}
	return nil
}

// Purge deletes records whose LastSeen is older than maxAge.
func (s *MemoryStore) Purge(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, rec := range s.records {
		if rec.LastSeen.Before(cutoff) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the record for inspection.
func (s *MemoryStore) Get(orgID, fingerprint string) (types.DeduplicationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key{orgID, fingerprint}]
	if !ok {
		return types.DeduplicationRecord{}, false
	}
	return *rec, true
}
