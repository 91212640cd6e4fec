package db

import (
	"context"
	"time"

	"cinotify/internal/dedup"
	"cinotify/internal/types"
)

// DedupRepository stores fingerprints in the dedup_records table.
type DedupRepository struct {
	db    DBTX
	clock types.Clock
}

// NewDedupRepository creates a DedupRepository.
func NewDedupRepository(db DBTX, clock types.Clock) *DedupRepository {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &DedupRepository{db: db, clock: clock}
}

var _ dedup.Store = (*DedupRepository)(nil)

// WasSeenRecently reports whether a record exists with last_seen inside window.
func (r *DedupRepository) WasSeenRecently(ctx context.Context, orgID, fingerprint string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	var seen bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM dedup_records
			WHERE organization_id = $1 AND fingerprint = $2 AND last_seen > $3
		)`,
		orgID, fingerprint, r.clock.Now().Add(-window),
	).Scan(&seen)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to look up fingerprint", err)
	}
	return seen, nil
}

// Record upserts the fingerprint, bumping count on conflict.
func (r *DedupRepository) Record(ctx context.Context, orgID, fingerprint string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO dedup_records (organization_id, fingerprint, first_seen, last_seen, count)
		 VALUES ($1, $2, $3, $3, 1)
		 ON CONFLICT (organization_id, fingerprint)
		 DO UPDATE SET last_seen = EXCLUDED.last_seen, count = dedup_records.count + 1`,
		orgID, fingerprint, r.clock.Now(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record fingerprint", err)
	}
	return nil
}

// Purge deletes records not seen within maxAge.
func (r *DedupRepository) Purge(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM dedup_records WHERE last_seen < $1`,
		r.clock.Now().Add(-maxAge),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge fingerprints", err)
	}
	return int(tag.RowsAffected()), nil
}
