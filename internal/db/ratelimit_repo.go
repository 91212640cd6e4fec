package db

import (
	"context"
	"time"

	"cinotify/internal/ratelimit"
	"cinotify/internal/types"
)

// RateLimitRepository shares sliding windows across replicas through the
// rate_limit_hits table. Each admission runs in a transaction holding an
// advisory lock on the identifier, which serializes same-key decisions.
type RateLimitRepository struct {
	pool  TxBeginner
	db    DBTX
	clock types.Clock
}

// NewRateLimitRepository creates a RateLimitRepository. pool is typically a
// *pgxpool.Pool passed for both arguments.
func NewRateLimitRepository(pool TxBeginner, db DBTX, clock types.Clock) *RateLimitRepository {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RateLimitRepository{pool: pool, db: db, clock: clock}
}

var _ ratelimit.Store = (*RateLimitRepository)(nil)

// Admit implements ratelimit.Store.
func (r *RateLimitRepository) Admit(ctx context.Context, id string, limit int, window time.Duration) (types.RateLimitDecision, error) {
	now := r.clock.Now()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return types.RateLimitDecision{}, types.NewAppError(types.ErrCodeInternalDB, "failed to begin rate limit transaction", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
		return types.RateLimitDecision{}, types.NewAppError(types.ErrCodeInternalDB, "failed to lock rate limit key", err)
	}

	var count int
	var oldest *time.Time
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*), MIN(hit_at) FROM rate_limit_hits
		 WHERE identifier = $1 AND hit_at > $2`,
		id, now.Add(-window),
	).Scan(&count, &oldest)
	if err != nil {
		return types.RateLimitDecision{}, types.NewAppError(types.ErrCodeInternalDB, "failed to count rate limit hits", err)
	}

	decision := types.RateLimitDecision{Count: count, Limit: limit}
	if count >= limit {
		decision.ResetTime = now.Add(window)
		if oldest != nil {
			decision.ResetTime = oldest.Add(window)
		}
		if err := tx.Commit(ctx); err != nil {
			return types.RateLimitDecision{}, types.NewAppError(types.ErrCodeInternalDB, "failed to commit rate limit check", err)
		}
		return decision, nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO rate_limit_hits (identifier, hit_at) VALUES ($1, $2)`,
		id, now,
	); err != nil {
		return types.RateLimitDecision{}, types.NewAppError(types.ErrCodeInternalDB, "failed to record rate limit hit", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.RateLimitDecision{}, types.NewAppError(types.ErrCodeInternalDB, "failed to commit rate limit hit", err)
	}

	decision.Allowed = true
	decision.Count = count + 1
	decision.Remaining = limit - decision.Count
	decision.ResetTime = now.Add(window)
	if oldest != nil {
		decision.ResetTime = oldest.Add(window)
	}
	return decision, nil
}

// Sweep deletes hits older than retention and returns the number of rows
// removed.
func (r *RateLimitRepository) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM rate_limit_hits WHERE hit_at <= $1`,
		r.clock.Now().Add(-retention),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sweep rate limit hits", err)
	}
	return int(tag.RowsAffected()), nil
}
