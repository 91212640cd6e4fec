// Package ratelimit implements sliding-window admission control keyed by an
// arbitrary identifier, normally the organization ID.
package ratelimit

import (
	"context"
	"time"

	"cinotify/internal/types"
)

// DefaultRetention is how long an idle identifier is kept before Sweep
// forgets it.
const DefaultRetention = time.Hour

// Store decides admission for one identifier. Implementations must be safe
// for concurrent use, including concurrent calls for the same identifier.
type Store interface {
	// Admit counts requests in (now-window, now]. It admits and records now
	// iff that count is below limit; a rejected request is not recorded.
	Admit(ctx context.Context, id string, limit int, window time.Duration) (types.RateLimitDecision, error)

	// Sweep forgets timestamps older than retention and returns how many
	// entries were removed.
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}
