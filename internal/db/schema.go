package db

import (
	"context"

	"cinotify/internal/types"
)

// schemaStatements create the tables used by the postgres backends. They are
// idempotent and run at startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dedup_records (
		organization_id TEXT        NOT NULL,
		fingerprint     TEXT        NOT NULL,
		first_seen      TIMESTAMPTZ NOT NULL,
		last_seen       TIMESTAMPTZ NOT NULL,
		count           INTEGER     NOT NULL DEFAULT 1 CHECK (count >= 1),
		PRIMARY KEY (organization_id, fingerprint)
	)`,
	`CREATE INDEX IF NOT EXISTS dedup_records_last_seen_idx ON dedup_records (last_seen)`,
	`CREATE TABLE IF NOT EXISTS rate_limit_hits (
		identifier TEXT        NOT NULL,
		hit_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rate_limit_hits_identifier_idx ON rate_limit_hits (identifier, hit_at)`,
	`CREATE TABLE IF NOT EXISTS organization_configs (
		organization_id TEXT        PRIMARY KEY,
		config          JSONB       NOT NULL,
		version         TEXT        NOT NULL DEFAULT '1',
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema applies schemaStatements in order.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
		}
	}
	return nil
}
