package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"cinotify/internal/types"
)

// OrgConfigRepository reads organization configuration stored as JSONB.
type OrgConfigRepository struct {
	db DBTX
}

// NewOrgConfigRepository creates an OrgConfigRepository.
func NewOrgConfigRepository(db DBTX) *OrgConfigRepository {
	return &OrgConfigRepository{db: db}
}

// Get loads the configuration of orgID. A missing row returns
// not_found_organization_config.
func (r *OrgConfigRepository) Get(ctx context.Context, orgID string) (*types.OrganizationConfig, error) {
	var raw []byte
	var version string
	err := r.db.QueryRow(ctx,
		`SELECT config, version FROM organization_configs WHERE organization_id = $1`,
		orgID,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundOrgConfig, "organization has no configuration", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load organization configuration", err)
	}

	var cfg types.OrganizationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidConfig, "stored organization configuration is not valid JSON", err)
	}
	cfg.OrganizationID = orgID
	if cfg.Version == "" {
		cfg.Version = version
	}
	return &cfg, nil
}

// Put upserts the configuration of orgID.
func (r *OrgConfigRepository) Put(ctx context.Context, orgID string, cfg *types.OrganizationConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidConfig, "organization configuration cannot be encoded", err)
	}
	version := cfg.Version
	if version == "" {
		version = "1"
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO organization_configs (organization_id, config, version, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (organization_id)
		 DO UPDATE SET config = EXCLUDED.config, version = EXCLUDED.version, updated_at = NOW()`,
		orgID, raw, version,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store organization configuration", err)
	}
	return nil
}
