// Package orgconfig resolves the per-organization channel and deduplication
// policy. Configuration comes from a YAML/JSON file (hot-reloaded) or from
// the organization_configs table.
package orgconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"cinotify/internal/types"
)

// DefaultOrganization is the entry applied to organizations without their own.
const DefaultOrganization = "default"

// Provider resolves the configuration of one organization.
type Provider interface {
	GetOrganizationConfig(ctx context.Context, orgID string) (*types.OrganizationConfig, error)
}

// Repository is the storage-side lookup wrapped by RepositoryProvider.
type Repository interface {
	Get(ctx context.Context, orgID string) (*types.OrganizationConfig, error)
}

// RepositoryProvider serves configuration from a Repository, falling back to
// the default organization's row.
type RepositoryProvider struct {
	repo Repository
}

// NewRepositoryProvider wraps repo.
func NewRepositoryProvider(repo Repository) *RepositoryProvider {
	return &RepositoryProvider{repo: repo}
}

var _ Provider = (*RepositoryProvider)(nil)

// GetOrganizationConfig implements Provider.
func (p *RepositoryProvider) GetOrganizationConfig(ctx context.Context, orgID string) (*types.OrganizationConfig, error) {
	cfg, err := p.repo.Get(ctx, orgID)
	if err == nil {
		return cfg, nil
	}
	if !types.IsCode(err, types.ErrCodeNotFoundOrgConfig) || orgID == DefaultOrganization {
		return nil, err
	}
	return p.repo.Get(ctx, DefaultOrganization)
}

var validate = validator.New()

// Validate checks an organization configuration. Webhook destinations must be
// URLs, email destinations must be addresses, and channel IDs must be unique.
func Validate(cfg *types.OrganizationConfig) error {
	if cfg == nil {
		return errors.New("configuration is empty")
	}
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	seen := make(map[string]bool, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if seen[ch.ChannelID] {
			return fmt.Errorf("channel %q declared twice", ch.ChannelID)
		}
		seen[ch.ChannelID] = true

		tag := "url"
		if ch.Kind == types.ChannelEmail {
			tag = "email"
		}
		if err := validate.Var(ch.Destination, tag); err != nil {
			return fmt.Errorf("channel %q: destination is not a valid %s", ch.ChannelID, tag)
		}
	}
	return nil
}
