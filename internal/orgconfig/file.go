package orgconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"

	"cinotify/internal/types"
)

// fileDocument is the on-disk layout.
type fileDocument struct {
	Version       string                               `json:"version" yaml:"version"`
	LastOptimized *time.Time                           `json:"lastOptimized" yaml:"lastOptimized"`
	Organizations map[string]*types.OrganizationConfig `json:"organizations" yaml:"organizations"`
}

type snapshot struct {
	orgs     map[string]*types.OrganizationConfig
	loadedAt time.Time
}

// FileProvider serves configuration parsed from a single file. Reload swaps
// the whole snapshot atomically; readers never see a partial file.
type FileProvider struct {
	path    string
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
	reloads atomic.Int64
}

// NewFileProvider loads path and fails if it cannot be parsed or validated.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FileProvider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

var _ Provider = (*FileProvider)(nil)

// GetOrganizationConfig implements Provider.
func (p *FileProvider) GetOrganizationConfig(_ context.Context, orgID string) (*types.OrganizationConfig, error) {
	snap := p.current.Load()
	cfg, ok := snap.orgs[orgID]
	if !ok {
		cfg, ok = snap.orgs[DefaultOrganization]
	}
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundOrgConfig, "organization has no configuration", nil)
	}
	out := *cfg
	return &out, nil
}

// Reload re-reads the file. On error the previous snapshot stays active.
func (p *FileProvider) Reload() error {
	orgs, err := LoadFile(p.path)
	if err != nil {
		return err
	}
	p.current.Store(&snapshot{orgs: orgs, loadedAt: time.Now().UTC()})
	p.reloads.Add(1)
	return nil
}

// Reloads returns how many times the file has been loaded successfully.
func (p *FileProvider) Reloads() int64 {
	return p.reloads.Load()
}

// Organizations lists the configured organization IDs.
func (p *FileProvider) Organizations() []string {
	snap := p.current.Load()
	out := make([]string, 0, len(snap.orgs))
	for id := range snap.orgs {
		out = append(out, id)
	}
	return out
}

// Watch reloads the file whenever it changes until ctx is cancelled. The
// parent directory is watched because editors and config management tools
// replace files rather than writing in place.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if err := p.Reload(); err != nil {
				p.logger.Error("organization config reload failed, keeping previous version",
					"path", p.path, "error", err)
				continue
			}
			p.logger.Info("organization config reloaded", "path", p.path, "organizations", len(p.current.Load().orgs))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("organization config watcher error", "error", err)
		}
	}
}

// LoadFile parses and validates a configuration file. The format is chosen
// by extension: .json is JSON, anything else is YAML.
func LoadFile(path string) (map[string]*types.OrganizationConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading organization config: %w", err)
	}

	var doc fileDocument
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidConfig, "organization config file cannot be parsed", err)
	}
	if len(doc.Organizations) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidConfig, "organization config file declares no organizations", nil)
	}

	for id, cfg := range doc.Organizations {
		if cfg == nil {
			cfg = &types.OrganizationConfig{}
			doc.Organizations[id] = cfg
		}
		cfg.OrganizationID = id
		if cfg.Version == "" {
			cfg.Version = doc.Version
		}
		if cfg.LastOptimized == nil {
			cfg.LastOptimized = doc.LastOptimized
		}
		if err := Validate(cfg); err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidConfig,
				fmt.Sprintf("organization %q has an invalid configuration", id), err)
		}
	}
	return doc.Organizations, nil
}
