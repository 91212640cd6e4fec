// Package main implements orgsync, which copies organization configuration
// from a YAML or JSON file into the organization_configs table used when
// ORG_CONFIG_SOURCE=postgres.
//
// Usage:
//
//	go run ./cmd/tools/orgsync --file=config/organizations.yaml
//	go run ./cmd/tools/orgsync --file=config/organizations.yaml --org=acme
//	go run ./cmd/tools/orgsync --file=config/organizations.yaml --dry-run
//
// The file is validated exactly as the file provider validates it. The tool
// reads DATABASE_URL from environment variables (or .env file via godotenv).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cinotify/internal/db"
	"cinotify/internal/orgconfig"
	"cinotify/internal/types"
)

// orgStore is the write side of db.OrgConfigRepository.
type orgStore interface {
	Put(ctx context.Context, orgID string, cfg *types.OrganizationConfig) error
}

func main() {
	fileFlag := flag.String("file", "config/organizations.yaml", "Organization config file (YAML or JSON)")
	orgFlag := flag.String("org", "", "Only sync this organization")
	dryRunFlag := flag.Bool("dry-run", false, "Validate the file and list what would be written")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	orgs, err := orgconfig.LoadFile(*fileFlag)
	if err != nil {
		logger.Error("organization config is invalid", "file", *fileFlag, "error", err)
		os.Exit(1)
	}

	if *dryRunFlag {
		for _, id := range selectOrgs(orgs, *orgFlag) {
			fmt.Printf("%s\tchannels=%d\tversion=%s\n", id, len(orgs[id].Channels), orgs[id].Version)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded (this is fine in production)", "error", err)
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: databaseURL, MaxConns: 2, AcquireTimeout: 10 * time.Second})
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	n, err := syncOrgs(ctx, orgs, *orgFlag, db.NewOrgConfigRepository(pool), logger)
	if err != nil {
		logger.Error("sync failed", "synced", n, "error", err)
		os.Exit(1)
	}
	logger.Info("sync complete", "synced", n)
}

// selectOrgs returns the sorted IDs to write. A non-empty only narrows the
// set to that organization, if present.
func selectOrgs(orgs map[string]*types.OrganizationConfig, only string) []string {
	if only != "" {
		if _, ok := orgs[only]; ok {
			return []string{only}
		}
		return nil
	}
	ids := make([]string, 0, len(orgs))
	for id := range orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// syncOrgs writes the selected organizations and stops at the first failure.
func syncOrgs(ctx context.Context, orgs map[string]*types.OrganizationConfig, only string, store orgStore, logger *slog.Logger) (int, error) {
	ids := selectOrgs(orgs, only)
	if len(ids) == 0 {
		return 0, fmt.Errorf("no organization matches %q", only)
	}
	for i, id := range ids {
		if err := store.Put(ctx, id, orgs[id]); err != nil {
			return i, fmt.Errorf("writing %s: %w", id, err)
		}
		logger.Info("organization config written", "org_id", id, "channels", len(orgs[id].Channels))
	}
	return len(ids), nil
}
