package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ikhode/erp-modular-sub001/internal/archive"
	"github.com/ikhode/erp-modular-sub001/internal/auth"
	"github.com/ikhode/erp-modular-sub001/internal/config"
	"github.com/ikhode/erp-modular-sub001/internal/db"
	"github.com/ikhode/erp-modular-sub001/internal/dispatch"
	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
	"github.com/ikhode/erp-modular-sub001/internal/migrate"
	"github.com/ikhode/erp-modular-sub001/internal/repo"
	"github.com/ikhode/erp-modular-sub001/internal/store/dynamo"
	"github.com/ikhode/erp-modular-sub001/internal/store/memory"
)

// Runtime bundles what commands and the server need for one workspace.
// The SQLite database always holds tenants, RBAC, the stock ledger, the
// outbox and events; storage.driver only selects where documents,
// signatures, audit and folio counters live.
type Runtime struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Repo      repo.Repo
	Auth      auth.Service
	Engine    lifecycle.Engine
	Relay     *dispatch.Relay
}

type Options struct {
	Workspace string
	Now       func() time.Time
	Logger    *log.Logger
}

// Open loads docflow.yml (defaults when absent), migrates the database and
// wires the engine for the configured storage driver.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("")
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if _, err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	rt, err := Wire(ctx, conn, cfg, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	rt.Workspace = opts.Workspace
	return rt, nil
}

// Wire builds a Runtime over an already migrated database.
func Wire(ctx context.Context, conn *sql.DB, cfg *config.Config, opts Options) (*Runtime, error) {
	r := repo.Repo{DB: conn, Now: opts.Now, FolioWidth: cfg.Folios.Width}
	if catalog := cfg.Catalog(); len(catalog) > 0 {
		if err := r.SeedRBAC(ctx, catalog); err != nil {
			return nil, fmt.Errorf("seed rbac: %w", err)
		}
	}
	store, err := NewStore(ctx, cfg, r)
	if err != nil {
		return nil, err
	}
	relay := dispatch.NewRelay(r, cfg)
	relay.Logger = opts.Logger
	out := dispatch.Outbox{Store: r, Wake: relay.Notify}
	if pending, ok := store.(lifecycle.PendingOutbox); ok {
		out.Pending = pending
		relay.Forwarder = out
	}
	eng := lifecycle.New(store, out)
	eng.Stock = r
	eng.Rules = RulesFromConfig(cfg)
	eng.Prefixes = PrefixesFromConfig(cfg)
	eng.Logger = opts.Logger
	if opts.Now != nil {
		eng.Now = opts.Now
	}
	if cfg.Archive.S3.Bucket != "" {
		s3cfg := cfg.Archive.S3
		a, err := archive.NewS3(ctx, archive.Options{
			Bucket:   s3cfg.Bucket,
			Prefix:   s3cfg.Prefix,
			Region:   s3cfg.Region,
			Endpoint: s3cfg.Endpoint,
			LinkTTL:  time.Duration(s3cfg.LinkTTLSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		eng.Archive = a
	}
	return &Runtime{Config: cfg, DB: conn, Repo: r, Auth: auth.Service{DB: conn}, Engine: eng, Relay: relay}, nil
}

// NewStore returns the document store for cfg.Storage.Driver.
func NewStore(ctx context.Context, cfg *config.Config, r repo.Repo) (lifecycle.Store, error) {
	switch cfg.Storage.Driver {
	case "", config.DriverSQLite:
		return r, nil
	case config.DriverMemory:
		s := memory.New()
		s.FolioWidth = cfg.Folios.Width
		return s, nil
	case config.DriverDynamoDB:
		d := cfg.Storage.DynamoDB
		client, err := dynamo.Connect(ctx, dynamo.Options{Region: d.Region, Endpoint: d.Endpoint})
		if err != nil {
			return nil, fmt.Errorf("connect dynamodb: %w", err)
		}
		s := dynamo.New(client, dynamo.Tables{
			Documents:   d.DocumentsTable,
			Signatures:  d.SignaturesTable,
			Transitions: d.TransitionsTable,
			Counters:    d.CountersTable,
			Outbox:      d.OutboxTable,
		})
		s.FolioWidth = cfg.Folios.Width
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// RulesFromConfig overlays the signatures section on the default rules. A
// kind present in the config replaces that kind's defaults entirely.
func RulesFromConfig(cfg *config.Config) lifecycle.Rules {
	rules := lifecycle.DefaultRules()
	if cfg == nil {
		return rules
	}
	for kind, byTarget := range cfg.Signatures.Requirements {
		table := map[domain.State]map[string][]string{}
		for target, byVariant := range byTarget {
			table[domain.State(target)] = byVariant
		}
		rules.Requirements[domain.Kind(kind)] = table
	}
	for kind, roles := range cfg.Signatures.Roles {
		rules.Roles[domain.Kind(kind)] = roles
	}
	return rules
}

func PrefixesFromConfig(cfg *config.Config) map[domain.Kind]string {
	out := map[domain.Kind]string{}
	for k, v := range lifecycle.DefaultPrefixes {
		out[k] = v
	}
	if cfg == nil {
		return out
	}
	for kind, prefix := range cfg.Folios.Prefixes {
		out[domain.Kind(kind)] = prefix
	}
	return out
}

// ResolveTenant picks the tenant for a command: the explicit override, then
// the config's tenant.id, then the workspace's only tenant.
func ResolveTenant(ctx context.Context, override string, cfg *config.Config, r repo.Repo) (string, error) {
	if v := strings.TrimSpace(override); v != "" {
		return v, nil
	}
	if cfg != nil && cfg.Tenant.ID != "" {
		return cfg.Tenant.ID, nil
	}
	t, err := r.SingleTenant(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", fmt.Errorf("tenant not specified; use --tenant or run docflow tenant init")
		}
		return "", err
	}
	return t.ID, nil
}

// InitTenant registers tenantID and makes actorID its admin.
func InitTenant(ctx context.Context, r repo.Repo, tenantID, name, actorID string) (domain.Tenant, error) {
	t, err := r.EnsureTenant(ctx, tenantID, name, actorID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if err := r.GrantRole(ctx, t.ID, actorID, "admin"); err != nil {
		return domain.Tenant{}, fmt.Errorf("grant admin: %w", err)
	}
	return t, nil
}

func (rt *Runtime) Close() error {
	if rt == nil || rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}
