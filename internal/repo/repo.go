package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/events"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

// Repo is the SQLite backend. It satisfies lifecycle.Store and
// lifecycle.StockReader; every write that changes a document appends its
// event in the same transaction.
type Repo struct {
	DB         *sql.DB
	Now        func() time.Time
	FolioWidth int
}

var (
	_ lifecycle.Store       = Repo{}
	_ lifecycle.StockReader = Repo{}
)

// ErrNotFound is lifecycle.ErrNotFound so callers can match either.
var ErrNotFound = lifecycle.ErrNotFound

func (r Repo) now() string {
	if r.Now != nil {
		return r.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (r Repo) events() events.Writer {
	return events.Writer{Now: r.Now}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// EnsureTenant registers tenantID if it is new. Name is only set on insert.
func (r Repo) EnsureTenant(ctx context.Context, tenantID, name, actorID string) (domain.Tenant, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.Tenant{}, errors.New("tenant id required")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tenant{}, err
	}
	defer tx.Rollback()
	created, err := r.ensureTenantTx(ctx, tx, tenantID, name)
	if err != nil {
		return domain.Tenant{}, err
	}
	if created {
		if err := r.events().Append(ctx, tx, events.TenantInitialized, tenantID, "tenant", tenantID, actorID, events.EventPayload{"name": name}); err != nil {
			return domain.Tenant{}, err
		}
	}
	t, err := scanTenant(tx.QueryRowContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM tenants WHERE id=?`, tenantID))
	if err != nil {
		return domain.Tenant{}, err
	}
	return t, tx.Commit()
}

func (r Repo) ensureTenantTx(ctx context.Context, tx *sql.Tx, tenantID, name string) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tenants(id,name,created_at) VALUES (?,?,?)`, tenantID, nullable(name), r.now())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanTenant(row *sql.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, fmt.Errorf("%w: tenant", ErrNotFound)
	}
	return t, err
}

func (r Repo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	return scanTenant(r.DB.QueryRowContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM tenants WHERE id=?`, id))
}

// SingleTenant returns the only tenant of the workspace, used when no tenant
// was given on the command line.
func (r Repo) SingleTenant(ctx context.Context) (domain.Tenant, error) {
	tenants, err := r.ListTenants(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	if len(tenants) == 0 {
		return domain.Tenant{}, fmt.Errorf("%w: no tenant initialized", ErrNotFound)
	}
	if len(tenants) > 1 {
		return domain.Tenant{}, fmt.Errorf("multiple tenants exist; specify --tenant")
	}
	return tenants[0], nil
}

func (r Repo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// Next bumps the (tenant, prefix) counter in one statement and formats it.
func (r Repo) Next(ctx context.Context, tenantID, prefix string) (string, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `INSERT INTO folio_counters(tenant_id,prefix,value) VALUES (?,?,1)
ON CONFLICT(tenant_id,prefix) DO UPDATE SET value=value+1 RETURNING value`, tenantID, prefix).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next folio %s: %w", prefix, err)
	}
	return lifecycle.FormatFolio(prefix, n, r.FolioWidth), nil
}

const eventColumns = `id,ts,type,COALESCE(tenant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json`

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.TenantID, &e.EntityKind, &e.EntityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type EventFilter struct {
	TenantID   string
	Type       string
	EntityKind string
	EntityID   string
	Limit      int
	// Before pages backwards from an event id.
	Before int64
}

// LatestEvents returns newest events first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	clauses := []string{"tenant_id=?"}
	args := []any{f.TenantID}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id DESC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, tenantID string, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if tenantID != "" {
		clauses = append(clauses, "tenant_id=?")
		args = append(args, tenantID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id ASC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// LatestEventID returns the most recent event ID for a tenant.
func (r Repo) LatestEventID(ctx context.Context, tenantID string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE tenant_id=?`, tenantID).Scan(&id)
	return id, err
}
