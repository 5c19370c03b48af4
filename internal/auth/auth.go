package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// Permissions checked by the API and CLI.
const (
	PermDocumentCreate     = "document.create"
	PermDocumentRead       = "document.read"
	PermDocumentTransition = "document.transition"
	PermSignatureCapture   = "signature.capture"
	PermStockRead          = "stock.read"
	PermStockWrite         = "stock.write"
	PermEventsRead         = "events.read"
	PermInstructionsRead   = "instructions.read"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
	TenantID   string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required in tenant %s", e.Permission, e.TenantID)
}

// Service provides RBAC lookups backed by SQL. Roles are granted per tenant.
type Service struct {
	DB *sql.DB
}

func (s Service) ActorHasPermission(ctx context.Context, tenantID, actorID, perm string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT 1 FROM actor_roles ar
JOIN role_permissions rp ON rp.role_id=ar.role_id
WHERE ar.tenant_id=? AND ar.actor_id=? AND rp.permission_id=? LIMIT 1`,
		tenantID, actorID, perm)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Require returns ForbiddenError unless actorID holds perm in tenantID.
func (s Service) Require(ctx context.Context, tenantID, actorID, perm string) error {
	ok, err := s.ActorHasPermission(ctx, tenantID, actorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Permission: perm, TenantID: tenantID}
	}
	return nil
}

func (s Service) ActorRoles(ctx context.Context, tenantID, actorID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT role_id FROM actor_roles WHERE tenant_id=? AND actor_id=? ORDER BY role_id`, tenantID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s Service) ActorPermissions(ctx context.Context, tenantID, actorID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT DISTINCT rp.permission_id
FROM actor_roles ar
JOIN role_permissions rp ON rp.role_id=ar.role_id
WHERE ar.tenant_id=? AND ar.actor_id=?
ORDER BY rp.permission_id`, tenantID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
