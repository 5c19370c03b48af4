package repo

import (
	"context"
	"database/sql"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, now)
	return err
}

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, id, desc string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO roles(id, description) VALUES (?,?)`, id, nullable(desc))
	return err
}

func (r Repo) InsertPermission(ctx context.Context, tx *sql.Tx, id, desc string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO permissions(id, description) VALUES (?,?)`, id, nullable(desc))
	return err
}

func (r Repo) AddRolePermission(ctx context.Context, tx *sql.Tx, roleID, permID string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_permissions(role_id, permission_id) VALUES (?,?)`, roleID, permID)
	return err
}

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, tenantID, actorID, roleID string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actor_roles(tenant_id, actor_id, role_id) VALUES (?,?,?)`, tenantID, actorID, roleID)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, tenantID, actorID, roleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM actor_roles WHERE tenant_id=? AND actor_id=? AND role_id=?`, tenantID, actorID, roleID)
	return err
}

// SeedRBAC installs the role catalog. It is idempotent.
func (r Repo) SeedRBAC(ctx context.Context, catalog map[string][]string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for role, perms := range catalog {
		if err := r.InsertRole(ctx, tx, role, ""); err != nil {
			return err
		}
		for _, p := range perms {
			if err := r.InsertPermission(ctx, tx, p, ""); err != nil {
				return err
			}
			if err := r.AddRolePermission(ctx, tx, role, p); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GrantRole registers actorID and gives it roleID within tenantID.
func (r Repo) GrantRole(ctx context.Context, tenantID, actorID, roleID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureActor(ctx, tx, actorID, r.now()); err != nil {
		return err
	}
	if err := r.AssignRole(ctx, tx, tenantID, actorID, roleID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) Revoke(ctx context.Context, tenantID, actorID, roleID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.RevokeRole(ctx, tx, tenantID, actorID, roleID); err != nil {
		return err
	}
	return tx.Commit()
}
