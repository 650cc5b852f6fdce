package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartsprint/smartsprint/internal/platform/db"
)

// Repository defines persistence for the catalog, role grants and overrides.
// Implementations return errors classified with the shared error kinds.
type Repository interface {
	// Catalog
	ListPermissions(ctx context.Context, category string) ([]Permission, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionByKey(ctx context.Context, key string) (Permission, error)
	PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error)
	PermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error)

	// Roles and users
	GetRole(ctx context.Context, id int64) (Role, error)
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	GetSubject(ctx context.Context, userID int64) (Subject, error)

	// Overrides
	ListOverrides(ctx context.Context, userID int64) ([]Override, error)
	UpsertOverride(ctx context.Context, o Override) (Override, error)
	DeleteOverride(ctx context.Context, userID int64, key string) (bool, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the statements of a grant replacement.
type TxRepository interface {
	DeleteRoleGrants(ctx context.Context, roleID int64) error
	InsertRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const permissionColumns = `id, perm_key, name, category, created_at`

// ListPermissions returns catalog entries, optionally restricted to one category.
func (r *PGRepository) ListPermissions(ctx context.Context, category string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+permissionColumns+`
		FROM permissions
		WHERE ($1 = '' OR category = $1)
		ORDER BY category COLLATE "C", name COLLATE "C", perm_key COLLATE "C"`, category)
	if err != nil {
		return nil, db.Classify("rbac: list permissions", err)
	}
	return collectPermissions(rows, "rbac: list permissions")
}

// ListCategories returns the distinct catalog categories.
func (r *PGRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM permissions ORDER BY category COLLATE "C"`)
	if err != nil {
		return nil, db.Classify("rbac: list categories", err)
	}
	defer rows.Close()
	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, db.Classify("rbac: scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("rbac: list categories", err)
	}
	return categories, nil
}

// GetPermission fetches a catalog entry by id.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Key, &p.Name, &p.Category, &p.CreatedAt)
	if err != nil {
		return Permission{}, db.Classify(fmt.Sprintf("rbac: permission %d", id), err)
	}
	return p, nil
}

// GetPermissionByKey fetches a catalog entry by key.
func (r *PGRepository) GetPermissionByKey(ctx context.Context, key string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE perm_key = $1`, key).
		Scan(&p.ID, &p.Key, &p.Name, &p.Category, &p.CreatedAt)
	if err != nil {
		return Permission{}, db.Classify(fmt.Sprintf("rbac: permission %q", key), err)
	}
	return p, nil
}

// PermissionsByIDs returns the catalog entries matching ids. Missing ids are
// simply absent from the result.
func (r *PGRepository) PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, db.Classify("rbac: permissions by id", err)
	}
	return collectPermissions(rows, "rbac: permissions by id")
}

// PermissionsByKeys returns the catalog entries matching keys.
func (r *PGRepository) PermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE perm_key = ANY($1)`, keys)
	if err != nil {
		return nil, db.Classify("rbac: permissions by key", err)
	}
	return collectPermissions(rows, "rbac: permissions by key")
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, role_key, name, created_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Key, &role.Name, &role.CreatedAt)
	if err != nil {
		return Role{}, db.Classify(fmt.Sprintf("rbac: role %d", id), err)
	}
	return role, nil
}

// RolePermissions returns the catalog entries granted to a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.perm_key, p.name, p.category, p.created_at
		FROM role_has_permission rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.category COLLATE "C", p.name COLLATE "C", p.perm_key COLLATE "C"`, roleID)
	if err != nil {
		return nil, db.Classify("rbac: role permissions", err)
	}
	return collectPermissions(rows, "rbac: role permissions")
}

// GetSubject loads the user id and role reference.
func (r *PGRepository) GetSubject(ctx context.Context, userID int64) (Subject, error) {
	var s Subject
	err := r.pool.QueryRow(ctx, `SELECT id, role_id FROM users WHERE id = $1`, userID).Scan(&s.UserID, &s.RoleID)
	if err != nil {
		return Subject{}, db.Classify(fmt.Sprintf("rbac: user %d", userID), err)
	}
	return s, nil
}

const overrideColumns = `id, user_id, permission_key, granted, granted_by, granted_at`

// ListOverrides returns a user's overrides in creation order.
func (r *PGRepository) ListOverrides(ctx context.Context, userID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+overrideColumns+` FROM user_permissions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, db.Classify("rbac: list overrides", err)
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ID, &o.UserID, &o.PermissionKey, &o.Granted, &o.GrantedBy, &o.GrantedAt); err != nil {
			return nil, db.Classify("rbac: scan override", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("rbac: list overrides", err)
	}
	return overrides, nil
}

// UpsertOverride inserts or updates the override for (user, key) in a single statement.
func (r *PGRepository) UpsertOverride(ctx context.Context, o Override) (Override, error) {
	var out Override
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_permissions (user_id, permission_key, granted, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, permission_key) DO UPDATE
		SET granted = EXCLUDED.granted,
		    granted_by = EXCLUDED.granted_by,
		    granted_at = EXCLUDED.granted_at
		RETURNING `+overrideColumns, o.UserID, o.PermissionKey, o.Granted, o.GrantedBy).
		Scan(&out.ID, &out.UserID, &out.PermissionKey, &out.Granted, &out.GrantedBy, &out.GrantedAt)
	if err != nil {
		return Override{}, db.Classify("rbac: upsert override", err)
	}
	return out, nil
}

// DeleteOverride removes the override for (user, key). It reports whether a row existed.
func (r *PGRepository) DeleteOverride(ctx context.Context, userID int64, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND permission_key = $2`, userID, key)
	if err != nil {
		return false, db.Classify("rbac: delete override", err)
	}
	return tag.RowsAffected() > 0, nil
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return db.Classify("rbac: transaction", err)
}

type txRepository struct {
	tx db.DBTX
}

// DeleteRoleGrants removes every grant of the role.
func (t *txRepository) DeleteRoleGrants(ctx context.Context, roleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM role_has_permission WHERE role_id = $1`, roleID)
	return db.Classify("rbac: delete role grants", err)
}

// InsertRoleGrants bulk-inserts grants for the role.
func (t *txRepository) InsertRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_has_permission (role_id, permission_id)
		SELECT $1, pid FROM unnest($2::bigint[]) AS pid`, roleID, permissionIDs)
	return db.Classify("rbac: insert role grants", err)
}

func collectPermissions(rows pgx.Rows, op string) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Category, &p.CreatedAt); err != nil {
			return nil, db.Classify(op, err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(op, err)
	}
	return perms, nil
}
