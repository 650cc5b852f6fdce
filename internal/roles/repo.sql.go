package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartsprint/smartsprint/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, role_key, name, created_at FROM roles ORDER BY name COLLATE "C", id`)
	if err != nil {
		return nil, db.Classify("roles: list", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Key, &role.Name, &role.CreatedAt); err != nil {
			return nil, db.Classify("roles: scan", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("roles: list", err)
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, role_key, name, created_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Key, &role.Name, &role.CreatedAt)
	if err != nil {
		return Role{}, db.Classify(fmt.Sprintf("roles: role %d", id), err)
	}
	return role, nil
}

// RenameRole updates the display name of a role.
func (r *Repository) RenameRole(ctx context.Context, id int64, name string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `UPDATE roles SET name = $2 WHERE id = $1 RETURNING id, role_key, name, created_at`, id, name).
		Scan(&role.ID, &role.Key, &role.Name, &role.CreatedAt)
	if err != nil {
		return Role{}, db.Classify(fmt.Sprintf("roles: rename %d", id), err)
	}
	return role, nil
}
