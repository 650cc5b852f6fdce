package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
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

const userSelect = `
	SELECT u.id, u.email, u.first_name, u.last_name, u.avatar_url, u.is_active,
	       u.email_verified, u.last_login, u.role_id, r.role_key, r.name,
	       u.created_at, u.updated_at
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id`

// ListUsers returns users matching filters ordered by id.
func (r *Repository) ListUsers(ctx context.Context, filters ListFilters) ([]User, error) {
	rows, err := r.pool.Query(ctx, userSelect+`
		WHERE ($1::boolean IS NULL OR u.is_active = $1)
		  AND ($2 = '' OR r.role_key = $2)
		ORDER BY u.id
		OFFSET $3 LIMIT $4`, filters.IsActive, filters.RoleKey, filters.Page.Skip, filters.Page.Limit)
	if err != nil {
		return nil, db.Classify("users: list", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, db.Classify("users: scan", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("users: list", err)
	}
	return users, nil
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if err != nil {
		return User{}, db.Classify(fmt.Sprintf("users: user %d", id), err)
	}
	return user, nil
}

// SetRole assigns roleID to the user; nil clears the role.
func (r *Repository) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	var id int64
	err := r.pool.QueryRow(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1 RETURNING id`, userID, roleID).Scan(&id)
	return db.Classify(fmt.Sprintf("users: set role of %d", userID), err)
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.AvatarURL, &u.IsActive,
		&u.EmailVerified, &u.LastLogin, &u.RoleID, &u.RoleKey, &u.RoleName,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}
