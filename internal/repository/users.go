package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

const userColumns = `id, user_id, name, email, password_hash, phone, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	dst := []any{&user.ID, &user.UserID, &user.Name, &user.Email, &user.PasswordHash, &user.Phone, &user.Role, &user.CreatedAt}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, user_id, name, email, password_hash, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	args := []any{user.ID, user.UserID, user.Name, user.Email, user.PasswordHash, user.Phone, user.Role}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt)
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetUserByUserID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return scanUser(r.dbpool.QueryRowContext(ctx, query, userID))
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.dbpool.QueryRowContext(ctx, query, email))
}

func (r *Repository) GetAllUsers(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	return r.queryUsers(ctx, query)
}

// SearchUsers 按名字模糊匹配（不区分大小写）或按可读 ID 精确匹配
func (r *Repository) SearchUsers(ctx context.Context, q string) ([]*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE name ILIKE '%' || $1 || '%' OR user_id = $2
		ORDER BY created_at
	`
	return r.queryUsers(ctx, query, escapeLike(q), strings.ToUpper(q))
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// UpdateUser 覆盖除 id、user_id、created_at 以外的全部字段
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET
			name = $1,
			email = $2,
			password_hash = $3,
			phone = $4,
			role = $5
		WHERE id = $6
		RETURNING user_id, created_at
	`

	args := []any{user.Name, user.Email, user.PasswordHash, user.Phone, user.Role, user.ID}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.UserID, &user.CreatedAt)
}

// DeleteUserByUserID 删除并返回被删除的用户，不存在时返回 sql.ErrNoRows
func (r *Repository) DeleteUserByUserID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM users WHERE user_id = $1 RETURNING ` + userColumns
	return scanUser(r.dbpool.QueryRowContext(ctx, query, userID))
}

// DeleteUserByName 删除名字完全匹配（不区分大小写）的最早创建的一个用户
func (r *Repository) DeleteUserByName(ctx context.Context, name string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		DELETE FROM users WHERE id = (
			SELECT id FROM users WHERE lower(name) = lower($1)
			ORDER BY created_at
			LIMIT 1
		)
		RETURNING ` + userColumns
	return scanUser(r.dbpool.QueryRowContext(ctx, query, name))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
