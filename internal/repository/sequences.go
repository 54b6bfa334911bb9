package repository

import (
	"context"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

// NextUserSequence 原子地递增并返回某个角色的序号。
// 第一次使用时以该角色现有用户数 + 1 作为起点。
func (r *Repository) NextUserSequence(ctx context.Context, role domain.Role) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO user_sequences (role, value)
		VALUES ($1, (SELECT COUNT(*) FROM users WHERE role = $1) + 1)
		ON CONFLICT (role) DO UPDATE SET value = user_sequences.value + 1
		RETURNING value
	`

	var seq int64
	if err := r.dbpool.QueryRowContext(ctx, query, string(role)).Scan(&seq); err != nil {
		return 0, err
	}

	return seq, nil
}
