package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/config"
)

// 唯一约束名，handler 根据这些名字区分重复的字段
const (
	ConstraintUsersEmail  = "users_email_key"
	ConstraintUsersUserID = "users_user_id_key"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		user_id       TEXT NOT NULL,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		phone         TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_user_id_key UNIQUE (user_id),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE INDEX IF NOT EXISTS users_role_idx ON users (role)`,
	`CREATE TABLE IF NOT EXISTS user_sequences (
		role  TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS potholes (
		id              UUID PRIMARY KEY,
		lat             DOUBLE PRECISION NOT NULL,
		lng             DOUBLE PRECISION NOT NULL,
		width           DOUBLE PRECISION,
		depth           DOUBLE PRECISION,
		area            DOUBLE PRECISION,
		severity        TEXT NOT NULL DEFAULT 'minor',
		status          TEXT NOT NULL DEFAULT 'new',
		reporter_id     UUID,
		reporter_name   TEXT NOT NULL DEFAULT '',
		updated_by      UUID,
		updated_by_name TEXT NOT NULL DEFAULT '',
		notes           TEXT NOT NULL DEFAULT '',
		image_url       TEXT NOT NULL DEFAULT '',
		timestamp       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS potholes_timestamp_idx ON potholes (timestamp DESC)`,
}

// EnsureSchema 在启动时创建缺失的表，已存在的表不做任何修改
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	for _, stmt := range schema {
		if _, err := r.dbpool.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
