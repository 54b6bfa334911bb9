package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

const potholeColumns = `
	id, lat, lng, width, depth, area, severity, status,
	reporter_id, reporter_name, updated_by, updated_by_name,
	notes, image_url, timestamp
`

func scanPothole(row rowScanner) (*domain.Pothole, error) {
	p := &domain.Pothole{}
	dst := []any{
		&p.ID, &p.Lat, &p.Lng, &p.Width, &p.Depth, &p.Area, &p.Severity, &p.Status,
		&p.ReporterID, &p.ReporterName, &p.UpdatedBy, &p.UpdatedByName,
		&p.Notes, &p.ImageURL, &p.Timestamp,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) CreatePothole(ctx context.Context, p *domain.Pothole) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO potholes (
			id, lat, lng, width, depth, area, severity, status,
			reporter_id, reporter_name, updated_by, updated_by_name, notes, image_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING timestamp
	`

	args := []any{
		p.ID, p.Lat, p.Lng, p.Width, p.Depth, p.Area, p.Severity, p.Status,
		p.ReporterID, p.ReporterName, p.UpdatedBy, p.UpdatedByName, p.Notes, p.ImageURL,
	}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&p.Timestamp)
}

func (r *Repository) GetPotholeByID(ctx context.Context, id uuid.UUID) (*domain.Pothole, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + potholeColumns + ` FROM potholes WHERE id = $1`
	return scanPothole(r.dbpool.QueryRowContext(ctx, query, id))
}

// GetAllPotholes 按上报时间从新到旧排序
func (r *Repository) GetAllPotholes(ctx context.Context) ([]*domain.Pothole, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + potholeColumns + ` FROM potholes ORDER BY timestamp DESC`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	potholes := make([]*domain.Pothole, 0)
	for rows.Next() {
		p, err := scanPothole(rows)
		if err != nil {
			return nil, err
		}
		potholes = append(potholes, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return potholes, nil
}

// UpdatePothole 覆盖可修改的字段，坐标与上报时间不可修改
func (r *Repository) UpdatePothole(ctx context.Context, p *domain.Pothole) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE potholes
		SET
			width = $1,
			depth = $2,
			area = $3,
			severity = $4,
			status = $5,
			reporter_id = $6,
			reporter_name = $7,
			updated_by = $8,
			updated_by_name = $9,
			notes = $10,
			image_url = $11
		WHERE id = $12
		RETURNING timestamp
	`

	args := []any{
		p.Width, p.Depth, p.Area, p.Severity, p.Status,
		p.ReporterID, p.ReporterName, p.UpdatedBy, p.UpdatedByName,
		p.Notes, p.ImageURL, p.ID,
	}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&p.Timestamp)
}

// DeletePothole 不存在时返回 sql.ErrNoRows
func (r *Repository) DeletePothole(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var deleted uuid.UUID
	return r.dbpool.QueryRowContext(ctx, `DELETE FROM potholes WHERE id = $1 RETURNING id`, id).Scan(&deleted)
}
