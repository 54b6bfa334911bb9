package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

type PotholeCreator interface {
	CreatePothole(ctx context.Context, p *domain.Pothole) error
}

var requiredHeaders = []string{"lat", "lng"}

// ImportPotholes 从 CSV 导入坑洞。表头必须包含 lat、lng，
// 可选 width、depth、area、status、notes。格式错误的行会被跳过。
func ImportPotholes(ctx context.Context, store PotholeCreator, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}
	for _, h := range requiredHeaders {
		if !slices.Contains(headers, h) {
			return 0, fmt.Errorf("missing column %q", h)
		}
	}

	imported := 0
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return imported, fmt.Errorf("read line %d: %w", line+1, err)
		}
		line++

		record := make(map[string]string, len(headers))
		for i, value := range row {
			if i < len(headers) {
				record[headers[i]] = strings.TrimSpace(value)
			}
		}

		p, err := potholeFromRecord(record)
		if err != nil {
			slog.Warn("skipped csv line", "line", line, "error", err)
			continue
		}

		if err := store.CreatePothole(ctx, p); err != nil {
			return imported, fmt.Errorf("insert line %d: %w", line, err)
		}
		imported++
	}

	return imported, nil
}

// ParseFloat 接受 NaN 和 Inf，它们会绕过范围检查
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func potholeFromRecord(record map[string]string) (*domain.Pothole, error) {
	lat, err := strconv.ParseFloat(record["lat"], 64)
	if err != nil || !finite(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid lat %q", record["lat"])
	}
	lng, err := strconv.ParseFloat(record["lng"], 64)
	if err != nil || !finite(lng) || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("invalid lng %q", record["lng"])
	}

	p := &domain.Pothole{
		Lat:    lat,
		Lng:    lng,
		Status: domain.StatusNew,
		Notes:  record["notes"],
	}

	for _, m := range []struct {
		column string
		dst    **float64
	}{
		{"width", &p.Width},
		{"depth", &p.Depth},
		{"area", &p.Area},
	} {
		raw := record[m.column]
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !finite(v) || v < 0 {
			return nil, fmt.Errorf("invalid %s %q", m.column, raw)
		}
		*m.dst = &v
	}

	if status := strings.ToLower(record["status"]); status != "" {
		switch domain.Status(status) {
		case domain.StatusNew, domain.StatusPendingReview, domain.StatusConfirmed, domain.StatusFixed:
			p.Status = domain.Status(status)
		default:
			return nil, fmt.Errorf("invalid status %q", record["status"])
		}
	}

	p.Severity = domain.SeverityForCreate(p.Depth, string(p.Status))
	return p, nil
}
