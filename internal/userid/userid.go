// Package userid 生成形如 DRV0001 的可读用户 ID。
package userid

import (
	"context"
	"fmt"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

var rolePrefixes = map[domain.Role]string{
	domain.RoleDriver:     "DRV",
	domain.RoleTechnician: "TECH",
	domain.RoleAdmin:      "ADM",
}

const fallbackPrefix = "USR"

func Prefix(role domain.Role) string {
	if prefix, ok := rolePrefixes[role]; ok {
		return prefix
	}
	return fallbackPrefix
}

func Format(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// Counter 以原子方式递增并返回某个角色的序号
type Counter interface {
	NextUserSequence(ctx context.Context, role domain.Role) (int64, error)
}

type Allocator struct {
	counter Counter
}

func NewAllocator(counter Counter) *Allocator {
	return &Allocator{counter: counter}
}

func (a *Allocator) Allocate(ctx context.Context, role domain.Role) (string, error) {
	seq, err := a.counter.NextUserSequence(ctx, role)
	if err != nil {
		return "", fmt.Errorf("next sequence for role %q: %w", role, err)
	}
	return Format(Prefix(role), seq), nil
}

// Assign 只在用户还没有可读 ID 时分配，之后即使角色改变也不会重新计算
func (a *Allocator) Assign(ctx context.Context, user *domain.User) error {
	if user.UserID != "" {
		return nil
	}

	id, err := a.Allocate(ctx, user.Role)
	if err != nil {
		return err
	}
	user.UserID = id

	return nil
}
