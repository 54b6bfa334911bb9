package handler

import (
	"net/http"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

type ContextKey string

var (
	ClaimsCtxKey ContextKey = "claims"
	UserInfoCtx  ContextKey = "userInfo"
	PotholeCtx   ContextKey = "pothole"
	MyInfoCtx    ContextKey = "myInfo"
)

// claimsFrom 返回鉴权中间件附加的令牌声明，未经过鉴权时返回 false
func claimsFrom(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(ClaimsCtxKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func isAdmin(r *http.Request) bool {
	claims, ok := claimsFrom(r)
	return ok && domain.Role(claims.Role) == domain.RoleAdmin
}
