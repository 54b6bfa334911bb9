package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("handled request", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				fmt.Print(string(debug.Stack()))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// auth 校验 Bearer 令牌，并将声明附在 context 中
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			h.errorResponse(w, r, http.StatusUnauthorized, "Access denied: no token provided")
			return
		}

		claims, err := h.tokens.Verify(tokenString)
		if err != nil {
			h.errorResponse(w, r, http.StatusForbidden, "Invalid or expired token")
			return
		}

		if h.revoker != nil {
			revoked, err := h.revoker.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				h.internalServerError(w, r, err)
				return
			}
			if revoked {
				h.errorResponse(w, r, http.StatusForbidden, "Invalid or expired token")
				return
			}
		}

		ctx := context.WithValue(r.Context(), ClaimsCtxKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identify 在 enforced 策略下且携带令牌时与 auth 相同，否则直接放行
func (h *Handler) identify(next http.Handler) http.Handler {
	authed := h.auth(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.enforced() || r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFrom(r)
			if !ok || !slices.Contains(roles, domain.Role(claims.Role)) {
				h.errorResponse(w, r, http.StatusForbidden, "Access forbidden: insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// protect 只有在 enforced 策略下才挂载鉴权，roles 为空时只要求登录
func (h *Handler) protect(roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !h.enforced() {
			return next
		}
		if len(roles) > 0 {
			next = h.RequiredRole(roles)(next)
		}
		return h.auth(next)
	}
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		user, err := h.store.GetUserByUserID(r.Context(), userID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.notFound(w, r, "User not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), UserInfoCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// myInfo 根据令牌中的 subject 加载当前用户，必须挂在 auth 之后
func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			h.errorResponse(w, r, http.StatusUnauthorized, "Access denied: no token provided")
			return
		}

		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			h.errorResponse(w, r, http.StatusForbidden, "Invalid or expired token")
			return
		}

		user, err := h.store.GetUserByID(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.notFound(w, r, "User not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), MyInfoCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parsePotholeID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handler) potholeInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePotholeID(r)
		if err != nil {
			h.errorResponse(w, r, http.StatusBadRequest, "Invalid ID format")
			return
		}

		p, err := h.store.GetPotholeByID(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.notFound(w, r, "Pothole not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), PotholeCtx, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
