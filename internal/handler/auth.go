package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/repository"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required,min=2,max=50"`
		Email    string `json:"email" validate:"required,email_address"`
		Password string `json:"password" validate:"required,min=8,max=100"`
		Phone    string `json:"phone" validate:"omitempty,phone"`
		Role     string `json:"role" validate:"omitempty,oneof=driver technician admin"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Role == "" {
		req.Role = string(domain.RoleDriver)
	}

	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// enforced 策略下只有管理员可以创建非司机账户
	if h.enforced() && domain.Role(req.Role) != domain.RoleDriver && !isAdmin(r) {
		h.errorResponse(w, r, http.StatusForbidden, "Only admins can register technician or admin accounts")
		return
	}

	_, err := h.store.GetUserByEmail(r.Context(), req.Email)
	switch {
	case err == nil:
		h.errorResponse(w, r, http.StatusBadRequest, "Email already registered")
		return
	case !errors.Is(err, sql.ErrNoRows):
		h.internalServerError(w, r, err)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Phone:        req.Phone,
		Role:         domain.Role(req.Role),
	}

	if err := h.allocator.Assign(r.Context(), user); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.userWriteError(w, r, err)
		return
	}

	h.publishMail(r, domain.MailMessage{
		Type: domain.MailTypeWelcome,
		To:   user.Email,
		Data: domain.WelcomeMailData{
			Name:   user.Name,
			UserID: user.UserID,
			Role:   user.Role,
		},
	})

	h.writeJSON(w, r, http.StatusCreated, struct {
		Message string             `json:"message"`
		User    domain.UserSummary `json:"user"`
	}{
		Message: "User registered successfully",
		User:    user.Summary(),
	})
}

// userWriteError 处理写入用户时的唯一约束冲突
func (h *Handler) userWriteError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case repository.ConstraintUsersEmail:
			h.errorResponse(w, r, http.StatusBadRequest, "Email already registered")
		case repository.ConstraintUsersUserID:
			h.errorResponse(w, r, http.StatusBadRequest, "User ID already exists")
		default:
			h.internalServerError(w, r, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		h.notFound(w, r, "User not found")
	default:
		h.internalServerError(w, r, err)
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// 保证"用户不存在"与"密码错误"耗时相同
			auth.VerifyDummy(req.Password)
			if h.config.Auth.UniformLoginErrors {
				h.errorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
			} else {
				h.notFound(w, r, "User not found")
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !ok {
		h.errorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, _, err := h.tokens.Issue(user.ID.String(), string(user.Role))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Message string             `json:"message"`
		Token   string             `json:"token"`
		User    domain.UserSummary `json:"user"`
	}{
		Message: "Login successful",
		Token:   token,
		User:    user.Summary(),
	})
}

// Logout 将当前令牌加入 redis 黑名单直到其过期
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		h.errorResponse(w, r, http.StatusUnauthorized, "Access denied: no token provided")
		return
	}

	if h.revoker != nil {
		if err := h.revoker.Revoke(r.Context(), claims.ID, h.tokens.Remaining(claims)); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	h.messageResponse(w, r, "Logout successful")
}
