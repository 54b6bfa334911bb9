package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.GetAllUsers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, users)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.errorResponse(w, r, http.StatusBadRequest, "Search query is required")
		return
	}

	users, err := h.store.SearchUsers(r.Context(), query)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if len(users) == 0 {
		h.notFound(w, r, "No users found")
		return
	}

	h.writeJSON(w, r, http.StatusOK, users)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name" validate:"omitempty,min=2,max=50"`
		Email    *string `json:"email" validate:"omitempty,email_address"`
		Phone    *string `json:"phone" validate:"omitempty,phone"`
		Role     *string `json:"role" validate:"omitempty,oneof=driver technician admin"`
		Password *string `json:"password" validate:"omitempty,min=8,max=100"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		*req.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		*req.Email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		*req.Phone = strings.TrimSpace(*req.Phone)
	}

	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if h.enforced() {
		claims, _ := claimsFrom(r)
		if claims == nil || (claims.Subject != user.ID.String() && !isAdmin(r)) {
			h.errorResponse(w, r, http.StatusForbidden, "Access forbidden: cannot modify another user")
			return
		}
		if req.Role != nil && domain.Role(*req.Role) != user.Role && !isAdmin(r) {
			h.errorResponse(w, r, http.StatusForbidden, "Access forbidden: only admins can change roles")
			return
		}
	}

	// 可读 ID 在创建时确定，角色改变时不重新生成
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil {
		user.Role = domain.Role(*req.Role)
	}
	if req.Password != nil {
		passwordHash, err := auth.HashPassword(*req.Password)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		user.PasswordHash = passwordHash
	}

	// 与创建时相同的校验规则作用在合并后的用户上
	if err := h.validate.Struct(user); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		h.userWriteError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Message string       `json:"message"`
		User    *domain.User `json:"user"`
	}{
		Message: "User updated successfully",
		User:    user,
	})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if _, err := h.store.DeleteUserByUserID(r.Context(), userID); err != nil {
		switch {
		case isNoRows(err):
			h.notFound(w, r, "User not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.messageResponse(w, r, fmt.Sprintf("User %s deleted successfully", userID))
}

func (h *Handler) DeleteUserByName(w http.ResponseWriter, r *http.Request) {
	// 只有按 RawPath 路由时参数才是未解码的
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}

	user, err := h.store.DeleteUserByName(r.Context(), name)
	if err != nil {
		switch {
		case isNoRows(err):
			h.notFound(w, r, fmt.Sprintf("User '%s' not found", name))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.messageResponse(w, r, fmt.Sprintf("User '%s' (%s) deleted successfully", user.Name, user.UserID))
}
