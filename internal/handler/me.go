package handler

import (
	"net/http"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	h.writeJSON(w, r, http.StatusOK, myInfo)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=100"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	ok, err := auth.VerifyPassword(req.OldPassword, myInfo.PasswordHash)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !ok {
		h.errorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	myInfo.PasswordHash = passwordHash

	if err := h.store.UpdateUser(r.Context(), myInfo); err != nil {
		h.userWriteError(w, r, err)
		return
	}

	h.messageResponse(w, r, "Password updated successfully")
}
