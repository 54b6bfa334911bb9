package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// subjectID 返回令牌中的用户主键，未登录或主键格式错误时返回 nil
func subjectID(r *http.Request) *uuid.UUID {
	claims, ok := claimsFrom(r)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil
	}
	return &id
}

func (h *Handler) GetAllPotholes(w http.ResponseWriter, r *http.Request) {
	potholes, err := h.store.GetAllPotholes(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, potholes)
}

func (h *Handler) GetPothole(w http.ResponseWriter, r *http.Request) {
	p := r.Context().Value(PotholeCtx).(*domain.Pothole)
	h.writeJSON(w, r, http.StatusOK, p)
}

func (h *Handler) CreatePothole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat           *float64   `json:"lat" validate:"required,min=-90,max=90"`
		Lng           *float64   `json:"lng" validate:"required,min=-180,max=180"`
		Width         *float64   `json:"width" validate:"omitempty,min=0"`
		Depth         *float64   `json:"depth" validate:"omitempty,min=0"`
		Area          *float64   `json:"area" validate:"omitempty,min=0"`
		Status        string     `json:"status" validate:"omitempty,oneof=new pending_review confirmed fixed"`
		Notes         string     `json:"notes"`
		ReporterID    *uuid.UUID `json:"reporterId"`
		ReporterName  string     `json:"reporterName"`
		UpdatedBy     *uuid.UUID `json:"updatedBy"`
		UpdatedByName string     `json:"updatedByName"`
		ImageURL      string     `json:"imageUrl"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Status = normalizeStatus(req.Status)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	status := domain.StatusNew
	if req.Status != "" {
		status = domain.Status(req.Status)
	}

	p := &domain.Pothole{
		Lat:           *req.Lat,
		Lng:           *req.Lng,
		Width:         req.Width,
		Depth:         req.Depth,
		Area:          req.Area,
		Severity:      domain.SeverityForCreate(req.Depth, string(status)),
		Status:        status,
		ReporterID:    req.ReporterID,
		ReporterName:  strings.TrimSpace(req.ReporterName),
		UpdatedBy:     req.UpdatedBy,
		UpdatedByName: strings.TrimSpace(req.UpdatedByName),
		Notes:         req.Notes,
		ImageURL:      strings.TrimSpace(req.ImageURL),
	}

	// 登录用户上报时默认以自己为上报者
	if p.ReporterID == nil {
		p.ReporterID = subjectID(r)
	}

	var err error
	if p.ReporterName == "" {
		if p.ReporterName, err = h.displayName(r, p.ReporterID); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}
	if p.UpdatedByName == "" {
		if p.UpdatedByName, err = h.displayName(r, p.UpdatedBy); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	if err := h.store.CreatePothole(r.Context(), p); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, p)
}

func (h *Handler) UpdatePothole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width         *float64   `json:"width" validate:"omitempty,min=0"`
		Depth         *float64   `json:"depth" validate:"omitempty,min=0"`
		Area          *float64   `json:"area" validate:"omitempty,min=0"`
		Status        *string    `json:"status" validate:"omitempty,oneof=new pending_review confirmed fixed"`
		Notes         *string    `json:"notes"`
		ReporterID    *uuid.UUID `json:"reporterId"`
		ImageURL      *string    `json:"imageUrl"`
		UpdatedBy     *uuid.UUID `json:"updatedBy"`
		UpdatedByName *string    `json:"updatedByName"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Status != nil {
		*req.Status = normalizeStatus(*req.Status)
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	p := r.Context().Value(PotholeCtx).(*domain.Pothole)
	wasFixed := p.Status == domain.StatusFixed

	if req.Width != nil {
		p.Width = req.Width
	}
	if req.Depth != nil {
		p.Depth = req.Depth
	}
	if req.Area != nil {
		p.Area = req.Area
	}
	status := ""
	if req.Status != nil {
		status = *req.Status
		p.Status = domain.Status(status)
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	// 只有提供了深度或状态改为 fixed 时才重新计算严重程度
	if severity, ok := domain.ClassifySeverity(req.Depth, status); ok {
		p.Severity = severity
	}

	var err error
	if req.ReporterID != nil {
		p.ReporterID = req.ReporterID
		if p.ReporterName, err = h.displayName(r, p.ReporterID); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	updatedBy := req.UpdatedBy
	if updatedBy == nil {
		updatedBy = subjectID(r)
	}
	if updatedBy != nil {
		p.UpdatedBy = updatedBy
	}
	switch {
	case req.UpdatedByName != nil:
		p.UpdatedByName = strings.TrimSpace(*req.UpdatedByName)
	case updatedBy != nil:
		if p.UpdatedByName, err = h.displayName(r, updatedBy); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	if err := h.validate.Struct(p); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.store.UpdatePothole(r.Context(), p); err != nil {
		switch {
		case isNoRows(err):
			h.notFound(w, r, "Pothole not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if !wasFixed && p.Status == domain.StatusFixed {
		h.notifyPotholeFixed(r, p)
	}

	h.writeJSON(w, r, http.StatusOK, p)
}

func (h *Handler) DeletePothole(w http.ResponseWriter, r *http.Request) {
	id, err := parsePotholeID(r)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "Invalid ID format")
		return
	}

	if err := h.store.DeletePothole(r.Context(), id); err != nil {
		switch {
		case isNoRows(err):
			h.notFound(w, r, "Pothole not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.messageResponse(w, r, "Pothole deleted successfully")
}
