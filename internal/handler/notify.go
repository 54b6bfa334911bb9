package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

// publishMail 将邮件放入队列。记录已经写入数据库，投递失败只记录日志
func (h *Handler) publishMail(r *http.Request, msg domain.MailMessage) {
	if h.mail == nil {
		return
	}

	if err := h.mail.Publish(context.WithoutCancel(r.Context()), msg); err != nil {
		slog.Error("failed to queue mail", "type", msg.Type, "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// notifyPotholeFixed 通知上报者其上报的坑洞已修复
func (h *Handler) notifyPotholeFixed(r *http.Request, p *domain.Pothole) {
	if h.mail == nil || p.ReporterID == nil {
		return
	}

	reporter, err := h.store.GetUserByID(r.Context(), *p.ReporterID)
	if err != nil {
		slog.Warn("reporter of fixed pothole not notified", "pothole", p.ID, "error", err)
		return
	}

	h.publishMail(r, domain.MailMessage{
		Type: domain.MailTypePotholeFixed,
		To:   reporter.Email,
		Data: domain.PotholeFixedMailData{
			Name:          reporter.Name,
			PotholeID:     p.ID.String(),
			Lat:           p.Lat,
			Lng:           p.Lng,
			UpdatedByName: p.UpdatedByName,
		},
	})
}

// displayName 返回被引用用户当前的名字，找不到时返回空字符串
func (h *Handler) displayName(r *http.Request, id *uuid.UUID) (string, error) {
	if id == nil {
		return "", nil
	}

	user, err := h.store.GetUserByID(r.Context(), *id)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", err
	}

	return user.Name, nil
}
