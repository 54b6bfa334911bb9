package mailer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrUnknownMailType = errors.New("unknown mail type")

type mailKind struct {
	subject  string
	template *template.Template
}

var kinds = map[string]mailKind{
	domain.MailTypeWelcome: {
		subject:  "Pothole Tracker - Your account",
		template: template.Must(template.ParseFS(templateFS, "templates/welcome.html")),
	},
	domain.MailTypePotholeFixed: {
		subject:  "Pothole Tracker - A pothole you reported was fixed",
		template: template.Must(template.ParseFS(templateFS, "templates/pothole_fixed.html")),
	},
}

// Decode 解析队列中的消息体
func Decode(body []byte) (domain.MailMessage, error) {
	msg := domain.MailMessage{}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, err
	}
	if msg.To == "" {
		return msg, errors.New("mail message has no recipient")
	}
	return msg, nil
}

// Compose 根据消息类型渲染邮件
func Compose(from string, msg domain.MailMessage) (*mail.Msg, error) {
	kind, ok := kinds[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMailType, msg.Type)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(kind.subject)
	if err := m.SetBodyHTMLTemplate(kind.template, msg.Data); err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	return m, nil
}
