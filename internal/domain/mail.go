package domain

const (
	MailTypeWelcome      = "welcome"
	MailTypePotholeFixed = "pothole_fixed"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type WelcomeMailData struct {
	Name   string `json:"name"`
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

type PotholeFixedMailData struct {
	Name          string  `json:"name"`
	PotholeID     string  `json:"potholeId"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	UpdatedByName string  `json:"updatedByName"`
}
