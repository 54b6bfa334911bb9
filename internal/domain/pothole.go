package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNew           Status = "new"
	StatusPendingReview Status = "pending_review"
	StatusConfirmed     Status = "confirmed"
	StatusFixed         Status = "fixed"
)

type Pothole struct {
	ID  uuid.UUID `json:"id"`
	Lat float64   `json:"lat" validate:"min=-90,max=90"`
	Lng float64   `json:"lng" validate:"min=-180,max=180"`

	Width *float64 `json:"width,omitempty" validate:"omitempty,min=0"`
	Depth *float64 `json:"depth,omitempty" validate:"omitempty,min=0"`
	Area  *float64 `json:"area,omitempty" validate:"omitempty,min=0"`

	Severity Severity `json:"severity" validate:"required,oneof=minor moderate severe fixed"`
	Status   Status   `json:"status" validate:"required,oneof=new pending_review confirmed fixed"`

	// 创建者与最后修改者的引用不对外暴露，只暴露冗余的名字
	ReporterID    *uuid.UUID `json:"-"`
	ReporterName  string     `json:"reporterName,omitempty"`
	UpdatedBy     *uuid.UUID `json:"-"`
	UpdatedByName string     `json:"updatedByName,omitempty"`

	Notes    string `json:"notes,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
