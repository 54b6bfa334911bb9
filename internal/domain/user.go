package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDriver     Role = "driver"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name" validate:"required,min=2,max=50"`
	Email        string    `json:"email" validate:"required,email_address"`
	PasswordHash string    `json:"-" validate:"required"`
	Phone        string    `json:"phone,omitempty" validate:"omitempty,phone"`
	Role         Role      `json:"role" validate:"required,oneof=driver technician admin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// 注册、登录时返回给客户端的精简信息
type UserSummary struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID: u.UserID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
	}
}
