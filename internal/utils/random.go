package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

var firstNames = []string{
	"Amal", "Nimal", "Kasun", "Dilani", "Sajith", "Tharindu", "Ishara", "Ruwan", "Chamari", "Nuwan",
	"Anjali", "Pradeep", "Sanduni", "Lahiru", "Harsha", "Malsha", "Dinesh", "Gayani", "Chathura", "Rashmi",
}

var lastNames = []string{
	"Perera", "Fernando", "Silva", "Jayasinghe", "Bandara", "Wickramasinghe", "Gunawardena", "Herath", "Rathnayake", "Dissanayake",
}

func GenerateRandomName() string {
	return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
}

// 随机角色中司机占多数
var roles = []domain.Role{
	domain.RoleDriver,
	domain.RoleDriver,
	domain.RoleDriver,
	domain.RoleTechnician,
	domain.RoleTechnician,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateRandomPhone() string {
	phone := "07"
	for i := 0; i < 8; i++ {
		phone += string(digits[rand.Intn(len(digits))])
	}
	return phone
}

func GenerateEmailFromName(name, emailDomain string) string {
	local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	return fmt.Sprintf("%s%d@%s", local, rand.Intn(10000), emailDomain)
}

// GenerateRandomUser 生成一个随机用户，可读 ID 由调用方分配
func GenerateRandomUser(password string, emailDomain string) (*domain.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	name := GenerateRandomName()

	return &domain.User{
		Name:         name,
		Email:        GenerateEmailFromName(name, emailDomain),
		PasswordHash: passwordHash,
		Phone:        GenerateRandomPhone(),
		Role:         GenerateRandomRole(),
	}, nil
}

var statuses = []domain.Status{
	domain.StatusNew,
	domain.StatusNew,
	domain.StatusPendingReview,
	domain.StatusConfirmed,
	domain.StatusFixed,
}

var notes = []string{
	"",
	"Near the bus stop",
	"Water-filled after rain",
	"Edge of the lane, hard to see at night",
	"Reported by multiple drivers",
}

func randomMeasure(max float64) *float64 {
	v := float64(int(rand.Float64()*max*10)) / 10
	return &v
}

// GenerateRandomPothole 在中心点附近约 5 公里范围内生成一个坑洞
func GenerateRandomPothole(centerLat, centerLng float64) *domain.Pothole {
	status := statuses[rand.Intn(len(statuses))]
	depth := randomMeasure(8)

	return &domain.Pothole{
		Lat:      centerLat + (rand.Float64()-0.5)*0.09,
		Lng:      centerLng + (rand.Float64()-0.5)*0.09,
		Width:    randomMeasure(150),
		Depth:    depth,
		Area:     randomMeasure(2),
		Severity: domain.SeverityForCreate(depth, string(status)),
		Status:   status,
		Notes:    notes[rand.Intn(len(notes))],
	}
}
