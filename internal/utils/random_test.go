package utils

import (
	"regexp"
	"testing"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomUser(t *testing.T) {
	user, err := GenerateRandomUser("password123", "example.com")
	require.NoError(t, err)

	assert.True(t, user.Role.Valid())
	assert.Regexp(t, regexp.MustCompile(`^\d{10,15}$`), user.Phone)
	assert.Regexp(t, regexp.MustCompile(`@example\.com$`), user.Email)
	assert.Empty(t, user.UserID)

	ok, err := auth.VerifyPassword("password123", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateRandomPothole(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := GenerateRandomPothole(6.9271, 79.8612)

		assert.InDelta(t, 6.9271, p.Lat, 0.05)
		assert.InDelta(t, 79.8612, p.Lng, 0.05)
		require.NotNil(t, p.Depth)
		assert.GreaterOrEqual(t, *p.Depth, 0.0)
		assert.Equal(t, domain.SeverityForCreate(p.Depth, string(p.Status)), p.Severity)
	}
}
