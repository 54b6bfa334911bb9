package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/config"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	Message string             `json:"message"`
	Token   string             `json:"token"`
	User    domain.UserSummary `json:"user"`
}

func registerBody(name, email, role string) map[string]any {
	body := map[string]any{
		"name":     name,
		"email":    email,
		"password": "password123",
	}
	if role != "" {
		body["role"] = role
	}
	return body
}

func TestRegisterAssignsSequentialUserIDs(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	tests := []struct {
		body   map[string]any
		userID string
		role   domain.Role
	}{
		{registerBody("Amal Perera", "amal@example.com", ""), "DRV0001", domain.RoleDriver},
		{registerBody("Nimal Silva", "nimal@example.com", "driver"), "DRV0002", domain.RoleDriver},
		{registerBody("Tina Fernando", "tina@example.com", "technician"), "TECH0001", domain.RoleTechnician},
		{registerBody("Ada Bandara", "ada@example.com", "admin"), "ADM0001", domain.RoleAdmin},
		{registerBody("Kasun Herath", "kasun@example.com", "driver"), "DRV0003", domain.RoleDriver},
	}

	for _, tt := range tests {
		rec := e.do(t, http.MethodPost, "/api/users/register", tt.body, "")
		requireStatus(t, rec, http.StatusCreated)

		resp := decode[authResponse](t, rec)
		assert.Equal(t, "User registered successfully", resp.Message)
		assert.Equal(t, tt.userID, resp.User.UserID)
		assert.Equal(t, tt.role, resp.User.Role)
		assert.Equal(t, tt.body["email"], resp.User.Email)
		assert.NotContains(t, rec.Body.String(), "password")
	}
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	rec := e.do(t, http.MethodPost, "/api/users/register", registerBody("Amal Perera", "Amal@Example.com ", ""), "")
	requireStatus(t, rec, http.StatusCreated)

	user, err := e.store.GetUserByEmail(context.Background(), "amal@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	rec := e.do(t, http.MethodPost, "/api/users/register", registerBody("Amal Perera", "amal@example.com", ""), "")
	requireStatus(t, rec, http.StatusCreated)

	rec = e.do(t, http.MethodPost, "/api/users/register", registerBody("Someone Else", "AMAL@example.com", ""), "")
	requireError(t, rec, http.StatusBadRequest, "Email already registered")
	assert.Equal(t, 1, e.store.userCount())

	// 被拒绝的注册不消耗序号
	rec = e.do(t, http.MethodPost, "/api/users/register", registerBody("Nimal Silva", "nimal@example.com", ""), "")
	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, "DRV0002", decode[authResponse](t, rec).User.UserID)
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	tests := []struct {
		name   string
		body   any
		detail string
	}{
		{name: "missing name", body: map[string]any{"email": "a@example.com", "password": "password123"}},
		{name: "short name", body: map[string]any{"name": "A", "email": "a@example.com", "password": "password123"}},
		{name: "invalid email", body: map[string]any{"name": "Amal", "email": "not-an-email", "password": "password123"}, detail: "Please enter a valid email address"},
		{name: "short password", body: map[string]any{"name": "Amal", "email": "a@example.com", "password": "short"}},
		{name: "invalid phone", body: map[string]any{"name": "Amal", "email": "a@example.com", "password": "password123", "phone": "12-34"}, detail: "Please enter a valid phone number"},
		{name: "unknown role", body: map[string]any{"name": "Amal", "email": "a@example.com", "password": "password123", "role": "mayor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/users/register", tt.body, "")
			resp := requireError(t, rec, http.StatusBadRequest, "Validation failed")
			assert.NotEmpty(t, resp.Details)
			if tt.detail != "" {
				assert.Contains(t, resp.Details, tt.detail)
			}
		})
	}

	assert.Zero(t, e.store.userCount())
}

func TestRegisterMalformedBody(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	rec := e.do(t, http.MethodPost, "/api/users/register", `{"name":`, "")
	requireStatus(t, rec, http.StatusBadRequest)
	assert.True(t, strings.HasPrefix(decode[ErrorResponse](t, rec).Error, "invalid request body"))
}

func TestRegisterPublishesWelcomeMail(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	rec := e.do(t, http.MethodPost, "/api/users/register", registerBody("Amal Perera", "amal@example.com", ""), "")
	requireStatus(t, rec, http.StatusCreated)

	e.mail.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(msg domain.MailMessage) bool {
		data, ok := msg.Data.(domain.WelcomeMailData)
		return msg.Type == domain.MailTypeWelcome &&
			msg.To == "amal@example.com" &&
			ok && data.UserID == "DRV0001"
	}))
}

func TestRegisterSucceedsWhenMailFails(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)
	e.mail.ExpectedCalls = nil
	e.mail.On("Publish", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	rec := e.do(t, http.MethodPost, "/api/users/register", registerBody("Amal Perera", "amal@example.com", ""), "")
	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, 1, e.store.userCount())
	e.mail.AssertNumberOfCalls(t, "Publish", 1)
}

func TestRegisterPrivilegedRoleWhenEnforced(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyEnforced)
	admin := e.addUser(t, "Ada Bandara", "ada@example.com", "password123", domain.RoleAdmin)
	driver := e.addUser(t, "Amal Perera", "amal@example.com", "password123", domain.RoleDriver)

	rec := e.do(t, http.MethodPost, "/api/users/register", registerBody("Tina Fernando", "tina@example.com", "technician"), "")
	requireError(t, rec, http.StatusForbidden, "Only admins can register technician or admin accounts")

	rec = e.do(t, http.MethodPost, "/api/users/register", registerBody("Tina Fernando", "tina@example.com", "technician"), e.tokenFor(t, driver))
	requireStatus(t, rec, http.StatusForbidden)

	rec = e.do(t, http.MethodPost, "/api/users/register", registerBody("Tina Fernando", "tina@example.com", "technician"), e.tokenFor(t, admin))
	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, "TECH0001", decode[authResponse](t, rec).User.UserID)

	// 司机账户仍然可以自助注册
	rec = e.do(t, http.MethodPost, "/api/users/register", registerBody("Nimal Silva", "nimal@example.com", ""), "")
	requireStatus(t, rec, http.StatusCreated)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)
	user := e.addUser(t, "Amal Perera", "amal@example.com", "password123", domain.RoleTechnician)

	t.Run("success", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "Amal@Example.com", "password": "password123"}, "")
		requireStatus(t, rec, http.StatusOK)

		resp := decode[authResponse](t, rec)
		assert.Equal(t, "Login successful", resp.Message)
		assert.Equal(t, user.UserID, resp.User.UserID)
		assert.NotContains(t, rec.Body.String(), "password")

		claims, err := e.tokens.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.Subject)
		assert.Equal(t, "technician", claims.Role)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "nobody@example.com", "password": "password123"}, "")
		requireError(t, rec, http.StatusNotFound, "User not found")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "amal@example.com", "password": "password124"}, "")
		requireError(t, rec, http.StatusUnauthorized, "Invalid credentials")
	})

	t.Run("missing password", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "amal@example.com"}, "")
		requireError(t, rec, http.StatusBadRequest, "Validation failed")
	})
}

func TestLoginUniformErrors(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)
	e.cfg.Auth.UniformLoginErrors = true
	e.addUser(t, "Amal Perera", "amal@example.com", "password123", domain.RoleDriver)

	rec := e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "nobody@example.com", "password": "password123"}, "")
	requireError(t, rec, http.StatusUnauthorized, "Invalid credentials")

	rec = e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "amal@example.com", "password": "nope"}, "")
	requireError(t, rec, http.StatusUnauthorized, "Invalid credentials")
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyEnforced)
	admin := e.addUser(t, "Ada Bandara", "ada@example.com", "password123", domain.RoleAdmin)
	token := e.tokenFor(t, admin)

	rec := e.do(t, http.MethodGet, "/api/users", nil, token)
	requireStatus(t, rec, http.StatusOK)

	rec = e.do(t, http.MethodPost, "/api/users/logout", nil, token)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "Logout successful", decode[MessageResponse](t, rec).Message)

	claims, err := e.tokens.Verify(token)
	require.NoError(t, err)
	assert.Contains(t, e.revoker.revoked, claims.ID)
	assert.Positive(t, e.revoker.revoked[claims.ID])

	rec = e.do(t, http.MethodGet, "/api/users", nil, token)
	requireError(t, rec, http.StatusForbidden, "Invalid or expired token")

	// 新登录获得的令牌不受影响
	rec = e.do(t, http.MethodGet, "/api/users", nil, e.tokenFor(t, admin))
	requireStatus(t, rec, http.StatusOK)
}

func TestLogoutRequiresToken(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	rec := e.do(t, http.MethodPost, "/api/users/logout", nil, "")
	requireError(t, rec, http.StatusUnauthorized, "Access denied: no token provided")
}

func TestRegisterAndLoginWithLongPassword(t *testing.T) {
	e := newTestEnv(t, config.AccessPolicyOpen)

	for i, password := range []string{
		strings.Repeat("p", 100),
		strings.Repeat("😀", 25),
	} {
		email := fmt.Sprintf("long%d@example.com", i)

		rec := e.do(t, http.MethodPost, "/api/users/register", map[string]any{
			"name":     "Long Password",
			"email":    email,
			"password": password,
		}, "")
		requireStatus(t, rec, http.StatusCreated)

		rec = e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": email, "password": password}, "")
		requireStatus(t, rec, http.StatusOK)
	}

	rec := e.do(t, http.MethodPut, "/api/users/DRV0001", map[string]any{"password": strings.Repeat("q", 100)}, "")
	requireStatus(t, rec, http.StatusOK)

	rec = e.do(t, http.MethodPost, "/api/users/login", map[string]any{"email": "long0@example.com", "password": strings.Repeat("q", 100)}, "")
	requireStatus(t, rec, http.StatusOK)
}
