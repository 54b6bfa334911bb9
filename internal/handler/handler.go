package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/config"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByUserID(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetAllUsers(ctx context.Context) ([]*domain.User, error)
	SearchUsers(ctx context.Context, query string) ([]*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUserByUserID(ctx context.Context, userID string) (*domain.User, error)
	DeleteUserByName(ctx context.Context, name string) (*domain.User, error)
}

type PotholeStore interface {
	CreatePothole(ctx context.Context, p *domain.Pothole) error
	GetPotholeByID(ctx context.Context, id uuid.UUID) (*domain.Pothole, error)
	GetAllPotholes(ctx context.Context) ([]*domain.Pothole, error)
	UpdatePothole(ctx context.Context, p *domain.Pothole) error
	DeletePothole(ctx context.Context, id uuid.UUID) error
}

// Store 由 *repository.Repository 实现
type Store interface {
	UserStore
	PotholeStore
}

type IDAllocator interface {
	Assign(ctx context.Context, user *domain.User) error
}

type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type MailPublisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

type Handler struct {
	validate   *validator.Validate
	translator ut.Translator
	config     *config.Config
	store      Store
	allocator  IDAllocator
	tokens     *auth.TokenService
	revoker    TokenRevoker  // 可以为 nil，表示未配置 redis
	mail       MailPublisher // 可以为 nil，表示未配置 rabbitmq

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store Store, allocator IDAllocator, tokens *auth.TokenService, revoker TokenRevoker, mail MailPublisher) (*Handler, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		translator: trans,
		config:     cfg,
		store:      store,
		allocator:  allocator,
		tokens:     tokens,
		revoker:    revoker,
		mail:       mail,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h.Mux.Route("/api/potholes", func(r chi.Router) {
		r.Get("/", h.GetAllPotholes)
		r.With(h.protect()).Post("/", h.CreatePothole)
		r.Route("/{id}", func(r chi.Router) {
			r.With(h.potholeInfo).Get("/", h.GetPothole)
			r.With(h.protect(), h.potholeInfo).Put("/", h.UpdatePothole)
			r.With(h.protect(domain.RoleTechnician, domain.RoleAdmin)).Delete("/", h.DeletePothole)
		})
	})

	h.Mux.Route("/api/users", func(r chi.Router) {
		r.With(h.identify).Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(h.auth).Post("/logout", h.Logout)
		r.Route("/me", func(r chi.Router) {
			r.Use(h.auth)
			r.Use(h.myInfo)

			r.Get("/", h.GetMyInfo)
			r.Put("/password", h.UpdateMyPassword)
		})

		r.With(h.protect(domain.RoleAdmin)).Get("/", h.GetAllUsers)
		r.With(h.protect(domain.RoleAdmin)).Get("/search", h.SearchUsers)
		r.With(h.protect(domain.RoleAdmin)).Delete("/name/{name}", h.DeleteUserByName)
		r.Route("/{userId}", func(r chi.Router) {
			r.With(h.protect(), h.userInfo).Put("/", h.UpdateUser)
			r.With(h.protect(domain.RoleAdmin)).Delete("/", h.DeleteUser)
		})
	})
}

func (h *Handler) enforced() bool {
	return h.config.Access.Policy == config.AccessPolicyEnforced
}
