package handler

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/repository"
	"github.com/stretchr/testify/mock"
)

// memStore 是 Store 与 userid.Counter 的内存实现，总是返回副本
type memStore struct {
	mu        sync.Mutex
	clock     time.Time
	users     []*domain.User
	potholes  []*domain.Pothole
	sequences map[domain.Role]int64
}

func newMemStore() *memStore {
	return &memStore{
		clock:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		sequences: make(map[domain.Role]int64),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	return &cp
}

func copyPothole(p *domain.Pothole) *domain.Pothole {
	cp := *p
	return &cp
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (s *memStore) NextUserSequence(ctx context.Context, role domain.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[role]++
	return s.sequences[role], nil
}

func (s *memStore) conflict(user *domain.User) error {
	for _, u := range s.users {
		if u.ID == user.ID {
			continue
		}
		if u.Email == user.Email {
			return uniqueViolation(repository.ConstraintUsersEmail)
		}
		if u.UserID == user.UserID {
			return uniqueViolation(repository.ConstraintUsersUserID)
		}
	}
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := s.conflict(user); err != nil {
		return err
	}
	user.CreatedAt = s.tick()
	s.users = append(s.users, copyUser(user))
	return nil
}

func (s *memStore) findUser(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return u.ID == id })
}

func (s *memStore) GetUserByUserID(ctx context.Context, userID string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return u.UserID == userID })
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return u.Email == email })
}

func (s *memStore) GetAllUsers(ctx context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	return users, nil
}

func (s *memStore) SearchUsers(ctx context.Context, query string) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*domain.User, 0)
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Name), strings.ToLower(query)) || u.UserID == strings.ToUpper(query) {
			users = append(users, copyUser(u))
		}
	}
	return users, nil
}

func (s *memStore) UpdateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.users {
		if u.ID != user.ID {
			continue
		}
		if err := s.conflict(user); err != nil {
			return err
		}
		user.UserID = u.UserID
		user.CreatedAt = u.CreatedAt
		s.users[i] = copyUser(user)
		return nil
	}
	return sql.ErrNoRows
}

func (s *memStore) deleteUser(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.users {
		if match(u) {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) DeleteUserByUserID(ctx context.Context, userID string) (*domain.User, error) {
	return s.deleteUser(func(u *domain.User) bool { return u.UserID == userID })
}

func (s *memStore) DeleteUserByName(ctx context.Context, name string) (*domain.User, error) {
	return s.deleteUser(func(u *domain.User) bool { return strings.EqualFold(u.Name, name) })
}

func (s *memStore) CreatePothole(ctx context.Context, p *domain.Pothole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Timestamp = s.tick()
	s.potholes = append(s.potholes, copyPothole(p))
	return nil
}

func (s *memStore) GetPotholeByID(ctx context.Context, id uuid.UUID) (*domain.Pothole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.potholes {
		if p.ID == id {
			return copyPothole(p), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) GetAllPotholes(ctx context.Context) ([]*domain.Pothole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 按时间倒序
	potholes := make([]*domain.Pothole, 0, len(s.potholes))
	for i := len(s.potholes) - 1; i >= 0; i-- {
		potholes = append(potholes, copyPothole(s.potholes[i]))
	}
	return potholes, nil
}

func (s *memStore) UpdatePothole(ctx context.Context, p *domain.Pothole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.potholes {
		if existing.ID == p.ID {
			s.potholes[i] = copyPothole(p)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *memStore) DeletePothole(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.potholes {
		if p.ID == id {
			s.potholes = append(s.potholes[:i], s.potholes[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newMemRevoker() *memRevoker {
	return &memRevoker{revoked: make(map[string]time.Duration)}
}

func (r *memRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.revoked[tokenID] = ttl
	return nil
}

func (r *memRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[tokenID]
	return ok, nil
}

var errRedisDown = errors.New("redis: connection refused")

type MockMailPublisher struct {
	mock.Mock
}

func (m *MockMailPublisher) Publish(ctx context.Context, msg domain.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
