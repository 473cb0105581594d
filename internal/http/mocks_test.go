package http

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/repository"
	"hospital-auth/internal/service"
)

// Repos en memoria para levantar el stack HTTP completo sin Postgres.

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (m *memUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (user.Email != "" && u.Email == user.Email) ||
			(user.Phone != "" && u.Phone == user.Phone) ||
			(user.ProviderID != "" && u.ProviderID == user.ProviderID) {
			return repository.ErrDuplicateUser
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *memUserRepo) GetByKey(_ context.Context, key domain.LookupKey) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		switch key.Kind {
		case domain.LookupByEmail:
			if u.Email != "" && u.Email == key.Email {
				return u, nil
			}
		case domain.LookupByPhone:
			if u.Phone != "" && u.Phone == key.Phone {
				return u, nil
			}
		case domain.LookupByProvider:
			if u.ProviderID != "" && u.ProviderID == key.ProviderID {
				return u, nil
			}
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id string, name, phone, avatar *string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	if name != nil {
		user.Name = *name
	}
	if phone != nil {
		user.Phone = *phone
	}
	if avatar != nil {
		user.Avatar = *avatar
	}
	m.users[id] = user
	return user, nil
}

func (m *memUserRepo) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.EmailVerifiedAt = &at
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SetPhoneVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PhoneVerifiedAt = &at
	m.users[id] = user
	return nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *memUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.Role = role
	m.users[id] = user
	return user, nil
}

func (m *memUserRepo) SoftDelete(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.IsDeleted = true
	m.users[id] = user
	return user, nil
}

func (m *memUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []domain.User
	for _, u := range m.users {
		if !u.IsDeleted {
			users = append(users, u)
		}
	}
	return users, nil
}

type memCodeRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.VerificationToken
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{tokens: make(map[string]domain.VerificationToken)}
}

func (m *memCodeRepo) Create(_ context.Context, token domain.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *memCodeRepo) FindValid(_ context.Context, userID string, purpose domain.Purpose, now time.Time) (domain.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.Purpose == purpose && t.ExpiresAt.After(now) {
			return t, nil
		}
	}
	return domain.VerificationToken{}, pgx.ErrNoRows
}

func (m *memCodeRepo) DeleteExpired(_ context.Context, userID string, purpose domain.Purpose, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID && t.Purpose == purpose && !t.ExpiresAt.After(now) {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *memCodeRepo) Consume(_ context.Context, userID, code string, purpose domain.Purpose, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID && t.Code == code && t.Purpose == purpose && t.ExpiresAt.After(now) {
			delete(m.tokens, id)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions []domain.Session
}

func (m *memSessionRepo) Create(_ context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *memSessionRepo) DeleteExpired(_ context.Context, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.UserID != userID || s.ExpiresAt.After(now) {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	return nil
}

// capturingSender registra el último código despachado por canal.
type capturingSender struct {
	mu    sync.Mutex
	last  string
	reset string
}

func (s *capturingSender) SendVerificationCode(_ context.Context, _, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = code
	return nil
}

func (s *capturingSender) SendPasswordResetCode(_ context.Context, _, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = code
	return nil
}

func (s *capturingSender) SendVerificationSuccess(_ context.Context, _ string) error {
	return nil
}

func (s *capturingSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *capturingSender) lastReset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset
}

type testStack struct {
	router *gin.Engine
	tokens *service.TokenService
	auth   *service.AuthService
	users  *memUserRepo
	email  *capturingSender
	sms    *capturingSender
}

// newTestStack arma el router completo sobre repos en memoria.
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := service.NewTokenService("secret", "15m")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	users := newMemUserRepo()
	email := &capturingSender{}
	sms := &capturingSender{}
	logger := zap.NewNop()
	auth := service.NewAuthService(
		logger,
		users,
		&memSessionRepo{},
		service.NewCodeService(newMemCodeRepo()),
		tokens,
		email,
		sms,
		nil,
	)
	router := NewRouter(logger, tokens, NewAuthHandler(logger, auth), NewAdminHandler(logger, auth))
	return &testStack{
		router: router,
		tokens: tokens,
		auth:   auth,
		users:  users,
		email:  email,
		sms:    sms,
	}
}
