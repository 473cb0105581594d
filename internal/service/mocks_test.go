package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/repository"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usersByID {
		if (user.Email != "" && u.Email == user.Email) ||
			(user.Phone != "" && u.Phone == user.Phone) ||
			(user.ProviderID != "" && u.ProviderID == user.ProviderID) {
			return repository.ErrDuplicateUser
		}
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByKey(_ context.Context, key domain.LookupKey) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usersByID {
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

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, name, phone, avatar *string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
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
	m.usersByID[id] = user
	return user, nil
}

func (m *mockUserRepo) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.EmailVerifiedAt = &at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetPhoneVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PhoneVerifiedAt = &at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.Role = role
	m.usersByID[id] = user
	return user, nil
}

func (m *mockUserRepo) SoftDelete(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.IsDeleted = true
	m.usersByID[id] = user
	return user, nil
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []domain.User
	for _, u := range m.usersByID {
		if !u.IsDeleted {
			users = append(users, u)
		}
	}
	return users, nil
}

type mockCodeRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.VerificationToken
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{tokens: make(map[string]domain.VerificationToken)}
}

func (m *mockCodeRepo) Create(_ context.Context, token domain.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *mockCodeRepo) FindValid(_ context.Context, userID string, purpose domain.Purpose, now time.Time) (domain.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.Purpose == purpose && t.ExpiresAt.After(now) {
			return t, nil
		}
	}
	return domain.VerificationToken{}, pgx.ErrNoRows
}

func (m *mockCodeRepo) DeleteExpired(_ context.Context, userID string, purpose domain.Purpose, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID && t.Purpose == purpose && !t.ExpiresAt.After(now) {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *mockCodeRepo) Consume(_ context.Context, userID, code string, purpose domain.Purpose, now time.Time) error {
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

func (m *mockCodeRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions []domain.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{}
}

func (m *mockSessionRepo) Create(_ context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context, userID string, now time.Time) error {
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

func (m *mockSessionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type recordingEmailSender struct {
	mu        sync.Mutex
	codes     []string
	resets    []string
	successes []string
	fail      bool
}

func (s *recordingEmailSender) SendVerificationCode(_ context.Context, _, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errDispatch
	}
	s.codes = append(s.codes, code)
	return nil
}

func (s *recordingEmailSender) SendPasswordResetCode(_ context.Context, _, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errDispatch
	}
	s.resets = append(s.resets, code)
	return nil
}

func (s *recordingEmailSender) SendVerificationSuccess(_ context.Context, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errDispatch
	}
	s.successes = append(s.successes, to)
	return nil
}

func (s *recordingEmailSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return ""
	}
	return s.codes[len(s.codes)-1]
}

func (s *recordingEmailSender) lastReset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.resets) == 0 {
		return ""
	}
	return s.resets[len(s.resets)-1]
}

type recordingSMSSender struct {
	recordingEmailSender
}

var errDispatch = &dispatchError{}

type dispatchError struct{}

func (e *dispatchError) Error() string { return "dispatch boom" }
