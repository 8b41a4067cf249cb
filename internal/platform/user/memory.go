package user

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gametracker/internal/database"
)

var ErrDuplicate = errors.New("duplicate key")

// MemoryStore is an in-memory Store with the same conditional-update
// semantics as the Postgres implementation. Used by service tests and
// throwaway local runs; not safe for anything else.
type MemoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*database.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]*database.User)}
}

func (m *MemoryStore) Create(u *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Handle == u.Handle || existing.Email == u.Email {
			return ErrDuplicate
		}
		if existing.GoogleID != nil && u.GoogleID != nil && *existing.GoogleID == *u.GoogleID {
			return ErrDuplicate
		}
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	clone := *u
	m.users[u.ID] = &clone
	return nil
}

func (m *MemoryStore) find(match func(*database.User) bool) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetByID(id uuid.UUID) (*database.User, error) {
	return m.find(func(u *database.User) bool { return u.ID == id })
}

func (m *MemoryStore) GetByHandle(handle string) (*database.User, error) {
	return m.find(func(u *database.User) bool { return u.Handle == handle })
}

func (m *MemoryStore) GetByEmail(email string) (*database.User, error) {
	email = strings.ToLower(email)
	return m.find(func(u *database.User) bool { return u.Email == email })
}

func (m *MemoryStore) GetByGoogleID(googleID string) (*database.User, error) {
	return m.find(func(u *database.User) bool {
		return u.GoogleID != nil && *u.GoogleID == googleID
	})
}

func (m *MemoryStore) GetByVerificationToken(token string) (*database.User, error) {
	now := time.Now()
	return m.find(func(u *database.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token &&
			u.VerificationTokenExpires != nil && u.VerificationTokenExpires.After(now)
	})
}

func (m *MemoryStore) GetByResetToken(token string) (*database.User, error) {
	now := time.Now()
	return m.find(func(u *database.User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == token &&
			u.ResetPasswordExpires != nil && u.ResetPasswordExpires.After(now)
	})
}

func (m *MemoryStore) update(id uuid.UUID, mutate func(*database.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	mutate(u)
	return nil
}

func (m *MemoryStore) RecordFailedLogin(id uuid.UUID) error {
	return m.update(id, func(u *database.User) {
		now := time.Now()
		if u.LockUntil != nil && !u.LockUntil.After(now) {
			u.FailedLoginCount = 1
			u.LockUntil = nil
			return
		}
		u.FailedLoginCount++
		if u.LockUntil == nil && u.FailedLoginCount >= MaxFailedLogins {
			until := now.Add(LockDuration)
			u.LockUntil = &until
		}
	})
}

func (m *MemoryStore) RecordLogin(id uuid.UUID, refreshTokenHash string) error {
	return m.update(id, func(u *database.User) {
		now := time.Now()
		u.FailedLoginCount = 0
		u.LockUntil = nil
		u.LastLogin = &now
		u.RefreshTokenHash = &refreshTokenHash
	})
}

func (m *MemoryStore) Unlock(id uuid.UUID) error {
	return m.update(id, func(u *database.User) {
		u.FailedLoginCount = 0
		u.LockUntil = nil
	})
}

func (m *MemoryStore) SetRefreshTokenHash(id uuid.UUID, refreshTokenHash string) error {
	return m.update(id, func(u *database.User) {
		u.RefreshTokenHash = &refreshTokenHash
	})
}

func (m *MemoryStore) ClearRefreshToken(id uuid.UUID) error {
	return m.update(id, func(u *database.User) {
		u.RefreshTokenHash = nil
	})
}

func (m *MemoryStore) SetVerificationToken(id uuid.UUID, token string, expires time.Time) error {
	return m.update(id, func(u *database.User) {
		u.VerificationToken = &token
		u.VerificationTokenExpires = &expires
	})
}

func (m *MemoryStore) MarkVerified(id uuid.UUID) error {
	return m.update(id, func(u *database.User) {
		u.IsVerified = true
		u.VerificationToken = nil
		u.VerificationTokenExpires = nil
	})
}

func (m *MemoryStore) LinkGoogle(id uuid.UUID, googleID string, avatar *string) error {
	return m.update(id, func(u *database.User) {
		u.GoogleID = &googleID
		if avatar != nil {
			u.Avatar = avatar
		}
		u.IsVerified = true
	})
}

func (m *MemoryStore) SetResetToken(id uuid.UUID, token string, expires time.Time) error {
	return m.update(id, func(u *database.User) {
		u.ResetPasswordToken = &token
		u.ResetPasswordExpires = &expires
	})
}

func (m *MemoryStore) ResetPassword(id uuid.UUID, passwordHash string) error {
	return m.update(id, func(u *database.User) {
		u.PasswordHash = &passwordHash
		u.ResetPasswordToken = nil
		u.ResetPasswordExpires = nil
		u.RefreshTokenHash = nil
	})
}
