package user

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"gametracker/internal/database"
)

var ErrNotFound = errors.New("user not found")

const (
	// Five failed password checks lock the account for two hours. Fixed
	// duration, no escalation.
	MaxFailedLogins = 5
	LockDuration    = 2 * time.Hour
)

// Store is the credential store consumed by the account and session
// services. Every multi-field mutation is a single atomic update; nothing
// here does read-modify-write on the lockout counter.
type Store interface {
	Create(user *database.User) error
	GetByID(id uuid.UUID) (*database.User, error)
	GetByHandle(handle string) (*database.User, error)
	GetByEmail(email string) (*database.User, error)
	GetByGoogleID(googleID string) (*database.User, error)
	GetByVerificationToken(token string) (*database.User, error)
	GetByResetToken(token string) (*database.User, error)

	RecordFailedLogin(id uuid.UUID) error
	RecordLogin(id uuid.UUID, refreshTokenHash string) error
	Unlock(id uuid.UUID) error
	SetRefreshTokenHash(id uuid.UUID, refreshTokenHash string) error
	ClearRefreshToken(id uuid.UUID) error

	SetVerificationToken(id uuid.UUID, token string, expires time.Time) error
	MarkVerified(id uuid.UUID) error
	LinkGoogle(id uuid.UUID, googleID string, avatar *string) error

	SetResetToken(id uuid.UUID, token string, expires time.Time) error
	ResetPassword(id uuid.UUID, passwordHash string) error
}
