package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gametracker/internal/database"
)

type UserService struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(user *database.User) error {
	result := s.db.Create(user)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *UserService) first(query string, args ...any) (*database.User, error) {
	var user database.User
	result := s.db.First(&user, append([]any{query}, args...)...)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *UserService) GetByID(id uuid.UUID) (*database.User, error) {
	return s.first("id = ?", id)
}

func (s *UserService) GetByHandle(handle string) (*database.User, error) {
	return s.first("handle = ?", handle)
}

func (s *UserService) GetByEmail(email string) (*database.User, error) {
	return s.first("email = ?", strings.ToLower(email))
}

func (s *UserService) GetByGoogleID(googleID string) (*database.User, error) {
	return s.first("google_id = ?", googleID)
}

func (s *UserService) GetByVerificationToken(token string) (*database.User, error) {
	return s.first("verification_token = ? AND verification_token_expires > now()", token)
}

func (s *UserService) GetByResetToken(token string) (*database.User, error) {
	return s.first("reset_password_token = ? AND reset_password_expires > now()", token)
}

// RecordFailedLogin applies the lockout policy as one conditional update so
// concurrent failures from the same account cannot lose increments: a
// previously expired lock resets the counter to 1 and clears the lock,
// otherwise the counter increments and crossing the threshold while
// unlocked arms the lock.
func (s *UserService) RecordFailedLogin(id uuid.UUID) error {
	return s.db.Exec(`
		UPDATE account.user SET
			failed_login_count = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= now() THEN 1
				ELSE failed_login_count + 1
			END,
			lock_until = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= now() THEN NULL
				WHEN lock_until IS NULL AND failed_login_count + 1 >= ? THEN now() + make_interval(secs => ?)
				ELSE lock_until
			END
		WHERE id = ?`,
		MaxFailedLogins, LockDuration.Seconds(), id).Error
}

func (s *UserService) RecordLogin(id uuid.UUID, refreshTokenHash string) error {
	return s.db.Exec(
		"UPDATE account.user SET failed_login_count = 0, lock_until = NULL, last_login = now(), refresh_token_hash = ? WHERE id = ?",
		refreshTokenHash, id).Error
}

func (s *UserService) Unlock(id uuid.UUID) error {
	return s.db.Exec(
		"UPDATE account.user SET failed_login_count = 0, lock_until = NULL WHERE id = ?",
		id).Error
}

func (s *UserService) SetRefreshTokenHash(id uuid.UUID, refreshTokenHash string) error {
	return s.db.Exec(
		"UPDATE account.user SET refresh_token_hash = ? WHERE id = ?",
		refreshTokenHash, id).Error
}

func (s *UserService) ClearRefreshToken(id uuid.UUID) error {
	return s.db.Exec(
		"UPDATE account.user SET refresh_token_hash = NULL WHERE id = ?",
		id).Error
}

func (s *UserService) SetVerificationToken(id uuid.UUID, token string, expires time.Time) error {
	return s.db.Exec(
		"UPDATE account.user SET verification_token = ?, verification_token_expires = ? WHERE id = ?",
		token, expires, id).Error
}

// MarkVerified clears the token together with its expiry; the pair is never
// half-set.
func (s *UserService) MarkVerified(id uuid.UUID) error {
	return s.db.Exec(
		"UPDATE account.user SET is_verified = true, verification_token = NULL, verification_token_expires = NULL WHERE id = ?",
		id).Error
}

func (s *UserService) LinkGoogle(id uuid.UUID, googleID string, avatar *string) error {
	return s.db.Exec(
		"UPDATE account.user SET google_id = ?, avatar = COALESCE(?, avatar), is_verified = true WHERE id = ?",
		googleID, avatar, id).Error
}

func (s *UserService) SetResetToken(id uuid.UUID, token string, expires time.Time) error {
	return s.db.Exec(
		"UPDATE account.user SET reset_password_token = ?, reset_password_expires = ? WHERE id = ?",
		token, expires, id).Error
}

// ResetPassword also drops the stored refresh digest: a password reset
// invalidates every live session.
func (s *UserService) ResetPassword(id uuid.UUID, passwordHash string) error {
	return s.db.Exec(
		"UPDATE account.user SET password_hash = ?, reset_password_token = NULL, reset_password_expires = NULL, refresh_token_hash = NULL WHERE id = ?",
		passwordHash, id).Error
}
