package session

import (
	"errors"

	"github.com/google/uuid"

	"gametracker/internal/auth"
	"gametracker/internal/database"
	"gametracker/internal/platform/user"
	"gametracker/pkg/utils"
)

var (
	// ErrInvalidCredentials covers both unknown handle and wrong password;
	// login never reveals which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrTokenMismatch      = errors.New("refresh token mismatch")
)

type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// EmailNotVerifiedError carries the address so clients can offer a resend.
type EmailNotVerifiedError struct {
	Email string
}

func (e *EmailNotVerifiedError) Error() string { return "email not verified" }

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Guard is the authentication state machine: login, refresh rotation,
// logout and the lockout policy.
type Guard struct {
	store user.Store
	codec *auth.Codec
}

func NewGuard(store user.Store, codec *auth.Codec) *Guard {
	return &Guard{store: store, codec: codec}
}

// Login order matters: the lock check runs before the password compare so a
// locked account rejects even the correct password, and a failed compare
// feeds the lockout counter.
func (g *Guard) Login(handle, password string) (*database.User, *TokenPair, error) {
	if handle == "" || password == "" {
		return nil, nil, ValidationError("handle and password are required")
	}

	account, err := g.store.GetByHandle(handle)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if account.IsLocked() {
		return nil, nil, ErrAccountLocked
	}

	if !account.HasPassword() || !utils.VerifyPassword(password, *account.PasswordHash) {
		if err := g.store.RecordFailedLogin(account.ID); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrInvalidCredentials
	}

	if !account.IsVerified {
		return nil, nil, &EmailNotVerifiedError{Email: account.Email}
	}

	pair, err := g.Establish(account)
	if err != nil {
		return nil, nil, err
	}

	return account, pair, nil
}

// Establish issues a fresh token pair and records the login in one update:
// counter and lock cleared, last-login stamped, refresh digest stored.
// Also used after a Google sign-in, which bypasses the password path.
func (g *Guard) Establish(account *database.User) (*TokenPair, error) {
	accessToken, refreshToken, err := g.codec.IssuePair(account.ID)
	if err != nil {
		return nil, err
	}

	if err := g.store.RecordLogin(account.ID, auth.HashToken(refreshToken)); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh rotates on use: the presented token must match the stored digest,
// and a successful call overwrites that digest, so a superseded token fails
// with ErrTokenMismatch on its next appearance.
func (g *Guard) Refresh(refreshToken string) (*TokenPair, error) {
	userID, err := g.codec.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, err
	}

	account, err := g.store.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if account.RefreshTokenHash == nil || *account.RefreshTokenHash != auth.HashToken(refreshToken) {
		return nil, ErrTokenMismatch
	}

	accessToken, newRefreshToken, err := g.codec.IssuePair(account.ID)
	if err != nil {
		return nil, err
	}

	if err := g.store.SetRefreshTokenHash(account.ID, auth.HashToken(newRefreshToken)); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

// Logout clears the stored digest unconditionally; calling it again is a
// no-op that also succeeds.
func (g *Guard) Logout(userID uuid.UUID) error {
	return g.store.ClearRefreshToken(userID)
}
