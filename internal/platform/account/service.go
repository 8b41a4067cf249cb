package account

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"gametracker/internal/auth"
	"gametracker/internal/database"
	"gametracker/internal/mail"
	"gametracker/internal/platform/google"
	"gametracker/internal/platform/user"
	"gametracker/pkg/utils"
)

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrDuplicateHandle       = errors.New("handle already in use")
	ErrAlreadyVerified       = errors.New("account already verified")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)

// ErrNotFound is shared with the store; resend-verification reports it,
// reset-request deliberately does not.
var ErrNotFound = user.ErrNotFound

const (
	VerificationTokenTTL = 24 * time.Hour
	ResetTokenTTL        = time.Hour

	HandleMinLen   = 3
	HandleMaxLen   = 30
	PasswordMinLen = 6
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidationError marks malformed or missing input. Always recoverable
// client-side; handlers map it to a 400.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

type Service struct {
	store    user.Store
	mailer   mail.Mailer
	verifier google.Verifier
}

func NewService(store user.Store, mailer mail.Mailer, verifier google.Verifier) *Service {
	return &Service{store: store, mailer: mailer, verifier: verifier}
}

type RegisterInput struct {
	Handle          string `json:"handle" validate:"required,min=3,max=30"`
	DisplayName     string `json:"display_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// Register creates an unverified account and sends the verification mail.
// Delivery failure does not fail the registration; it is logged and the
// user can request a resend.
func (s *Service) Register(input RegisterInput) (*database.User, error) {
	if input.Handle == "" || input.DisplayName == "" || input.Email == "" ||
		input.Password == "" || input.ConfirmPassword == "" {
		return nil, ValidationError("all fields are required")
	}
	if !emailPattern.MatchString(input.Email) {
		return nil, ValidationError("invalid email")
	}
	if len(input.Handle) < HandleMinLen || len(input.Handle) > HandleMaxLen {
		return nil, ValidationError("handle must be between 3 and 30 characters")
	}
	if input.Password != input.ConfirmPassword {
		return nil, ValidationError("passwords do not match")
	}
	if len(input.Password) < PasswordMinLen {
		return nil, ValidationError("password must be at least 6 characters")
	}

	if _, err := s.store.GetByEmail(input.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.GetByHandle(input.Handle); err == nil {
		return nil, ErrDuplicateHandle
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	passwordHash := utils.HashPassword(input.Password)
	verificationToken := auth.GenerateOpaqueToken()
	expires := time.Now().Add(VerificationTokenTTL)

	newUser := database.User{
		Handle:                   input.Handle,
		DisplayName:              input.DisplayName,
		Email:                    strings.ToLower(input.Email),
		PasswordHash:             &passwordHash,
		IsVerified:               false,
		VerificationToken:        &verificationToken,
		VerificationTokenExpires: &expires,
	}
	if err := s.store.Create(&newUser); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationEmail(newUser.Email, newUser.DisplayName, verificationToken); err != nil {
		log.Warnf("verification mail to %s failed: %v", newUser.Email, err)
	}

	return &newUser, nil
}

// VerifyEmail consumes a verification token. Token and expiry are cleared
// together in the same update that sets the verified flag.
func (s *Service) VerifyEmail(token string) error {
	account, err := s.store.GetByVerificationToken(token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	if err := s.store.MarkVerified(account.ID); err != nil {
		return err
	}

	if err := s.mailer.SendWelcomeEmail(account.Email, account.DisplayName); err != nil {
		log.Warnf("welcome mail to %s failed: %v", account.Email, err)
	}

	return nil
}

// ResendVerification issues a fresh 24h token. Unlike registration, a
// delivery failure here is the whole point of the call, so it is returned.
func (s *Service) ResendVerification(email string) error {
	account, err := s.store.GetByEmail(email)
	if err != nil {
		return err
	}
	if account.IsVerified {
		return ErrAlreadyVerified
	}

	verificationToken := auth.GenerateOpaqueToken()
	expires := time.Now().Add(VerificationTokenTTL)
	if err := s.store.SetVerificationToken(account.ID, verificationToken, expires); err != nil {
		return err
	}

	return s.mailer.SendVerificationEmail(account.Email, account.DisplayName, verificationToken)
}

// GoogleSignIn resolves a Google credential into a local account, linking
// an existing record or creating a pre-verified one. Returns the account
// and whether it was created.
func (s *Service) GoogleSignIn(ctx context.Context, credential string) (*database.User, bool, error) {
	identity, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, false, err
	}

	account, err := s.store.GetByGoogleID(identity.GoogleID)
	if errors.Is(err, user.ErrNotFound) {
		account, err = s.store.GetByEmail(identity.Email)
	}
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, false, err
	}

	if account != nil {
		if account.GoogleID == nil {
			if err := s.store.LinkGoogle(account.ID, identity.GoogleID, identity.Picture); err != nil {
				return nil, false, err
			}
			account.GoogleID = &identity.GoogleID
			if identity.Picture != nil {
				account.Avatar = identity.Picture
			}
			account.IsVerified = true
		}
		return account, false, nil
	}

	handle, err := s.availableHandle(identity.Email)
	if err != nil {
		return nil, false, err
	}

	newUser := database.User{
		Handle:      handle,
		DisplayName: identity.Name,
		Email:       strings.ToLower(identity.Email),
		GoogleID:    &identity.GoogleID,
		Avatar:      identity.Picture,
		IsVerified:  true, // Google already verified the address
	}
	if err := s.store.Create(&newUser); err != nil {
		return nil, false, err
	}

	if err := s.mailer.SendWelcomeEmail(newUser.Email, newUser.DisplayName); err != nil {
		log.Warnf("welcome mail to %s failed: %v", newUser.Email, err)
	}

	return &newUser, true, nil
}

// availableHandle derives a handle from the email local part plus a random
// numeric suffix, retrying on collision. The local part is truncated so the
// candidate never exceeds HandleMaxLen; the three-digit suffix keeps even a
// one-character local part above HandleMinLen.
func (s *Service) availableHandle(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	if len(local) > HandleMaxLen-3 {
		local = local[:HandleMaxLen-3]
	}

	for i := 0; i < 10; i++ {
		candidate := local + utils.GenerateNumericSuffix()
		_, err := s.store.GetByHandle(candidate)
		if errors.Is(err, user.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}

	if len(local) > HandleMaxLen-8 {
		local = local[:HandleMaxLen-8]
	}
	return local + auth.GenerateOpaqueToken()[:8], nil
}

// RequestPasswordReset never tells the caller whether the email exists.
// Unknown addresses, Google-only accounts and delivery failures all end in
// the same generic success; the handler owns that response shape.
func (s *Service) RequestPasswordReset(email string) error {
	account, err := s.store.GetByEmail(email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return err
	}

	if !account.HasPassword() {
		log.Infof("password reset skipped for google-only account %s", account.ID)
		return nil
	}

	resetToken := auth.GenerateOpaqueToken()
	expires := time.Now().Add(ResetTokenTTL)
	if err := s.store.SetResetToken(account.ID, resetToken, expires); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetEmail(account.Email, account.DisplayName, resetToken); err != nil {
		log.Warnf("reset mail to %s failed: %v", account.Email, err)
	}

	return nil
}

// ResetPassword consumes a reset token, stores the new hash and drops the
// refresh digest so every device has to log in again.
func (s *Service) ResetPassword(token, newPassword, confirmPassword string) error {
	if newPassword == "" || confirmPassword == "" {
		return ValidationError("password and confirmation are required")
	}
	if newPassword != confirmPassword {
		return ValidationError("passwords do not match")
	}
	if len(newPassword) < PasswordMinLen {
		return ValidationError("password must be at least 6 characters")
	}

	account, err := s.store.GetByResetToken(token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	return s.store.ResetPassword(account.ID, utils.HashPassword(newPassword))
}
