package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gametracker/internal/auth"
	"gametracker/internal/config"
	"gametracker/internal/database"
	"gametracker/internal/mail"
	"gametracker/internal/platform/account"
	"gametracker/internal/platform/google"
	"gametracker/internal/platform/session"
	"gametracker/internal/platform/user"
)

func accountService(c *fiber.Ctx) *account.Service {
	db := c.Locals("db").(*gorm.DB)
	mailer := c.Locals("mailer").(mail.Mailer)
	verifier := c.Locals("google").(google.Verifier)

	return account.NewService(user.NewService(db), mailer, verifier)
}

func sessionGuard(c *fiber.Ctx) *session.Guard {
	cfg := c.Locals("config").(*config.Config)
	db := c.Locals("db").(*gorm.DB)

	codec := auth.NewCodec(cfg.JWTSecret, cfg.JWTRefreshSecret)
	return session.NewGuard(user.NewService(db), codec)
}

// respondAuthError maps the typed service errors onto HTTP responses.
// Unknown errors never leak details.
func respondAuthError(c *fiber.Ctx, err error) error {
	var validationErr account.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": validationErr.Error()})
	}
	var sessionValidationErr session.ValidationError
	if errors.As(err, &sessionValidationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": sessionValidationErr.Error()})
	}
	var notVerified *session.EmailNotVerifiedError
	if errors.As(err, &notVerified) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message":            "Please verify your email before logging in",
			"needs_verification": true,
			"email":              notVerified.Email,
		})
	}

	switch {
	case errors.Is(err, account.ErrDuplicateEmail):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "This email is already registered"})
	case errors.Is(err, account.ErrDuplicateHandle):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "This handle is already in use"})
	case errors.Is(err, account.ErrAlreadyVerified):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "This account is already verified"})
	case errors.Is(err, account.ErrInvalidOrExpiredToken):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid or expired token"})
	case errors.Is(err, session.ErrInvalidCredentials):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid credentials"})
	case errors.Is(err, session.ErrAccountLocked):
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{"message": "Account temporarily locked due to repeated failed logins. Try again later."})
	case errors.Is(err, session.ErrTokenMismatch):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid refresh token"})
	case errors.Is(err, auth.ErrExpiredToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Token expired", "expired": true})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongKind):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
	case errors.Is(err, google.ErrGoogleAuth):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Google authentication failed"})
	case errors.Is(err, user.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
}

func Register(c *fiber.Ctx) error {
	var input account.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	created, err := accountService(c).Register(input)
	if err != nil {
		return respondAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful. Please verify your email to activate your account.",
		"user":    created.Public(),
	})
}

func VerifyEmail(c *fiber.Ctx) error {
	token := c.Params("token")

	if err := accountService(c).VerifyEmail(token); err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Email verified successfully. You can now log in.",
	})
}

func ResendVerification(c *fiber.Ctx) error {
	type ResendInput struct {
		Email string `json:"email" validate:"required,email"`
	}

	var input ResendInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := accountService(c).ResendVerification(input.Email); err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification email resent",
	})
}

func Login(c *fiber.Ctx) error {
	type LoginInput struct {
		Handle   string `json:"handle" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	loggedIn, pair, err := sessionGuard(c).Login(input.Handle, input.Password)
	if err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":       "Login successful",
		"user":          loggedIn.Public(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func GoogleAuth(c *fiber.Ctx) error {
	type GoogleInput struct {
		Credential string `json:"credential" validate:"required"`
	}

	var input GoogleInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	signedIn, _, err := accountService(c).GoogleSignIn(c.Context(), input.Credential)
	if err != nil {
		return respondAuthError(c, err)
	}

	pair, err := sessionGuard(c).Establish(signedIn)
	if err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":       "Google login successful",
		"user":          signedIn.Public(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func RefreshToken(c *fiber.Ctx) error {
	type RefreshInput struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	var input RefreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	pair, err := sessionGuard(c).Refresh(input.RefreshToken)
	if err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func Logout(c *fiber.Ctx) error {
	principal := c.Locals("user").(database.Profile)

	if err := sessionGuard(c).Logout(principal.ID); err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Logout successful",
	})
}

func ForgotPassword(c *fiber.Ctx) error {
	type ForgotInput struct {
		Email string `json:"email" validate:"required,email"`
	}

	var input ForgotInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := accountService(c).RequestPasswordReset(input.Email); err != nil {
		return respondAuthError(c, err)
	}

	// Identical body whether or not the address exists.
	return c.JSON(fiber.Map{
		"message": "If the email exists, you will receive password reset instructions",
	})
}

func ResetPassword(c *fiber.Ctx) error {
	token := c.Params("token")

	type ResetInput struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}

	var input ResetInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := accountService(c).ResetPassword(token, input.Password, input.ConfirmPassword); err != nil {
		return respondAuthError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Password updated successfully. You can now log in.",
	})
}
