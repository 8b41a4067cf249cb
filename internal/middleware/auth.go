package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gametracker/internal/auth"
	"gametracker/internal/config"
	"gametracker/internal/database"
	"gametracker/internal/platform/user"
)

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// resolvePrincipal turns a bearer token into a user record, mirroring the
// login checks: the subject must exist, be verified and not be locked.
func resolvePrincipal(c *fiber.Ctx, token string) (*database.User, error) {
	cfg := c.Locals("config").(*config.Config)
	db := c.Locals("db").(*gorm.DB)

	codec := auth.NewCodec(cfg.JWTSecret, cfg.JWTRefreshSecret)

	userID, err := codec.Verify(token, auth.KindAccess)
	if err != nil {
		return nil, err
	}

	account, err := user.NewService(db).GetByID(userID)
	if err != nil {
		return nil, err
	}

	return account, nil
}

func AuthMiddleware(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Missing token",
		})
	}

	account, err := resolvePrincipal(c, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			// Distinct so clients know to refresh instead of re-login.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Token expired",
				"expired": true,
			})
		case errors.Is(err, auth.ErrWrongKind):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token kind",
			})
		case errors.Is(err, user.ErrNotFound):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "User not found",
			})
		case errors.Is(err, auth.ErrInvalidToken):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	if !account.IsVerified {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message":            "Please verify your email",
			"needs_verification": true,
		})
	}

	if account.IsLocked() {
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{
			"message": "Account temporarily locked",
		})
	}

	// Only the public projection travels with the request; secret-bearing
	// fields stay behind the store.
	c.Locals("user", account.Public())

	return c.Next()
}

// OptionalAuthMiddleware resolves a principal when a valid session happens
// to be present and silently continues without one otherwise, so public
// endpoints can personalize output.
func OptionalAuthMiddleware(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Next()
	}

	account, err := resolvePrincipal(c, token)
	if err != nil || !account.IsVerified || account.IsLocked() {
		return c.Next()
	}

	c.Locals("user", account.Public())

	return c.Next()
}
