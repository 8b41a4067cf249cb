package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gametracker/internal/database"
)

// GetProfile returns the authenticated principal. The authenticator already
// reduced it to the public projection; the raw record never reaches the wire.
func GetProfile(c *fiber.Ctx) error {
	principal := c.Locals("user").(database.Profile)

	return c.JSON(fiber.Map{
		"user": principal,
	})
}

// Session reports whether the caller holds a live session. Served behind the
// optional authenticator, so an absent or broken token is not an error here.
func Session(c *fiber.Ctx) error {
	principal, ok := c.Locals("user").(database.Profile)
	if !ok {
		return c.JSON(fiber.Map{
			"authenticated": false,
		})
	}

	return c.JSON(fiber.Map{
		"authenticated": true,
		"user":          principal,
	})
}

func UpdateProfile(c *fiber.Ctx) error {
	db := c.Locals("db").(*gorm.DB)
	principal := c.Locals("user").(database.Profile)

	type UpdateInput struct {
		DisplayName *string `json:"display_name"`
		Avatar      *string `json:"avatar"`
	}

	var input UpdateInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if input.DisplayName != nil && *input.DisplayName != "" {
		principal.DisplayName = *input.DisplayName
	}
	if input.Avatar != nil {
		if *input.Avatar != "" {
			principal.Avatar = input.Avatar
		} else {
			principal.Avatar = nil
		}
	}

	result := db.Model(&database.User{}).Where("id = ?", principal.ID).
		Updates(map[string]any{"display_name": principal.DisplayName, "avatar": principal.Avatar})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"user": principal,
	})
}
