package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"gametracker/internal/config"
	"gametracker/internal/database"
	"gametracker/internal/handlers"
	"gametracker/internal/mail"
	"gametracker/internal/middleware"
	"gametracker/internal/platform/google"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}

	mailer := mail.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase, cfg.EmailFrom, cfg.FrontendURL)

	verifier, err := google.NewIDTokenVerifier(cfg.GoogleClientID)
	if err != nil {
		log.Fatal(err)
	}

	app := fiber.New()

	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(healthcheck.New())

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("db", db)
		c.Locals("mailer", mailer)
		c.Locals("google", verifier)
		return c.Next()
	})

	api := app.Group("/api")

	// Per-IP sliding window on the auth surface. This limiter keeps its
	// counters in process memory, so with multiple replicas each instance
	// enforces its own budget; point it at a shared limiter.Storage before
	// scaling out. The lockout counter itself lives in the database and is
	// replica-safe regardless.
	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
	}))
	auth.Post("/register", handlers.Register)
	auth.Post("/login", handlers.Login)
	auth.Get("/verify-email/:token", handlers.VerifyEmail)
	auth.Post("/resend-verification", handlers.ResendVerification)
	auth.Post("/google", handlers.GoogleAuth)
	auth.Post("/refresh-token", handlers.RefreshToken)
	auth.Post("/request-password-reset", handlers.ForgotPassword)
	auth.Post("/reset-password/:token", handlers.ResetPassword)

	auth.Get("/session", middleware.OptionalAuthMiddleware, handlers.Session)
	auth.Get("/profile", middleware.AuthMiddleware, handlers.GetProfile)
	auth.Post("/logout", middleware.AuthMiddleware, handlers.Logout)

	userGroup := api.Group("/user", middleware.AuthMiddleware)
	userGroup.Get("/me", handlers.GetProfile)
	userGroup.Put("/me", handlers.UpdateProfile)

	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	log.Fatal(app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)))
}
