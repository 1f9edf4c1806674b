package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. The authentication middleware runs on
// every API route and never rejects; RequireAuthenticated enforces where
// a principal is mandatory and RequireAdmin guards account administration.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/refresh-token", cfg.Auth.Refresh)
	authGroup.Delete("/logout", cfg.Auth.Logout)

	usersGroup := api.Group("/users")
	usersGroup.Post("/", cfg.Users.Register)
	usersGroup.Get("/verify", cfg.Users.Verify)
	usersGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	usersGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	protected := usersGroup.Group("", auth.RequireAuthenticated())
	protected.Get("/me", cfg.Users.Me)
	protected.Put("/me", cfg.Users.Update)
	protected.Post("/password/change", cfg.Users.ChangePassword)

	admin := protected.Group("", auth.RequireAdmin())
	admin.Put("/:username/unlock", cfg.Users.Unlock)
	admin.Put("/:username/lock", cfg.Users.Lock)
}
