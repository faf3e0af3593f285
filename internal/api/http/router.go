package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Categories     *handlers.CategoriesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)
	authGroup.Post("/otp/request", cfg.Users.RequestOneTimeCode)
	authGroup.Post("/otp/verify", cfg.Users.VerifyOneTimeCode)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("/my-requests", cfg.Tickets.MyRequests)
	tickets.Get("/all-open", cfg.Tickets.ListOpen)
	tickets.Post("/messages/:id/attachments", cfg.Tickets.UploadMessageAttachment)
	tickets.Get("/:id/detail", cfg.Tickets.Detail)
	tickets.Patch("/:id", cfg.Tickets.Patch)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/cc", cfg.Tickets.AddCC)
	tickets.Delete("/:id/cc/:userId", cfg.Tickets.RemoveCC)
	tickets.Post("/:id/followers", cfg.Tickets.AddFollower)
	tickets.Delete("/:id/followers/:userId", cfg.Tickets.RemoveFollower)

	categories := app.Group("/categories", cfg.AuthMiddleware.Handle)
	categories.Get("", cfg.Categories.List)
	categories.Get("/active", cfg.Categories.ListActive)
	categories.Post("", cfg.Categories.Create)
	categories.Put("/:id", cfg.Categories.Update)
	categories.Delete("/:id", cfg.Categories.Remove)
}
