package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/elegantflow/crm-service/internal/api/http/handlers"
	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Team           *handlers.TeamHandler
	Organizations  *handlers.OrganizationHandler
	Clients        *handlers.ClientHandler
	Leads          *handlers.LeadHandler
	Notifications  *handlers.NotificationHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics is served at MetricsPath when both are set.
	Metrics     *observability.Metrics
	MetricsPath string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	admins := auth.RequireRole(domain.RoleOwner, domain.RoleManager)
	ownerOnly := auth.RequireRole(domain.RoleOwner)

	public := app.Group("/auth")
	public.Post("/register", cfg.Auth.Register)
	public.Post("/login", cfg.Auth.Login)
	public.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	public.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	app.Get("/organizations", cfg.Organizations.List)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	api.Get("/auth/me", cfg.Auth.Me)
	api.Post("/auth/invite", admins, cfg.Auth.Invite)
	api.Post("/auth/push-tokens", cfg.Auth.RegisterPushToken)
	api.Post("/auth/password/change", cfg.Auth.ChangePassword)

	api.Get("/team", cfg.Team.Mine)
	api.Get("/team/managers", cfg.Team.Managers)

	api.Get("/organizations/mine", cfg.Organizations.Mine)
	api.Patch("/organizations/mine", ownerOnly, cfg.Organizations.Update)
	api.Get("/organizations/owner/:ownerId", cfg.Organizations.ByOwner)
	api.Get("/branches", cfg.Organizations.Branches)
	api.Delete("/branches/:id", ownerOnly, cfg.Organizations.DeleteBranch)

	clients := api.Group("/clients")
	clients.Post("/", cfg.Clients.Create)
	clients.Get("/", cfg.Clients.List)
	clients.Get("/stats", cfg.Clients.Stats)
	clients.Get("/:id", cfg.Clients.Get)
	clients.Patch("/:id/status", cfg.Clients.UpdateStatus)
	clients.Delete("/:id", ownerOnly, cfg.Clients.Delete)
	clients.Post("/:id/feedback", cfg.Clients.AddFeedback)
	clients.Patch("/:id/feedback/:feedbackId", cfg.Clients.EditFeedback)
	clients.Delete("/:id/feedback/:feedbackId", cfg.Clients.RemoveFeedback)
	clients.Post("/:id/feedback/:feedbackId/seen", cfg.Clients.MarkFeedbackSeen)
	clients.Post("/:id/projects", cfg.Clients.CreateProject)
	clients.Get("/:id/projects", cfg.Clients.ListProjects)

	leads := api.Group("/leads")
	leads.Post("/", cfg.Leads.Create)
	leads.Get("/", cfg.Leads.List)
	leads.Get("/:id", cfg.Leads.Get)
	leads.Patch("/:id/status", cfg.Leads.ChangeStatus)
	leads.Post("/:id/review", admins, cfg.Leads.Review)
	leads.Delete("/:id", admins, cfg.Leads.Delete)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("/:id", cfg.Notifications.Delete)
}
