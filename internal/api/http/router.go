package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/fieldops/maintenance-ticketing/internal/api/http/handlers"
	"github.com/fieldops/maintenance-ticketing/internal/auth"
	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Workflow       *handlers.WorkflowHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleSupervisor, domain.RoleAdmin), cfg.Tickets.RetireTicket)
	tickets.Post("/:id/transitions", cfg.Tickets.Transition)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Post("/:id/corrections", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.AppendCorrection)

	api.Get("/workflow/:category/transitions", cfg.Workflow.Transitions)
}
