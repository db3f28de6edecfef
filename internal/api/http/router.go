package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	read := auth.RequireScope(auth.ScopeRead)
	protected.Get("/tickets", read, cfg.Tickets.ListTickets)
	protected.Get("/tickets/:channel_id", read, cfg.Tickets.GetTicket)
	protected.Get("/tickets/:channel_id/history", read, cfg.Tickets.GetHistory)
	protected.Get("/stats", read, cfg.Tickets.Stats)
	protected.Get("/metrics", read, cfg.Tickets.Metrics)
	protected.Post("/reconcile", auth.RequireScope(auth.ScopeReconcile), cfg.Tickets.Reconcile)
}
