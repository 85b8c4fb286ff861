package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-bot/internal/api/http/handlers"
	"github.com/spec-kit/community-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Tickets    *handlers.TicketsHandler
	Engagement *handlers.EngagementHandler
	Metrics    *handlers.MetricsHandler
	// AuthMiddleware guards /api when set.
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.Handle)
	}
	read := requireScope(cfg, auth.ScopeRead)
	admin := requireScope(cfg, auth.ScopeAdmin)

	api.Get("/tickets", read, cfg.Tickets.ListActive)
	api.Get("/tickets/:id", read, cfg.Tickets.GetActive)
	api.Get("/archives", read, cfg.Tickets.ListArchives)
	api.Get("/archives/:id", read, cfg.Tickets.GetArchive)

	api.Get("/engagement/leaderboard", read, cfg.Engagement.Leaderboard)
	api.Get("/engagement/:userID", read, cfg.Engagement.Record)

	api.Get("/metrics", admin, cfg.Metrics.Snapshot)
}

func requireScope(cfg RouteConfig, scope auth.Scope) fiber.Handler {
	if cfg.AuthMiddleware == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return auth.RequireScope(scope)
}
