package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/orgsync/cmd/orgsync/container"
	"github.com/lyzr/orgsync/cmd/orgsync/handlers"
)

// RegisterLedgerRoutes registers the read-only ledger routes
func RegisterLedgerRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewLedgerHandler(c)

	ledger := e.Group("/api/v1/roots/:root/migrations")
	{
		ledger.GET("", h.ListMigrations)   // GET /api/v1/roots/r-abcd/migrations?filter=...
		ledger.GET("/:id", h.GetMigration) // GET /api/v1/roots/r-abcd/migrations/{id}
	}
}

// RegisterMetricsRoutes exposes the prometheus registry when metrics are enabled
func RegisterMetricsRoutes(e *echo.Echo, c *container.Container) {
	components := c.Components
	if components.Telemetry == nil || !components.Config.Telemetry.EnableMetrics {
		return
	}
	e.GET("/metrics", echo.WrapHandler(components.Telemetry.Handler()))
}
