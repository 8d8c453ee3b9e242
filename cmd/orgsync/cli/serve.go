package cli

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/lyzr/orgsync/cmd/orgsync/container"
	"github.com/lyzr/orgsync/cmd/orgsync/routes"
	"github.com/lyzr/orgsync/common/bootstrap"
	"github.com/lyzr/orgsync/common/config"
	apimiddleware "github.com/lyzr/orgsync/common/middleware"
	"github.com/lyzr/orgsync/common/server"
)

func (a *App) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the migration ledger and metrics over HTTP (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := a.setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			e := NewServer(c)
			components := c.Components
			srv := server.New(serviceName, components.Config.Service.Port, e, components.Logger)
			return srv.Start(cmd.Context())
		},
	}
}

// NewServer builds the echo server with middleware, health check and all routes
func NewServer(c *container.Container) *echo.Echo {
	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e, c.Components.Config)

	// Setup health check
	setupHealthCheck(e, c.Components)

	// Register all routes
	registerRoutes(e, c)

	return e
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	if cfg.RateLimit.ServeRPS > 0 {
		e.Use(apimiddleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit.ServeRPS), cfg.RateLimit.ServeBurst)))
	}
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": serviceName,
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterLedgerRoutes(e, c)
	routes.RegisterMetricsRoutes(e, c)
}
