package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/lyzr/orgsync/common/cache"
	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/markers"
	"github.com/lyzr/orgsync/common/telemetry"
)

// Components holds all initialized dependencies of a command
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	Session   *session.Session
	RoleARN   string
	Markers   markers.Store
	Cache     cache.Cache
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown releases components in reverse order of creation.
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Debug("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	c.cleanupFuncs = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// Health checks that the marker store answers
func (c *Components) Health(ctx context.Context) error {
	if c.Markers != nil {
		if _, _, err := c.Markers.Get(ctx, "health"); err != nil {
			return fmt.Errorf("marker store unhealthy: %w", err)
		}
	}
	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
