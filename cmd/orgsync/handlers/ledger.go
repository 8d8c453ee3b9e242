package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/orgsync/cmd/orgsync/container"
	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/cmd/orgsync/service"
	"github.com/lyzr/orgsync/common/logger"
)

// LedgerHandler serves the migration ledger of each root read-only
type LedgerHandler struct {
	ledger *service.LedgerService
	log    *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(c *container.Container) *LedgerHandler {
	return &LedgerHandler{
		ledger: c.LedgerService,
		log:    c.Components.Logger,
	}
}

// ListMigrations lists the ledger with recorded statuses, optionally filtered
// GET /api/v1/roots/:root/migrations?filter=status=="FAILED"
func (h *LedgerHandler) ListMigrations(c echo.Context) error {
	rootID := c.Param("root")
	filter := c.QueryParam("filter")

	migrations, err := h.ledger.List(c.Request().Context(), rootID, filter)
	if err != nil {
		var filterErr *service.FilterError
		if errors.As(err, &filterErr) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": filterErr.Error(),
			})
		}
		h.log.Error("failed to list migrations", "root_id", rootID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list migrations")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"root_id":    rootID,
		"count":      len(migrations),
		"migrations": migrations,
	})
}

// GetMigration returns one ledger entry with its recorded status
// GET /api/v1/roots/:root/migrations/:id
func (h *LedgerHandler) GetMigration(c echo.Context) error {
	rootID := c.Param("root")
	id := c.Param("id")

	migration, err := h.ledger.Get(c.Request().Context(), rootID, id)
	if err != nil {
		if errors.Is(err, repository.ErrMigrationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "migration not found",
				"id":    id,
			})
		}
		h.log.Error("failed to get migration", "root_id", rootID, "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get migration")
	}

	return c.JSON(http.StatusOK, migration)
}
