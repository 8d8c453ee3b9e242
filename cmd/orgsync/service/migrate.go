package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/markers"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
	"github.com/lyzr/orgsync/common/telemetry"
	"github.com/lyzr/orgsync/common/validation"
)

// MigrateService applies ledger entries in order, at most once each
type MigrateService struct {
	client      remote.Client
	migrations  *repository.MigrationRepository
	markers     markers.Store
	validator   *validation.ChangeValidator
	telemetry   *telemetry.Telemetry
	retryFailed bool
	log         *logger.Logger
}

// MigrateServiceOpts contains options for creating a MigrateService
type MigrateServiceOpts struct {
	Client     remote.Client
	Migrations *repository.MigrationRepository
	Markers    markers.Store
	Validator  *validation.ChangeValidator
	Telemetry  *telemetry.Telemetry

	// RetryFailed re-attempts migrations whose marker is FAILED or ERRORED
	RetryFailed bool

	Logger *logger.Logger
}

// NewMigrateService creates a new migrate service
func NewMigrateService(opts *MigrateServiceOpts) *MigrateService {
	return &MigrateService{
		client:      opts.Client,
		migrations:  opts.Migrations,
		markers:     opts.Markers,
		validator:   opts.Validator,
		telemetry:   opts.Telemetry,
		retryFailed: opts.RetryFailed,
		log:         opts.Logger,
	}
}

// MigrationOutcome is the summary line of one migration
type MigrationOutcome struct {
	ID      string                 `json:"id"`
	Type    models.MigrationType   `json:"migration_type"`
	Status  models.MigrationStatus `json:"status"`
	Message string                 `json:"message,omitempty"`
	Skipped bool                   `json:"skipped,omitempty"`
}

// MigrateResult summarizes one executor run
type MigrateResult struct {
	RunID    string             `json:"run_id"`
	RootID   string             `json:"root_id"`
	Outcomes []MigrationOutcome `json:"outcomes"`
}

// Count returns how many migrations were attempted in this run and ended with status
func (r *MigrateResult) Count(status models.MigrationStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped && o.Status == status {
			n++
		}
	}
	return n
}

// Migrate runs every pending migration of rootID sequentially in ledger order.
// A failing migration is recorded and does not stop the batch; only marker
// store and ledger errors abort the run.
func (s *MigrateService) Migrate(ctx context.Context, rootID string) (*MigrateResult, error) {
	runID := uuid.New().String()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := s.log.WithContext(ctx).WithRootID(rootID)

	list, err := s.migrations.List(ctx, rootID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer s.telemetry.RecordDuration("migrate", start)

	result := &MigrateResult{RunID: runID, RootID: rootID}
	a := &applier{client: s.client, rootID: rootID}

	for _, m := range list {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		mlog := log.WithMigrationID(m.ID)

		marker, found, err := s.markers.Get(ctx, m.ID)
		if err != nil {
			return result, fmt.Errorf("read marker %s: %w", m.ID, err)
		}
		if found && (marker.IsApplied() || !s.retryFailed) {
			mlog.Info("already run", "status", marker.Status)
			result.Outcomes = append(result.Outcomes, MigrationOutcome{
				ID:      m.ID,
				Type:    m.Type,
				Status:  marker.Status,
				Message: marker.Message,
				Skipped: true,
			})
			continue
		}

		status, message := s.run(ctx, a, m)
		if err := s.markers.Put(ctx, &models.Marker{
			MigrationID: m.ID,
			Status:      status,
			Message:     message,
			RunID:       runID,
			RecordedAt:  time.Now().UTC(),
		}); err != nil {
			return result, fmt.Errorf("write marker %s: %w", m.ID, err)
		}
		s.telemetry.RecordMigration(string(m.Extension), string(m.Type), string(status))

		if status == models.StatusApplied {
			mlog.Info("migration applied", "type", m.Type)
		} else {
			mlog.Warn("migration not applied", "type", m.Type, "status", status, "message", message)
		}
		result.Outcomes = append(result.Outcomes, MigrationOutcome{
			ID:      m.ID,
			Type:    m.Type,
			Status:  status,
			Message: message,
		})
	}

	log.Info("migrate finished",
		"applied", result.Count(models.StatusApplied),
		"failed", result.Count(models.StatusFailed),
		"errored", result.Count(models.StatusErrored),
	)
	return result, nil
}

// run applies one migration and classifies the outcome
func (s *MigrateService) run(ctx context.Context, a *applier, m *models.Migration) (status models.MigrationStatus, message string) {
	defer func() {
		if r := recover(); r != nil {
			status = models.StatusErrored
			message = fmt.Sprintf("panic: %v", r)
		}
	}()

	if err := s.validator.Validate(m.Change); err != nil {
		return models.StatusErrored, err.Error()
	}

	err := a.apply(ctx, m.Change)
	var resolveErr *ResolutionError
	switch {
	case err == nil:
		return models.StatusApplied, models.StatusOK
	case remote.IsProviderError(err), errors.As(err, &resolveErr):
		return models.StatusFailed, err.Error()
	default:
		return models.StatusErrored, err.Error()
	}
}
