package container

import (
	"fmt"

	"github.com/viant/afs"
	"golang.org/x/time/rate"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/cmd/orgsync/service"
	"github.com/lyzr/orgsync/common/bootstrap"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/ratelimit"
	"github.com/lyzr/orgsync/common/remote"
	"github.com/lyzr/orgsync/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Remote is nil when the command runs without an AWS session
	Remote remote.Client

	// Repositories
	SnapshotRepo  *repository.SnapshotRepository
	MigrationRepo *repository.MigrationRepository

	// Services
	FetcherService   *service.FetcherService
	ImportService    *service.ImportService
	ReconcileService *service.ReconcileService
	BaselineService  *service.BaselineService
	MigrateService   *service.MigrateService
	LedgerService    *service.LedgerService
}

// NewContainer initializes all services once, talking to AWS when the
// components carry a session
func NewContainer(components *bootstrap.Components) (*Container, error) {
	var client remote.Client
	if components.Session != nil {
		client = remote.NewAWSClient(components.Session, components.RoleARN)
	}
	return NewContainerWithClient(components, client)
}

// NewContainerWithClient is NewContainer with an explicit provider client.
// A nil client leaves the provider-backed services unset.
func NewContainerWithClient(components *bootstrap.Components, client remote.Client) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	// Initialize repositories
	fs := afs.New()
	snapshotRepo := repository.NewSnapshotRepository(fs, cfg.Environment.URL, cfg.Environment.StateFile, log)
	migrationRepo := repository.NewMigrationRepository(fs, cfg.Environment.URL, models.NewIDGenerator(), log)

	validator := validation.NewChangeValidator()
	filter, err := service.NewFilterEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create filter evaluator: %w", err)
	}

	c := &Container{
		Components:      components,
		SnapshotRepo:    snapshotRepo,
		MigrationRepo:   migrationRepo,
		BaselineService: service.NewBaselineService(snapshotRepo, migrationRepo, validator, log),
	}
	if components.Markers != nil {
		c.LedgerService = service.NewLedgerService(migrationRepo, components.Markers, filter)
	}

	if client == nil {
		return c, nil
	}
	c.Remote = wrapClient(components, client)

	// Initialize services (bottom-up: dependencies first)
	c.FetcherService = service.NewFetcherService(c.Remote, log)
	c.ImportService = service.NewImportService(&service.ImportServiceOpts{
		Fetcher:   c.FetcherService,
		Snapshots: snapshotRepo,
		Telemetry: components.Telemetry,
		Logger:    log,
	})
	c.ReconcileService = service.NewReconcileService(&service.ReconcileServiceOpts{
		Client:     c.Remote,
		Snapshots:  snapshotRepo,
		Migrations: migrationRepo,
		Validator:  validator,
		Telemetry:  components.Telemetry,
		Logger:     log,
	})
	if components.Markers != nil {
		c.MigrateService = service.NewMigrateService(&service.MigrateServiceOpts{
			Client:      c.Remote,
			Migrations:  migrationRepo,
			Markers:     components.Markers,
			Validator:   validator,
			Telemetry:   components.Telemetry,
			RetryFailed: cfg.Migrate.RetryFailed,
			Logger:      log,
		})
	}

	return c, nil
}

// wrapClient paces and records provider calls, then caches describes when a cache is configured
func wrapClient(components *bootstrap.Components, client remote.Client) remote.Client {
	cfg := components.Config

	limiter := ratelimit.NewRateLimiter(components.Logger,
		ratelimit.ClassConfig{Class: ratelimit.ClassRead, Rate: rate.Limit(cfg.RateLimit.ReadRPS), Burst: cfg.RateLimit.ReadBurst},
		ratelimit.ClassConfig{Class: ratelimit.ClassMutate, Rate: rate.Limit(cfg.RateLimit.MutateRPS), Burst: cfg.RateLimit.MutateBurst},
	)

	var observe remote.CallObserver
	if components.Telemetry != nil {
		observe = components.Telemetry.RecordRemoteCall
	}

	var wrapped remote.Client = remote.NewThrottledClient(client, limiter, observe)
	if components.Cache != nil {
		wrapped = remote.NewCachedClient(wrapped, components.Cache, cfg.Cache.DefaultTTL)
	}
	return wrapped
}
