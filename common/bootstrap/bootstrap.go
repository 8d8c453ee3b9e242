package bootstrap

import (
	"context"
	"fmt"

	"github.com/lyzr/orgsync/common/cache"
	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/markers"
	"github.com/lyzr/orgsync/common/remote"
	"github.com/lyzr/orgsync/common/telemetry"
)

// Setup initializes the components shared by every command
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		RoleARN:      options.roleARN,
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}

	components.Logger.Debug("initializing components",
		"service", serviceName,
		"environment", cfg.Environment.URL,
		"marker_backend", cfg.Markers.Backend,
	)

	// 3. AWS session, when something needs one
	needsAWS := options.withAWS || (!options.skipMarkers && options.markerStore == nil && cfg.Markers.Backend == config.MarkerBackendSSM)
	if options.session != nil {
		components.Session = options.session
	} else if needsAWS {
		components.Session, err = remote.NewSession(remote.SessionConfig{
			Region:     cfg.AWS.Region,
			MaxRetries: cfg.AWS.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
	}

	// 4. Marker store
	if options.markerStore != nil {
		components.Markers = options.markerStore
	} else if !options.skipMarkers {
		components.Markers, err = markers.Open(ctx, cfg, components.Logger, components.Session, options.roleARN)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to open marker store: %w", err)
		}
		store := components.Markers
		components.addCleanup(func() error {
			components.Logger.Debug("closing marker store")
			return store.Close()
		})
	}

	// 5. Describe cache
	if !options.skipCache && cfg.Cache.Enabled {
		memoryCache := cache.NewMemoryCache(components.Logger)
		components.Cache = memoryCache
		components.addCleanup(memoryCache.Close)
	}

	// 6. Telemetry
	if !options.skipTelemetry {
		components.Telemetry = telemetry.New(components.Logger)
	}

	components.Logger.Debug("components ready",
		"service", serviceName,
		"aws", components.Session != nil,
		"markers", components.Markers != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}
