package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyzr/orgsync/cmd/orgsync/container"
	"github.com/lyzr/orgsync/common/bootstrap"
	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/remote"
)

const serviceName = "orgsync"

// ClientFactory builds the provider client for commands that talk to the organization
type ClientFactory func(components *bootstrap.Components) (remote.Client, error)

// Option configures the command tree
type Option func(*App)

// WithClientFactory replaces the AWS Organizations client, e.g. with an in-memory organization
func WithClientFactory(factory ClientFactory) Option {
	return func(a *App) {
		a.newClient = factory
		a.awsSession = false
	}
}

// WithBootstrapOptions appends options to every bootstrap.Setup call
func WithBootstrapOptions(opts ...bootstrap.Option) Option {
	return func(a *App) {
		a.bootstrapOpts = append(a.bootstrapOpts, opts...)
	}
}

// App holds the flags shared by every command
type App struct {
	environment   string
	stateFile     string
	markerBackend string
	markerPath    string
	logLevel      string
	logFormat     string

	newClient     ClientFactory
	awsSession    bool
	bootstrapOpts []bootstrap.Option
}

// NewRootCommand builds the orgsync command tree
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{newClient: awsClient, awsSession: true}
	for _, opt := range opts {
		opt(app)
	}

	root := &cobra.Command{
		Use:   "orgsync",
		Short: "Manage an AWS Organization as a directory tree",
		Long: `orgsync imports an AWS Organization into a directory tree, turns edits
of that tree into an ordered ledger of migrations and applies the ledger
to the live organization exactly once per migration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.environment, "environment", "", "environment directory or afs URL (ORGSYNC_ENVIRONMENT_URL)")
	flags.StringVar(&app.stateFile, "state-file", "", "captured state file name (ORGSYNC_STATE_FILE)")
	flags.StringVar(&app.markerBackend, "marker-backend", "", "marker store: local, redis, postgres, ssm or memory (ORGSYNC_MARKER_BACKEND)")
	flags.StringVar(&app.markerPath, "marker-path", "", "badger directory of the local marker store (ORGSYNC_MARKER_PATH)")
	flags.StringVar(&app.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	flags.StringVar(&app.logFormat, "log-format", "", "text or json (LOG_FORMAT)")

	root.AddCommand(
		app.importCommand(),
		app.makeMigrationsCommand(),
		app.migrateCommand(),
		app.policiesCommand(),
		app.ledgerCommand(),
		app.serveCommand(),
	)
	return root
}

// loadConfig reads the environment and applies flag overrides
func (a *App) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, err
	}

	if a.environment != "" {
		cfg.Environment.URL = config.NormalizeEnvironmentURL(a.environment)
	}
	if a.stateFile != "" {
		cfg.Environment.StateFile = a.stateFile
	}
	if a.markerBackend != "" {
		cfg.Markers.Backend = a.markerBackend
	}
	if a.markerPath != "" {
		cfg.Markers.Path = a.markerPath
	}
	if a.logLevel != "" {
		cfg.Service.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Service.LogFormat = a.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup bootstraps the components of one command. The container gets a
// provider client only when withRemote is set.
func (a *App) setup(ctx context.Context, withRemote bool, opts ...bootstrap.Option) (*container.Container, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts = append([]bootstrap.Option{bootstrap.WithCustomConfig(cfg)}, opts...)
	opts = append(opts, a.bootstrapOpts...)
	components, err := bootstrap.Setup(ctx, serviceName, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap: %w", err)
	}
	cleanup := func() { components.Shutdown(ctx) }

	var client remote.Client
	if withRemote {
		client, err = a.newClient(components)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	c, err := container.NewContainerWithClient(components, client)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize service container: %w", err)
	}
	return c, cleanup, nil
}

// awsClient acts as the role given on the command line
func awsClient(components *bootstrap.Components) (remote.Client, error) {
	if components.Session == nil {
		return nil, fmt.Errorf("no AWS session")
	}
	return remote.NewAWSClient(components.Session, components.RoleARN), nil
}

// remoteOptions are the bootstrap options of commands acting as roleARN
func (a *App) remoteOptions(roleARN string) []bootstrap.Option {
	opts := []bootstrap.Option{bootstrap.WithRoleARN(roleARN)}
	if a.awsSession {
		opts = append(opts, bootstrap.WithAWS())
	}
	return opts
}
