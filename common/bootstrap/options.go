package bootstrap

import (
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/markers"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	withAWS       bool
	skipMarkers   bool
	skipCache     bool
	skipTelemetry bool
	roleARN       string
	customLogger  *logger.Logger
	customConfig  *config.Config
	markerStore   markers.Store
	session       *session.Session
}

// WithAWS creates an AWS session even when no component asked for one
func WithAWS() Option {
	return func(o *options) {
		o.withAWS = true
	}
}

// WithRoleARN sets the role assumed by AWS-backed components
func WithRoleARN(roleARN string) Option {
	return func(o *options) {
		o.roleARN = roleARN
	}
}

// WithSession uses an existing AWS session
func WithSession(sess *session.Session) Option {
	return func(o *options) {
		o.session = sess
	}
}

// WithoutMarkers skips opening the marker store
func WithoutMarkers() Option {
	return func(o *options) {
		o.skipMarkers = true
	}
}

// WithMarkerStore uses store instead of opening the configured backend.
// The caller keeps ownership; Shutdown does not close it.
func WithMarkerStore(store markers.Store) Option {
	return func(o *options) {
		o.markerStore = store
	}
}

// WithoutCache skips cache initialization
func WithoutCache() Option {
	return func(o *options) {
		o.skipCache = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

func defaultOptions() *options {
	return &options{}
}
