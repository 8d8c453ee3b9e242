package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/remote"
)

// Remote call outcomes
const (
	OutcomeOK            = "ok"
	OutcomeProviderError = "provider_error"
	OutcomeError         = "error"
)

// Telemetry holds the metrics of one process. Each instance owns its registry
// so tests and commands never share counters.
type Telemetry struct {
	log      *logger.Logger
	registry *prometheus.Registry

	migrations    *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
}

// New creates telemetry with a fresh registry
func New(log *logger.Logger) *Telemetry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Telemetry{
		log:      log,
		registry: reg,
		migrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgsync_migrations_total",
			Help: "Migrations attempted by extension, type and recorded status",
		}, []string{"extension", "type", "status"}),
		remoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgsync_remote_calls_total",
			Help: "Remote organization API calls by operation and outcome",
		}, []string{"op", "outcome"}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orgsync_phase_duration_seconds",
			Help:    "Duration of fetch, reconcile and migrate phases",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"phase"}),
	}
}

// RecordMigration counts one executed migration. The Record methods are no-ops on a nil Telemetry.
func (t *Telemetry) RecordMigration(extension, migrationType, status string) {
	if t == nil {
		return
	}
	t.migrations.WithLabelValues(extension, migrationType, status).Inc()
}

// RecordRemoteCall counts one remote call; its signature matches remote.CallObserver
func (t *Telemetry) RecordRemoteCall(op string, err error) {
	if t == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		var perr *remote.ProviderError
		if errors.As(err, &perr) {
			outcome = OutcomeProviderError
		}
	}
	t.remoteCalls.WithLabelValues(op, outcome).Inc()
}

// RecordDuration records how long a phase took
func (t *Telemetry) RecordDuration(phase string, start time.Time) {
	if t == nil {
		return
	}
	duration := time.Since(start)
	t.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
	t.log.Debug("phase completed",
		"phase", phase,
		"duration_ms", duration.Milliseconds(),
	)
}

// Registry exposes the underlying registry
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the prometheus text format
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
