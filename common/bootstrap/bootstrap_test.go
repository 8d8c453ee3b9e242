package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Service:     config.ServiceConfig{Name: "orgsync", Port: 8080, LogLevel: "error"},
		Environment: config.EnvironmentConfig{URL: "mem://localhost/env", StateFile: "state.yaml"},
		Markers:     config.MarkerConfig{Backend: config.MarkerBackendMemory, Prefix: config.DefaultMarkerPrefix},
		Cache:       config.CacheConfig{Enabled: true, DefaultTTL: time.Minute},
	}
}

func TestSetup_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	c, err := Setup(ctx, "orgsync", WithCustomConfig(testConfig()), WithCustomLogger(logger.Discard()))
	require.NoError(t, err)

	assert.Nil(t, c.Session)
	require.NotNil(t, c.Markers)
	assert.NotNil(t, c.Cache)
	assert.NotNil(t, c.Telemetry)

	require.NoError(t, c.Markers.Put(ctx, &models.Marker{MigrationID: "1_OU_CREATE", Status: models.StatusApplied}))
	assert.NoError(t, c.Health(ctx))
	assert.NoError(t, c.Shutdown(ctx))
}

func TestSetup_SkipOptions(t *testing.T) {
	ctx := context.Background()
	c, err := Setup(ctx, "orgsync",
		WithCustomConfig(testConfig()),
		WithCustomLogger(logger.Discard()),
		WithoutMarkers(),
		WithoutCache(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	assert.Nil(t, c.Markers)
	assert.Nil(t, c.Cache)
	assert.Nil(t, c.Telemetry)
	assert.NoError(t, c.Shutdown(ctx))
}

func TestSetup_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Markers.Backend = "etcd"
	_, err := Setup(context.Background(), "orgsync", WithCustomConfig(cfg), WithCustomLogger(logger.Discard()))
	assert.Error(t, err)
}
