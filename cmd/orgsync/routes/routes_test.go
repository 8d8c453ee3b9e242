package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/cmd/orgsync/container"
	"github.com/lyzr/orgsync/common/bootstrap"
	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote/remotetest"
)

const testRoot = "r-abcd"

type testServer struct {
	e       *echo.Echo
	c       *container.Container
	created []*models.Migration
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Service:     config.ServiceConfig{Name: "orgsync", Port: 8080, LogLevel: "error"},
		Environment: config.EnvironmentConfig{URL: config.NormalizeEnvironmentURL(t.TempDir()), StateFile: "state.yaml"},
		Markers:     config.MarkerConfig{Backend: config.MarkerBackendMemory, Prefix: config.DefaultMarkerPrefix},
		RateLimit:   config.RateLimitConfig{ReadRPS: 1000, ReadBurst: 100, MutateRPS: 1000, MutateBurst: 100},
		Migrate:     config.MigrateConfig{RetryFailed: true},
		Telemetry:   config.TelemetryConfig{EnableMetrics: true},
	}
	components, err := bootstrap.Setup(ctx, "orgsync", bootstrap.WithCustomConfig(cfg), bootstrap.WithCustomLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { components.Shutdown(ctx) })

	org := remotetest.NewOrganization(testRoot)
	foo := org.SeedOrganizationalUnit(testRoot, "foo")

	c, err := container.NewContainerWithClient(components, org)
	require.NoError(t, err)

	_, err = c.ImportService.Import(ctx, testRoot)
	require.NoError(t, err)
	created, err := c.MigrationRepo.AppendAll(ctx, testRoot, []models.Change{
		&models.OURename{Name: "foo2", OrganizationalUnitID: foo},
		&models.OUCreate{Name: "bar", ParentID: testRoot},
	})
	require.NoError(t, err)
	_, err = c.MigrateService.Migrate(ctx, testRoot)
	require.NoError(t, err)

	e := echo.New()
	RegisterLedgerRoutes(e, c)
	RegisterMetricsRoutes(e, c)
	return &testServer{e: e, c: c, created: created}
}

func (s *testServer) get(t *testing.T, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	body := map[string]interface{}{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestLedgerRoutes_List(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.get(t, "/api/v1/roots/"+testRoot+"/migrations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	filter := url.QueryEscape(`status == "APPLIED" && migration_type == "OU_RENAME"`)
	rec, body = s.get(t, "/api/v1/roots/"+testRoot+"/migrations?filter="+filter)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), body["count"])
	first := body["migrations"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, s.created[0].ID, first["id"])
	assert.Equal(t, "APPLIED", first["status"])
}

func TestLedgerRoutes_BadFilter(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.get(t, "/api/v1/roots/"+testRoot+"/migrations?filter="+url.QueryEscape(`status ==`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid filter")
}

func TestLedgerRoutes_Get(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.get(t, "/api/v1/roots/"+testRoot+"/migrations/"+s.created[1].ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.OUCreateType), body["migration_type"])
	assert.Equal(t, "APPLIED", body["status"])

	rec, _ = s.get(t, "/api/v1/roots/"+testRoot+"/migrations/0000000000000000001_OU_CREATE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orgsync_migrations_total")
	assert.Contains(t, rec.Body.String(), "orgsync_remote_calls_total")
}
