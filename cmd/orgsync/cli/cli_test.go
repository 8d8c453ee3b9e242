package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/bootstrap"
	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/markers"
	"github.com/lyzr/orgsync/common/remote"
	"github.com/lyzr/orgsync/common/remote/remotetest"
)

const (
	testRoot = "r-abcd"
	testRole = "arn:aws:iam::123456789012:role/OrganizationAdmin"
)

type cliHarness struct {
	t    *testing.T
	dir  string
	org  *remotetest.Organization
	opts []Option
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv("ORGSYNC_API_RPS", "1000")
	t.Setenv("ORGSYNC_API_BURST", "100")
	t.Setenv("ORGSYNC_API_MUTATE_RPS", "1000")
	t.Setenv("ORGSYNC_API_MUTATE_BURST", "100")

	org := remotetest.NewOrganization(testRoot)
	org.SeedOrganizationalUnit(testRoot, "foo")
	org.SeedAccount(testRoot, "111111111111", "A", "a@example.com")

	store, err := markers.OpenBadger(markers.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &cliHarness{
		t:   t,
		dir: t.TempDir(),
		org: org,
		opts: []Option{
			WithClientFactory(func(*bootstrap.Components) (remote.Client, error) { return org, nil }),
			WithBootstrapOptions(bootstrap.WithMarkerStore(store)),
		},
	}
}

// run executes one command line and returns its stdout
func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(h.opts...)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--environment", h.dir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_ImportMakeMigrationsMigrate(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("import-organization", testRole, testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "imported r-abcd: 3 nodes, 0 policies, 0 delegated administrator accounts")

	out, err = h.run("make-migrations", testRole, testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")

	require.NoError(t, os.MkdirAll(filepath.Join(h.dir, testRoot, hierarchy.OrganizationalUnitsDir, "new"), 0o755))
	out, err = h.run("make-migrations", testRole, testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "created ")
	assert.Contains(t, out, "_OU_CREATE")

	out, err = h.run("migrate", testRole, testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "APPLIED")
	assert.Contains(t, out, "applied 1, failed 0, errored 0, skipped 0")
	_, ok := h.org.FindOrganizationalUnit(testRoot, "new")
	assert.True(t, ok)

	out, err = h.run("migrate", testRole, testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "already run")
	assert.Contains(t, out, "applied 0, failed 0, errored 0, skipped 1")

	out, err = h.run("ledger", "list", testRoot, "--filter", `status == "APPLIED"`)
	require.NoError(t, err)
	assert.Contains(t, out, "_OU_CREATE")

	_, err = h.run("ledger", "list", testRoot, "--filter", `status ==`)
	assert.Error(t, err)
}

func TestCLI_Arguments(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("make-migrations", testRole, testRoot, "--against", "yesterday")
	assert.Error(t, err)

	_, err = h.run("migrate", testRoot)
	assert.Error(t, err)
}

func TestCLI_PolicyBaseline(t *testing.T) {
	h := newCLIHarness(t)
	_, err := h.run("import-organization", testRole, testRoot)
	require.NoError(t, err)

	_, err = h.run("policies", "make-migrations", testRoot)
	assert.Error(t, err)

	out, err := h.run("policies", "baseline", testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "baseline captured")

	out, err = h.run("policies", "make-migrations", testRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")
}

func TestServer_Health(t *testing.T) {
	h := newCLIHarness(t)
	app := &App{environment: h.dir, logLevel: "error"}
	for _, opt := range h.opts {
		opt(app)
	}

	c, cleanup, err := app.setup(context.Background(), false)
	require.NoError(t, err)
	defer cleanup()

	rec := httptest.NewRecorder()
	NewServer(c).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
