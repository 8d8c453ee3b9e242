package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/markers"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote/remotetest"
	"github.com/lyzr/orgsync/common/telemetry"
	"github.com/lyzr/orgsync/common/validation"
)

const (
	testRoot  = "r-abcd"
	accountA  = "111111111111"
	accountB  = "222222222222"
	guardDuty = "guardduty.amazonaws.com"

	denyLeaveDocument = `{"Version":"2012-10-17","Statement":[{"Effect":"Deny","Action":"organizations:LeaveOrganization","Resource":"*"}]}`
)

// harness is a seeded in-memory organization plus every service wired to a temp environment
type harness struct {
	t   *testing.T
	ctx context.Context
	dir string

	org       *remotetest.Organization
	foo, bar  string
	fullAWS   string
	denyLeave string

	snapshots  *repository.SnapshotRepository
	migrations *repository.MigrationRepository
	markers    markers.Store
	telemetry  *telemetry.Telemetry

	importer   *ImportService
	reconciler *ReconcileService
	baseline   *BaselineService
	ledger     *LedgerService
}

// newHarness seeds:
//
//	/ (FullAWSAccess)
//	├── foo (deny-leave)
//	│   └── bar
//	│       └── A (guardduty delegate)
//	└── B
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Discard()

	org := remotetest.NewOrganization(testRoot)
	h := &harness{t: t, ctx: context.Background(), dir: t.TempDir(), org: org}
	h.foo = org.SeedOrganizationalUnit(testRoot, "foo")
	h.bar = org.SeedOrganizationalUnit(h.foo, "bar")
	org.SeedAccount(h.bar, accountA, "A", "a@example.com")
	org.SeedAccount(testRoot, accountB, "B", "b@example.com")
	h.fullAWS = org.SeedPolicy("FullAWSAccess", "Allows access to every operation",
		`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"*","Resource":"*"}]}`, true)
	h.denyLeave = org.SeedPolicy("deny-leave", "no leaving", denyLeaveDocument, false)
	org.SeedAttachment(h.fullAWS, testRoot)
	org.SeedAttachment(h.denyLeave, h.foo)
	org.SeedDelegatedAdministrator(accountA, guardDuty)

	store, err := markers.OpenBadger(markers.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	h.markers = store

	fs := afs.New()
	base := "file://" + filepath.ToSlash(h.dir)
	h.snapshots = repository.NewSnapshotRepository(fs, base, "", log)
	h.migrations = repository.NewMigrationRepository(fs, base, models.NewIDGenerator(), log)
	h.telemetry = telemetry.New(log)
	validator := validation.NewChangeValidator()

	h.importer = NewImportService(&ImportServiceOpts{
		Fetcher:   NewFetcherService(org, log),
		Snapshots: h.snapshots,
		Telemetry: h.telemetry,
		Logger:    log,
	})
	h.reconciler = NewReconcileService(&ReconcileServiceOpts{
		Client:     org,
		Snapshots:  h.snapshots,
		Migrations: h.migrations,
		Validator:  validator,
		Telemetry:  h.telemetry,
		Logger:     log,
	})
	h.baseline = NewBaselineService(h.snapshots, h.migrations, validator, log)

	filter, err := NewFilterEvaluator()
	require.NoError(t, err)
	h.ledger = NewLedgerService(h.migrations, store, filter)
	return h
}

// migrator builds an executor with the given retry policy
func (h *harness) migrator(retryFailed bool) *MigrateService {
	return NewMigrateService(&MigrateServiceOpts{
		Client:      h.org,
		Migrations:  h.migrations,
		Markers:     h.markers,
		Validator:   validation.NewChangeValidator(),
		Telemetry:   h.telemetry,
		RetryFailed: retryFailed,
		Logger:      logger.Discard(),
	})
}

func (h *harness) importOrganization() {
	h.t.Helper()
	_, err := h.importer.Import(h.ctx, testRoot)
	require.NoError(h.t, err)
}

// path returns the local path of an environment-relative location
func (h *harness) path(parts ...string) string {
	return filepath.Join(append([]string{h.dir, testRoot}, parts...)...)
}

func (h *harness) mkdir(parts ...string) {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(h.path(parts...), 0o755))
}

func (h *harness) move(from, to []string) {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(filepath.Dir(h.path(to...)), 0o755))
	require.NoError(h.t, os.Rename(h.path(from...), h.path(to...)))
}

func (h *harness) writeFile(content string, parts ...string) {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(filepath.Dir(h.path(parts...)), 0o755))
	require.NoError(h.t, os.WriteFile(h.path(parts...), []byte(content), 0o644))
}

func (h *harness) writeYAML(v any, parts ...string) {
	h.t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(h.t, err)
	h.writeFile(string(data), parts...)
}

// writeAttached replaces the directly attached policies of the entity at parts
func (h *harness) writeAttached(entries []models.PolicyRecordEntry, parts ...string) {
	h.t.Helper()
	record := models.PolicyRecord{Attached: entries}
	h.writeYAML(&record, append(parts, hierarchy.PolicyRecordFile)...)
}

func changeTypes(changes []models.Change) []models.MigrationType {
	out := make([]models.MigrationType, len(changes))
	for i, c := range changes {
		out[i] = c.MigrationType()
	}
	return out
}

func statuses(result *MigrateResult) []models.MigrationStatus {
	out := make([]models.MigrationStatus, len(result.Outcomes))
	for i, o := range result.Outcomes {
		out[i] = o.Status
	}
	return out
}

// entity path segments used by the tests
var (
	fooDir = []string{hierarchy.OrganizationalUnitsDir, "foo"}
	barDir = []string{hierarchy.OrganizationalUnitsDir, "foo", hierarchy.OrganizationalUnitsDir, "bar"}
	aDir   = []string{hierarchy.OrganizationalUnitsDir, "foo", hierarchy.OrganizationalUnitsDir, "bar", hierarchy.AccountsDir, "A"}
	bDir   = []string{hierarchy.AccountsDir, "B"}
)
