package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

func TestMigrate_SecondRunMutatesNothing(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	h.mkdir(append(fooDir, hierarchy.OrganizationalUnitsDir, "new")...)
	h.writeYAML([]models.DelegatedAdministrator{{ServicePrincipal: "securityhub.amazonaws.com"}},
		append(append([]string{}, bDir...), hierarchy.DelegatedAdministratorsFile)...)

	_, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)

	first, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{models.StatusApplied, models.StatusApplied}, statuses(first))
	mutations := h.org.Mutations()
	assert.Equal(t, 2, mutations)

	second, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	require.Len(t, second.Outcomes, 2)
	for _, o := range second.Outcomes {
		assert.True(t, o.Skipped)
		assert.Equal(t, models.StatusApplied, o.Status)
	}
	assert.Equal(t, mutations, h.org.Mutations())
	assert.NotEqual(t, first.RunID, second.RunID)

	marker, found, err := h.markers.Get(h.ctx, first.Outcomes[0].ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusOK, marker.Message)
	assert.Equal(t, first.RunID, marker.RunID)
}

func TestMigrate_FailedIsRetried(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	_, err := h.migrations.Append(h.ctx, testRoot, &models.RegisterDelegatedAdministrator{AccountID: accountB, ServicePrincipal: "securityhub.amazonaws.com"})
	require.NoError(t, err)

	h.org.FailOn(remote.OpRegisterDelegatedAdministrator,
		remote.NewProviderError(remote.OpRegisterDelegatedAdministrator, "TooManyRequestsException", "slow down"))

	failed, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	require.Len(t, failed.Outcomes, 1)
	assert.Equal(t, models.StatusFailed, failed.Outcomes[0].Status)
	assert.Contains(t, failed.Outcomes[0].Message, "TooManyRequestsException")
	series, err := testutil.GatherAndCount(h.telemetry.Registry(), "orgsync_migrations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)

	// without retries the failure is final
	skipped, err := h.migrator(false).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.True(t, skipped.Outcomes[0].Skipped)
	assert.Equal(t, models.StatusFailed, skipped.Outcomes[0].Status)

	h.org.FailOn(remote.OpRegisterDelegatedAdministrator, nil)
	retried, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{models.StatusApplied}, statuses(retried))
	assert.False(t, retried.Outcomes[0].Skipped)

	services, err := h.org.ListDelegatedServicesForAccount(h.ctx, accountB)
	require.NoError(t, err)
	assert.Len(t, services, 1)
}

func TestMigrate_ClassifiesOutcomes(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	_, err := h.migrations.AppendAll(h.ctx, testRoot, []models.Change{
		// invalid parameters are a local error
		&models.OUCreate{Name: "orphan"},
		// the provider rejects the duplicate
		&models.OUCreate{Name: "foo", ParentID: testRoot},
		// the parent path resolves to nothing
		&models.OUCreateWithNonExistentParentOU{Name: "child", ParentOUPath: "/missing"},
		// later migrations still run
		&models.OURename{Name: "foo2", OrganizationalUnitID: h.foo},
	})
	require.NoError(t, err)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{
		models.StatusErrored,
		models.StatusFailed,
		models.StatusFailed,
		models.StatusApplied,
	}, statuses(result))
	assert.Equal(t, 1, result.Count(models.StatusErrored))
	assert.Equal(t, 1, h.org.Mutations())
}

func TestMigrate_ResolvesWithinBatch(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	_, err := h.migrations.AppendAll(h.ctx, testRoot, []models.Change{
		&models.OUCreate{Name: "outer", ParentID: testRoot},
		&models.OUCreateWithNonExistentParentOU{Name: "inner", ParentOUPath: "/outer"},
		&models.AccountMoveWithNonExistentParentOU{AccountID: accountB, SourceParentID: testRoot, DestinationPath: "/outer/inner"},
	})
	require.NoError(t, err)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count(models.StatusApplied))

	outer, ok := h.org.FindOrganizationalUnit(testRoot, "outer")
	require.True(t, ok)
	inner, ok := h.org.FindOrganizationalUnit(outer, "inner")
	require.True(t, ok)
	assert.Equal(t, inner, h.org.ParentOf(accountB))
}

func TestMigrate_AlreadyConvergedIsApplied(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	_, err := h.migrations.AppendAll(h.ctx, testRoot, []models.Change{
		&models.RegisterDelegatedAdministrator{AccountID: accountA, ServicePrincipal: guardDuty},
		&models.DeregisterDelegatedAdministrator{AccountID: accountB, ServicePrincipal: guardDuty},
		&models.PolicyAttach{PolicyID: h.denyLeave, PolicyName: "deny-leave", TargetID: h.foo},
		&models.DetachPolicy{PolicyName: "deny-leave", PolicyID: h.denyLeave, TargetPath: "/B", TargetID: accountB},
	})
	require.NoError(t, err)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{
		models.StatusApplied, models.StatusApplied, models.StatusApplied, models.StatusApplied,
	}, statuses(result))
	assert.Equal(t, 0, h.org.Mutations())
}
