package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/common/models"
)

func TestBaseline_AttachAndDetach(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	captured, err := h.baseline.Capture(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"/":    {"FullAWSAccess"},
		"/foo": {"deny-leave"},
	}, captured)

	// deny-leave moves from /foo to account B
	h.writeAttached([]models.PolicyRecordEntry{}, fooDir...)
	h.writeAttached([]models.PolicyRecordEntry{{Id: h.denyLeave, Name: "deny-leave"}}, bDir...)

	created, err := h.baseline.MakeMigrations(h.ctx, testRoot)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, &models.AttachPolicy{PolicyName: "deny-leave", PolicyID: h.denyLeave, TargetPath: "/B", TargetID: accountB}, created[0].Change)
	assert.Equal(t, &models.DetachPolicy{PolicyName: "deny-leave", PolicyID: h.denyLeave, TargetPath: "/foo", TargetID: h.foo}, created[1].Change)
	assert.Equal(t, models.ExtensionPolicyBaseline, created[0].Extension)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count(models.StatusApplied))

	onFoo, err := h.org.ListPoliciesForTarget(h.ctx, h.foo)
	require.NoError(t, err)
	assert.Empty(t, onFoo)
	onB, err := h.org.ListPoliciesForTarget(h.ctx, accountB)
	require.NoError(t, err)
	require.Len(t, onB, 1)
	assert.Equal(t, "deny-leave", onB[0].Name)

	// the baseline moved forward with the emitted migrations
	again, err := h.baseline.MakeMigrations(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBaseline_RequiresCapture(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	_, err := h.baseline.MakeMigrations(h.ctx, testRoot)
	assert.ErrorIs(t, err, repository.ErrBaselineNotFound)
}

func TestBaseline_ResolvesTargetPathAtApplyTime(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	_, err := h.migrations.Append(h.ctx, testRoot, &models.AttachPolicy{PolicyName: "deny-leave", TargetPath: "/foo/bar/A"})
	require.NoError(t, err)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{models.StatusApplied}, statuses(result))

	onA, err := h.org.ListPoliciesForTarget(h.ctx, accountA)
	require.NoError(t, err)
	require.Len(t, onA, 1)
	assert.Equal(t, h.denyLeave, onA[0].Id)
}

func TestDiffBaseline_Ordering(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	local, err := h.snapshots.Read(h.ctx, testRoot)
	require.NoError(t, err)

	changes := DiffBaseline(
		map[string][]string{"/foo": {"b", "a"}, "/": {"x"}},
		map[string][]string{"/foo": {"c"}, "/": {"x", "y"}},
		local,
	)
	assert.Equal(t, []models.MigrationType{
		models.AttachPolicyType, models.AttachPolicyType,
		models.DetachPolicyType, models.DetachPolicyType,
	}, changeTypes(changes))
	assert.Equal(t, "/", changes[0].(*models.AttachPolicy).TargetPath)
	assert.Equal(t, "y", changes[0].(*models.AttachPolicy).PolicyName)
	assert.Equal(t, "c", changes[1].(*models.AttachPolicy).PolicyName)
	assert.Equal(t, "a", changes[2].(*models.DetachPolicy).PolicyName)
	assert.Equal(t, "b", changes[3].(*models.DetachPolicy).PolicyName)
}

func TestBaseline_OverlapsStructureAttach(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	_, err := h.baseline.Capture(h.ctx, testRoot)
	require.NoError(t, err)

	// one edit that both flows pick up
	h.writeAttached([]models.PolicyRecordEntry{{Id: h.denyLeave, Name: "deny-leave"}}, bDir...)

	structural, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)
	require.Len(t, structural, 1)
	assert.Equal(t, models.PolicyAttachType, structural[0].Change.MigrationType())
	fromBaseline, err := h.baseline.MakeMigrations(h.ctx, testRoot)
	require.NoError(t, err)
	require.Len(t, fromBaseline, 1)
	assert.Equal(t, models.AttachPolicyType, fromBaseline[0].Change.MigrationType())

	first, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{models.StatusApplied, models.StatusApplied}, statuses(first))
	assert.Equal(t, 1, h.org.Mutations())

	second, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	for _, o := range second.Outcomes {
		assert.True(t, o.Skipped)
		assert.Equal(t, models.StatusApplied, o.Status)
	}
}
