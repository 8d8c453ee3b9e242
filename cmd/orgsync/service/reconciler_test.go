package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

func TestReconcile_NoChangesAfterImport(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	for _, against := range []Against{AgainstLive, AgainstState} {
		created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, against)
		require.NoError(t, err, against)
		assert.Empty(t, created, against)
	}
}

func TestReconcile_StructureScenario(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	// new OU under an existing parent
	h.mkdir(append(fooDir, hierarchy.OrganizationalUnitsDir, "new")...)
	// new OU chain under the root, with B moved into it
	qux := []string{hierarchy.OrganizationalUnitsDir, "baz", hierarchy.OrganizationalUnitsDir, "qux"}
	h.mkdir(qux...)
	h.move(bDir, append(append([]string{}, qux...), hierarchy.AccountsDir, "B"))
	// A moves up from /foo/bar to /foo
	h.move(aDir, append(append([]string{}, fooDir...), hierarchy.AccountsDir, "A"))

	created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)

	changes := make([]models.Change, len(created))
	for i, m := range created {
		changes[i] = m.Change
	}
	assert.Equal(t, []models.Change{
		&models.OUCreate{Name: "baz", ParentID: testRoot},
		&models.OUCreateWithNonExistentParentOU{Name: "qux", ParentOUPath: "/baz"},
		&models.OUCreate{Name: "new", ParentID: h.foo},
		&models.AccountMove{AccountID: accountA, SourceParentID: h.bar, DestinationParentID: h.foo},
		&models.AccountMoveWithNonExistentParentOU{AccountID: accountB, SourceParentID: testRoot, DestinationPath: "/baz/qux"},
	}, changes)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []models.MigrationStatus{
		models.StatusApplied, models.StatusApplied, models.StatusApplied, models.StatusApplied, models.StatusApplied,
	}, statuses(result))

	bazID, ok := h.org.FindOrganizationalUnit(testRoot, "baz")
	require.True(t, ok)
	quxID, ok := h.org.FindOrganizationalUnit(bazID, "qux")
	require.True(t, ok)
	_, ok = h.org.FindOrganizationalUnit(h.foo, "new")
	assert.True(t, ok)
	assert.Equal(t, quxID, h.org.ParentOf(accountB))
	assert.Equal(t, h.foo, h.org.ParentOf(accountA))
}

func TestReconcile_RenameIsDeterministic(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	h.move(fooDir, []string{hierarchy.OrganizationalUnitsDir, "foo-renamed"})

	local, err := h.snapshots.Read(h.ctx, testRoot)
	require.NoError(t, err)

	view := NewLiveView(h.org)
	first, err := h.reconciler.Diff(h.ctx, local, view)
	require.NoError(t, err)
	second, err := h.reconciler.Diff(h.ctx, local, view)
	require.NoError(t, err)

	assert.Equal(t, []models.Change{&models.OURename{Name: "foo-renamed", OrganizationalUnitID: h.foo}}, first)
	assert.Equal(t, first, second)
}

func TestReconcile_PolicyChanges(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	tightened := `{"Version":"2012-10-17","Statement":[{"Effect":"Deny","Action":["organizations:LeaveOrganization","account:CloseAccount"],"Resource":"*"}]}`
	h.writeFile(tightened, hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir, "deny-leave", hierarchy.PolicyDocumentFile)
	h.writeFile(denyLeaveDocument, hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir, "deny-root", hierarchy.PolicyDocumentFile)
	h.writeAttached([]models.PolicyRecordEntry{{Name: "deny-root"}}, aDir...)

	created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)

	changes := make([]models.Change, len(created))
	for i, m := range created {
		changes[i] = m.Change
	}
	assert.Equal(t, []models.Change{
		&models.PolicyContentUpdate{ID: h.denyLeave, Content: tightened},
		&models.PolicyCreate{Name: "deny-root", Content: denyLeaveDocument},
		&models.PolicyAttach{PolicyName: "deny-root", TargetID: accountA},
	}, changes)

	result, err := h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count(models.StatusApplied))

	attached, err := h.org.ListPoliciesForTarget(h.ctx, accountA)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, "deny-root", attached[0].Name)

	policy, err := h.org.DescribePolicy(h.ctx, h.denyLeave)
	require.NoError(t, err)
	assert.Equal(t, tightened, policy.Content)
}

func TestReconcile_ContentComparedAsJSON(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	// same document, different key order and whitespace
	h.writeFile(`{ "Statement": [{"Resource":"*","Action":"organizations:LeaveOrganization","Effect":"Deny"}], "Version": "2012-10-17" }`,
		hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir, "deny-leave", hierarchy.PolicyDocumentFile)

	created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestReconcile_ConsistencyErrorEmitsNothing(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	// an account the captured state does not know about
	h.writeYAML(&models.EntityMeta{Id: "333333333333", Name: "C"}, hierarchy.AccountsDir, "C", hierarchy.MetaFile)
	// plus a change that would otherwise be emitted
	h.mkdir(hierarchy.OrganizationalUnitsDir, "new")

	_, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstState)
	var consistency *models.ConsistencyError
	require.True(t, errors.As(err, &consistency))
	assert.Equal(t, "333333333333", consistency.Entity)

	listed, err := h.migrations.List(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

// targetTypeView reports an extra target of an unknown type for every policy
type targetTypeView struct {
	*SnapshotView
}

func (v targetTypeView) PolicyTargets(ctx context.Context, policyID string) ([]models.PolicyTarget, error) {
	targets, err := v.SnapshotView.PolicyTargets(ctx, policyID)
	return append(targets, models.PolicyTarget{TargetID: "x-1", Type: "SOMETHING_ELSE"}), err
}

func TestDiffPolicies_UnrecognizedTargetType(t *testing.T) {
	snap := hierarchy.NewSnapshot(testRoot)
	_, err := snap.Graph.Add(&models.HierarchyNode{ID: testRoot, Name: "Root", Kind: models.KindRoot})
	require.NoError(t, err)
	snap.Policies = []models.Policy{{Summary: models.PolicySummary{Id: "p-1", Name: "deny-leave"}, Content: denyLeaveDocument}}

	_, err = DiffPolicies(context.Background(), snap, targetTypeView{NewSnapshotView(snap)}, logger.Discard())
	var unrecognized *models.UnrecognizedTargetTypeError
	require.True(t, errors.As(err, &unrecognized))
	assert.Equal(t, "SOMETHING_ELSE", unrecognized.TargetType)
}

func delegatedSnapshot(t *testing.T, principals ...string) *hierarchy.Snapshot {
	t.Helper()
	snap := hierarchy.NewSnapshot(testRoot)
	for _, n := range []*models.HierarchyNode{
		{ID: testRoot, Name: "Root", Kind: models.KindRoot},
		{ID: accountA, Name: "A", Kind: models.KindAccount, Path: "/A"},
	} {
		_, err := snap.Graph.Add(n)
		require.NoError(t, err)
	}
	services := []models.DelegatedAdministrator{}
	for _, p := range principals {
		services = append(services, models.DelegatedAdministrator{AccountID: accountA, ServicePrincipal: p})
	}
	snap.Delegated[accountA] = services
	return snap
}

func TestDiffDelegated_Symmetry(t *testing.T) {
	ctx := context.Background()
	left := delegatedSnapshot(t, "a.amazonaws.com", "b.amazonaws.com")
	right := delegatedSnapshot(t, "b.amazonaws.com", "c.amazonaws.com")

	forward, err := DiffDelegated(ctx, left, NewSnapshotView(right), logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, []models.Change{
		&models.RegisterDelegatedAdministrator{AccountID: accountA, ServicePrincipal: "a.amazonaws.com"},
		&models.DeregisterDelegatedAdministrator{AccountID: accountA, ServicePrincipal: "c.amazonaws.com"},
	}, forward)

	backward, err := DiffDelegated(ctx, right, NewSnapshotView(left), logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, []models.Change{
		&models.RegisterDelegatedAdministrator{AccountID: accountA, ServicePrincipal: "c.amazonaws.com"},
		&models.DeregisterDelegatedAdministrator{AccountID: accountA, ServicePrincipal: "a.amazonaws.com"},
	}, backward)

	same, err := DiffDelegated(ctx, left, NewSnapshotView(left), logger.Discard())
	require.NoError(t, err)
	assert.Empty(t, same)
}

func TestDiffDelegated_NotRegisteredMeansEmpty(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	h.writeYAML([]models.DelegatedAdministrator{{ServicePrincipal: "securityhub.amazonaws.com"}},
		append(append([]string{}, bDir...), hierarchy.DelegatedAdministratorsFile)...)

	created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, &models.RegisterDelegatedAdministrator{AccountID: accountB, ServicePrincipal: "securityhub.amazonaws.com"}, created[0].Change)
}
