package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

func TestFetcher_BuildsSnapshot(t *testing.T) {
	h := newHarness(t)

	snap, err := NewFetcherService(h.org, logger.Discard()).Fetch(h.ctx, testRoot)
	require.NoError(t, err)

	bar := snap.Graph.Container("/foo/bar")
	require.NotNil(t, bar)
	assert.Equal(t, h.bar, bar.ID)
	assert.Equal(t, h.foo, bar.ParentID)

	entry, ok := snap.Graph.ByID[accountA]
	require.True(t, ok)
	assert.Equal(t, "/foo/bar/A", entry.Node.Path)
	assert.Equal(t, "a@example.com", entry.Node.Email)

	require.Len(t, snap.Policies, 2)
	assert.Equal(t, "FullAWSAccess", snap.Policies[0].Summary.Name)
	assert.True(t, snap.Policies[0].Summary.AwsManaged)

	require.Len(t, snap.Attachments[h.foo], 1)
	assert.Equal(t, models.PolicyAttachment{
		PolicyID:   h.denyLeave,
		PolicyName: "deny-leave",
		TargetID:   h.foo,
		Origin:     models.OriginAttached,
	}, snap.Attachments[h.foo][0])

	require.Len(t, snap.Delegated[accountA], 1)
	assert.Equal(t, guardDuty, snap.Delegated[accountA][0].ServicePrincipal)
	assert.NotContains(t, snap.Delegated, accountB)
}

func TestFetcher_UnknownRoot(t *testing.T) {
	h := newHarness(t)

	_, err := NewFetcherService(h.org, logger.Discard()).Fetch(h.ctx, "r-zzzz")
	assert.Error(t, err)
}

func TestImport_WritesStateAndTree(t *testing.T) {
	h := newHarness(t)

	result, err := h.importer.Import(h.ctx, testRoot)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 5, result.Nodes)
	assert.Equal(t, 2, result.Policies)
	assert.Equal(t, 1, result.DelegatedAccounts)

	assert.FileExists(t, h.path(append(fooDir, hierarchy.PolicyRecordFile)...))
	assert.FileExists(t, h.path(append(aDir, hierarchy.DelegatedAdministratorsFile)...))
	assert.FileExists(t, h.path(hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir, "deny-leave", hierarchy.PolicyDocumentFile))

	state, err := h.snapshots.ReadState(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Len(t, state.Graph.Nodes, 5)

	local, err := h.snapshots.Read(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, h.bar, local.Graph.Container("/foo/bar").ID)
	assert.Equal(t, testRoot, local.Graph.Root().ID)
}

func TestImport_FetchFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	throttled := remote.NewProviderError(remote.OpListTargetsForPolicy, "TooManyRequestsException", "slow down")
	h.org.FailOn(remote.OpListTargetsForPolicy, throttled)

	_, err := h.importer.Import(h.ctx, testRoot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, throttled))
	assert.NoDirExists(t, h.path())
}

func TestImport_ReimportAfterRemoteAccountMove(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	require.NoError(t, h.org.MoveAccount(h.ctx, accountA, h.bar, testRoot))
	h.importOrganization()

	assert.NoDirExists(t, h.path(aDir...))
	assert.FileExists(t, h.path(hierarchy.AccountsDir, "A", hierarchy.DelegatedAdministratorsFile))

	local, err := h.snapshots.Read(h.ctx, testRoot)
	require.NoError(t, err)
	entry, ok := local.Graph.ByID[accountA]
	require.True(t, ok)
	assert.Equal(t, "/A", entry.Node.Path)

	created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestImport_ReimportAfterRemoteRenameKeepsLocalFolders(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()
	// authored locally, not yet created remotely
	h.mkdir(append(append([]string{}, fooDir...), hierarchy.OrganizationalUnitsDir, "new")...)

	require.NoError(t, h.org.UpdateOrganizationalUnit(h.ctx, h.foo, "foo2"))
	h.importOrganization()

	assert.NoDirExists(t, h.path(fooDir...))
	assert.DirExists(t, h.path(hierarchy.OrganizationalUnitsDir, "foo2", hierarchy.OrganizationalUnitsDir, "new"))

	local, err := h.snapshots.Read(h.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, h.bar, local.Graph.Container("/foo2/bar").ID)
	assert.Equal(t, "/foo2/bar/A", local.Graph.ByID[accountA].Node.Path)

	created, err := h.reconciler.MakeMigrations(h.ctx, testRoot, AgainstLive)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, &models.OUCreate{Name: "new", ParentID: h.foo}, created[0].Change)
}
