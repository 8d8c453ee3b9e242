package remotetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

func TestOrganization_MoveAndParents(t *testing.T) {
	ctx := context.Background()
	org := NewOrganization("r-abcd")
	foo := org.SeedOrganizationalUnit("r-abcd", "foo")
	org.SeedAccount("r-abcd", "111111111111", "A", "a@example.com")

	parents, err := org.ListParents(ctx, "111111111111")
	require.NoError(t, err)
	assert.Equal(t, []models.ParentRef{{ID: "r-abcd", Kind: models.KindRoot}}, parents)

	err = org.MoveAccount(ctx, "111111111111", foo, "r-abcd")
	assert.True(t, remote.HasCode(err, remote.CodeSourceParentNotFound))

	require.NoError(t, org.MoveAccount(ctx, "111111111111", "r-abcd", foo))
	assert.Equal(t, foo, org.ParentOf("111111111111"))
	assert.Equal(t, 1, org.Mutations())
	assert.Equal(t, 2, org.Calls(remote.OpMoveAccount))
}

func TestOrganization_DelegatedAdministrators(t *testing.T) {
	ctx := context.Background()
	org := NewOrganization("r-abcd")
	org.SeedAccount("r-abcd", "111111111111", "A", "a@example.com")

	_, err := org.ListDelegatedServicesForAccount(ctx, "111111111111")
	assert.True(t, remote.IsAccountNotRegistered(err))

	require.NoError(t, org.RegisterDelegatedAdministrator(ctx, "111111111111", "guardduty.amazonaws.com"))
	err = org.RegisterDelegatedAdministrator(ctx, "111111111111", "guardduty.amazonaws.com")
	assert.True(t, remote.HasCode(err, remote.CodeAccountAlreadyRegistered))

	services, err := org.ListDelegatedServicesForAccount(ctx, "111111111111")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.NotNil(t, services[0].DelegationEnabledDate)

	admins, err := org.ListDelegatedAdministrators(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DelegatedAccount{{ID: "111111111111", Name: "A"}}, admins)
}

func TestOrganization_FailOn(t *testing.T) {
	org := NewOrganization("r-abcd")
	boom := remote.NewProviderError(remote.OpListRoots, "ServiceException", "boom")
	org.FailOn(remote.OpListRoots, boom)

	_, err := org.ListRoots(context.Background())
	assert.True(t, errors.Is(err, boom))
}
