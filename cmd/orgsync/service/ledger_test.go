package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

func TestFilterEvaluator_Match(t *testing.T) {
	filter, err := NewFilterEvaluator()
	require.NoError(t, err)

	m, err := models.NewMigration("0000000000000000001_OU_RENAME", testRoot, &models.OURename{Name: "foo", OrganizationalUnitID: "ou-1"})
	require.NoError(t, err)
	m.Status = models.StatusFailed

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{`status == "FAILED"`, true},
		{`status == "APPLIED"`, false},
		{`extension == "aws_organized" && migration_type.startsWith("OU_")`, true},
		{`params.organizational_unit_id == "ou-1"`, true},
		{`has(params.parent_id)`, false},
	}
	for _, tt := range tests {
		got, err := filter.Match(tt.expr, m)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
	assert.Equal(t, len(tests)-1, filter.CacheSize())
}

func TestFilterEvaluator_Errors(t *testing.T) {
	filter, err := NewFilterEvaluator()
	require.NoError(t, err)

	err = filter.Compile(`status ==`)
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, `status ==`, filterErr.Expr)
	assert.Error(t, filter.Compile(`unknown_variable == 1`))

	m, err := models.NewMigration("0000000000000000001_OU_RENAME", testRoot, &models.OURename{Name: "foo", OrganizationalUnitID: "ou-1"})
	require.NoError(t, err)
	_, err = filter.Match(`migration_type`, m)
	assert.ErrorAs(t, err, &filterErr)
}

func TestLedger_ListWithStatusFilter(t *testing.T) {
	h := newHarness(t)
	h.importOrganization()

	created, err := h.migrations.AppendAll(h.ctx, testRoot, []models.Change{
		&models.OURename{Name: "foo2", OrganizationalUnitID: h.foo},
		&models.RegisterDelegatedAdministrator{AccountID: accountB, ServicePrincipal: "securityhub.amazonaws.com"},
		&models.OURename{Name: "bar2", OrganizationalUnitID: h.bar},
	})
	require.NoError(t, err)

	h.org.FailOn(remote.OpRegisterDelegatedAdministrator,
		remote.NewProviderError(remote.OpRegisterDelegatedAdministrator, "AccessDeniedException", "denied"))
	_, err = h.migrator(true).Migrate(h.ctx, testRoot)
	require.NoError(t, err)

	all, err := h.ledger.List(h.ctx, testRoot, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := range created {
		assert.Equal(t, created[i].ID, all[i].ID)
	}

	failed, err := h.ledger.List(h.ctx, testRoot, `status == "FAILED"`)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, created[1].ID, failed[0].ID)
	assert.Contains(t, failed[0].Message, "AccessDeniedException")

	renames, err := h.ledger.List(h.ctx, testRoot, `migration_type == "OU_RENAME" && status == "APPLIED"`)
	require.NoError(t, err)
	assert.Len(t, renames, 2)

	_, err = h.ledger.List(h.ctx, testRoot, `status ==`)
	assert.Error(t, err)

	got, err := h.ledger.Get(h.ctx, testRoot, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, got.Status)
	assert.Equal(t, models.StatusOK, got.Message)
}
