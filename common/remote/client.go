package remote

import (
	"context"

	"github.com/lyzr/orgsync/common/models"
)

// Reader lists and describes the live hierarchy. Every list call returns all pages.
type Reader interface {
	ListRoots(ctx context.Context) ([]models.HierarchyNode, error)

	// ListChildren returns the ids of the direct children of a root or OU of one kind
	ListChildren(ctx context.Context, parentID string, kind models.NodeKind) ([]string, error)
	ListParents(ctx context.Context, childID string) ([]models.ParentRef, error)

	// Describe calls leave Path empty; position is the caller's concern
	DescribeOrganizationalUnit(ctx context.Context, ouID string) (*models.HierarchyNode, error)
	DescribeAccount(ctx context.Context, accountID string) (*models.HierarchyNode, error)

	ListPolicies(ctx context.Context) ([]models.PolicySummary, error)
	DescribePolicy(ctx context.Context, policyID string) (*models.Policy, error)
	ListPoliciesForTarget(ctx context.Context, targetID string) ([]models.PolicySummary, error)
	ListTargetsForPolicy(ctx context.Context, policyID string) ([]models.PolicyTarget, error)

	ListDelegatedAdministrators(ctx context.Context) ([]models.DelegatedAccount, error)

	// ListDelegatedServicesForAccount fails with a ProviderError coded
	// CodeAccountNotRegistered when the account delegates nothing
	ListDelegatedServicesForAccount(ctx context.Context, accountID string) ([]models.DelegatedAdministrator, error)
}

// Mutator changes the live hierarchy
type Mutator interface {
	CreateOrganizationalUnit(ctx context.Context, parentID, name string) (string, error)
	UpdateOrganizationalUnit(ctx context.Context, ouID, name string) error
	MoveAccount(ctx context.Context, accountID, sourceParentID, destinationParentID string) error

	CreatePolicy(ctx context.Context, name, description, content string) (string, error)
	UpdatePolicy(ctx context.Context, policyID string, update PolicyUpdate) error
	AttachPolicy(ctx context.Context, policyID, targetID string) error
	DetachPolicy(ctx context.Context, policyID, targetID string) error

	RegisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error
	DeregisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error
}

// Client is the full remote hierarchy API, scoped to one invocation
type Client interface {
	Reader
	Mutator
}

// PolicyUpdate carries the fields to change; nil fields are left untouched
type PolicyUpdate struct {
	Name        *string
	Description *string
	Content     *string
}

// Operation names, used for throttling classes and metrics labels
const (
	OpListRoots                        = "ListRoots"
	OpListChildren                     = "ListChildren"
	OpListParents                      = "ListParents"
	OpDescribeOrganizationalUnit       = "DescribeOrganizationalUnit"
	OpDescribeAccount                  = "DescribeAccount"
	OpListPolicies                     = "ListPolicies"
	OpDescribePolicy                   = "DescribePolicy"
	OpListPoliciesForTarget            = "ListPoliciesForTarget"
	OpListTargetsForPolicy             = "ListTargetsForPolicy"
	OpListDelegatedAdministrators      = "ListDelegatedAdministrators"
	OpListDelegatedServicesForAccount  = "ListDelegatedServicesForAccount"
	OpCreateOrganizationalUnit         = "CreateOrganizationalUnit"
	OpUpdateOrganizationalUnit         = "UpdateOrganizationalUnit"
	OpMoveAccount                      = "MoveAccount"
	OpCreatePolicy                     = "CreatePolicy"
	OpUpdatePolicy                     = "UpdatePolicy"
	OpAttachPolicy                     = "AttachPolicy"
	OpDetachPolicy                     = "DetachPolicy"
	OpRegisterDelegatedAdministrator   = "RegisterDelegatedAdministrator"
	OpDeregisterDelegatedAdministrator = "DeregisterDelegatedAdministrator"
)
