package remote

import (
	"context"

	"github.com/lyzr/orgsync/common/models"
)

// Throttle blocks until an operation may be issued
type Throttle interface {
	Wait(ctx context.Context, op string) error
}

// CallObserver is told about every call after it returns
type CallObserver func(op string, err error)

// ThrottledClient paces calls to the inner client and reports each one
type ThrottledClient struct {
	inner    Client
	throttle Throttle
	observe  CallObserver
}

// NewThrottledClient wraps inner; observe may be nil
func NewThrottledClient(inner Client, throttle Throttle, observe CallObserver) *ThrottledClient {
	if observe == nil {
		observe = func(string, error) {}
	}
	return &ThrottledClient{inner: inner, throttle: throttle, observe: observe}
}

func (t *ThrottledClient) ListRoots(ctx context.Context) ([]models.HierarchyNode, error) {
	if err := t.throttle.Wait(ctx, OpListRoots); err != nil {
		return nil, err
	}
	out, err := t.inner.ListRoots(ctx)
	t.observe(OpListRoots, err)
	return out, err
}

func (t *ThrottledClient) ListChildren(ctx context.Context, parentID string, kind models.NodeKind) ([]string, error) {
	if err := t.throttle.Wait(ctx, OpListChildren); err != nil {
		return nil, err
	}
	out, err := t.inner.ListChildren(ctx, parentID, kind)
	t.observe(OpListChildren, err)
	return out, err
}

func (t *ThrottledClient) ListParents(ctx context.Context, childID string) ([]models.ParentRef, error) {
	if err := t.throttle.Wait(ctx, OpListParents); err != nil {
		return nil, err
	}
	out, err := t.inner.ListParents(ctx, childID)
	t.observe(OpListParents, err)
	return out, err
}

func (t *ThrottledClient) DescribeOrganizationalUnit(ctx context.Context, ouID string) (*models.HierarchyNode, error) {
	if err := t.throttle.Wait(ctx, OpDescribeOrganizationalUnit); err != nil {
		return nil, err
	}
	out, err := t.inner.DescribeOrganizationalUnit(ctx, ouID)
	t.observe(OpDescribeOrganizationalUnit, err)
	return out, err
}

func (t *ThrottledClient) DescribeAccount(ctx context.Context, accountID string) (*models.HierarchyNode, error) {
	if err := t.throttle.Wait(ctx, OpDescribeAccount); err != nil {
		return nil, err
	}
	out, err := t.inner.DescribeAccount(ctx, accountID)
	t.observe(OpDescribeAccount, err)
	return out, err
}

func (t *ThrottledClient) ListPolicies(ctx context.Context) ([]models.PolicySummary, error) {
	if err := t.throttle.Wait(ctx, OpListPolicies); err != nil {
		return nil, err
	}
	out, err := t.inner.ListPolicies(ctx)
	t.observe(OpListPolicies, err)
	return out, err
}

func (t *ThrottledClient) DescribePolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	if err := t.throttle.Wait(ctx, OpDescribePolicy); err != nil {
		return nil, err
	}
	out, err := t.inner.DescribePolicy(ctx, policyID)
	t.observe(OpDescribePolicy, err)
	return out, err
}

func (t *ThrottledClient) ListPoliciesForTarget(ctx context.Context, targetID string) ([]models.PolicySummary, error) {
	if err := t.throttle.Wait(ctx, OpListPoliciesForTarget); err != nil {
		return nil, err
	}
	out, err := t.inner.ListPoliciesForTarget(ctx, targetID)
	t.observe(OpListPoliciesForTarget, err)
	return out, err
}

func (t *ThrottledClient) ListTargetsForPolicy(ctx context.Context, policyID string) ([]models.PolicyTarget, error) {
	if err := t.throttle.Wait(ctx, OpListTargetsForPolicy); err != nil {
		return nil, err
	}
	out, err := t.inner.ListTargetsForPolicy(ctx, policyID)
	t.observe(OpListTargetsForPolicy, err)
	return out, err
}

func (t *ThrottledClient) ListDelegatedAdministrators(ctx context.Context) ([]models.DelegatedAccount, error) {
	if err := t.throttle.Wait(ctx, OpListDelegatedAdministrators); err != nil {
		return nil, err
	}
	out, err := t.inner.ListDelegatedAdministrators(ctx)
	t.observe(OpListDelegatedAdministrators, err)
	return out, err
}

func (t *ThrottledClient) ListDelegatedServicesForAccount(ctx context.Context, accountID string) ([]models.DelegatedAdministrator, error) {
	if err := t.throttle.Wait(ctx, OpListDelegatedServicesForAccount); err != nil {
		return nil, err
	}
	out, err := t.inner.ListDelegatedServicesForAccount(ctx, accountID)
	t.observe(OpListDelegatedServicesForAccount, err)
	return out, err
}

func (t *ThrottledClient) CreateOrganizationalUnit(ctx context.Context, parentID, name string) (string, error) {
	if err := t.throttle.Wait(ctx, OpCreateOrganizationalUnit); err != nil {
		return "", err
	}
	out, err := t.inner.CreateOrganizationalUnit(ctx, parentID, name)
	t.observe(OpCreateOrganizationalUnit, err)
	return out, err
}

func (t *ThrottledClient) UpdateOrganizationalUnit(ctx context.Context, ouID, name string) error {
	if err := t.throttle.Wait(ctx, OpUpdateOrganizationalUnit); err != nil {
		return err
	}
	err := t.inner.UpdateOrganizationalUnit(ctx, ouID, name)
	t.observe(OpUpdateOrganizationalUnit, err)
	return err
}

func (t *ThrottledClient) MoveAccount(ctx context.Context, accountID, sourceParentID, destinationParentID string) error {
	if err := t.throttle.Wait(ctx, OpMoveAccount); err != nil {
		return err
	}
	err := t.inner.MoveAccount(ctx, accountID, sourceParentID, destinationParentID)
	t.observe(OpMoveAccount, err)
	return err
}

func (t *ThrottledClient) CreatePolicy(ctx context.Context, name, description, content string) (string, error) {
	if err := t.throttle.Wait(ctx, OpCreatePolicy); err != nil {
		return "", err
	}
	out, err := t.inner.CreatePolicy(ctx, name, description, content)
	t.observe(OpCreatePolicy, err)
	return out, err
}

func (t *ThrottledClient) UpdatePolicy(ctx context.Context, policyID string, update PolicyUpdate) error {
	if err := t.throttle.Wait(ctx, OpUpdatePolicy); err != nil {
		return err
	}
	err := t.inner.UpdatePolicy(ctx, policyID, update)
	t.observe(OpUpdatePolicy, err)
	return err
}

func (t *ThrottledClient) AttachPolicy(ctx context.Context, policyID, targetID string) error {
	if err := t.throttle.Wait(ctx, OpAttachPolicy); err != nil {
		return err
	}
	err := t.inner.AttachPolicy(ctx, policyID, targetID)
	t.observe(OpAttachPolicy, err)
	return err
}

func (t *ThrottledClient) DetachPolicy(ctx context.Context, policyID, targetID string) error {
	if err := t.throttle.Wait(ctx, OpDetachPolicy); err != nil {
		return err
	}
	err := t.inner.DetachPolicy(ctx, policyID, targetID)
	t.observe(OpDetachPolicy, err)
	return err
}

func (t *ThrottledClient) RegisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	if err := t.throttle.Wait(ctx, OpRegisterDelegatedAdministrator); err != nil {
		return err
	}
	err := t.inner.RegisterDelegatedAdministrator(ctx, accountID, servicePrincipal)
	t.observe(OpRegisterDelegatedAdministrator, err)
	return err
}

func (t *ThrottledClient) DeregisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	if err := t.throttle.Wait(ctx, OpDeregisterDelegatedAdministrator); err != nil {
		return err
	}
	err := t.inner.DeregisterDelegatedAdministrator(ctx, accountID, servicePrincipal)
	t.observe(OpDeregisterDelegatedAdministrator, err)
	return err
}
