package service

import (
	"context"
	"fmt"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

// ResolutionError means a symbolic reference in a migration (a logical path or a
// policy name) matched nothing in the live organization
type ResolutionError struct {
	Kind      string
	Reference string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %q not found in organization", e.Kind, e.Reference)
}

// applier performs one migration against the live organization
type applier struct {
	client remote.Client
	rootID string
}

// apply dispatches on the closed set of change kinds
func (a *applier) apply(ctx context.Context, change models.Change) error {
	switch c := change.(type) {
	case *models.OUCreate:
		_, err := a.client.CreateOrganizationalUnit(ctx, c.ParentID, c.Name)
		return err

	case *models.OUCreateWithNonExistentParentOU:
		parentID, err := a.resolveContainer(ctx, c.ParentOUPath)
		if err != nil {
			return err
		}
		_, err = a.client.CreateOrganizationalUnit(ctx, parentID, c.Name)
		return err

	case *models.OURename:
		return a.client.UpdateOrganizationalUnit(ctx, c.OrganizationalUnitID, c.Name)

	case *models.AccountMove:
		return a.client.MoveAccount(ctx, c.AccountID, c.SourceParentID, c.DestinationParentID)

	case *models.AccountMoveWithNonExistentParentOU:
		destinationID, err := a.resolveContainer(ctx, c.DestinationPath)
		if err != nil {
			return err
		}
		return a.client.MoveAccount(ctx, c.AccountID, c.SourceParentID, destinationID)

	case *models.PolicyCreate:
		_, err := a.client.CreatePolicy(ctx, c.Name, c.Description, c.Content)
		return err

	case *models.PolicyDetailsUpdate:
		return a.client.UpdatePolicy(ctx, c.ID, remote.PolicyUpdate{Name: &c.Name, Description: &c.Description})

	case *models.PolicyContentUpdate:
		return a.client.UpdatePolicy(ctx, c.ID, remote.PolicyUpdate{Content: &c.Content})

	case *models.PolicyAttach:
		policyID, err := a.policyID(ctx, c.PolicyID, c.PolicyName)
		if err != nil {
			return err
		}
		return settled(a.client.AttachPolicy(ctx, policyID, c.TargetID), remote.CodeDuplicatePolicyAttachment)

	case *models.RegisterDelegatedAdministrator:
		return settled(a.client.RegisterDelegatedAdministrator(ctx, c.AccountID, c.ServicePrincipal), remote.CodeAccountAlreadyRegistered)

	case *models.DeregisterDelegatedAdministrator:
		return settled(a.client.DeregisterDelegatedAdministrator(ctx, c.AccountID, c.ServicePrincipal), remote.CodeAccountNotRegistered)

	case *models.AttachPolicy:
		policyID, targetID, err := a.baselineRefs(ctx, c.PolicyID, c.PolicyName, c.TargetID, c.TargetPath)
		if err != nil {
			return err
		}
		return settled(a.client.AttachPolicy(ctx, policyID, targetID), remote.CodeDuplicatePolicyAttachment)

	case *models.DetachPolicy:
		policyID, targetID, err := a.baselineRefs(ctx, c.PolicyID, c.PolicyName, c.TargetID, c.TargetPath)
		if err != nil {
			return err
		}
		return settled(a.client.DetachPolicy(ctx, policyID, targetID), remote.CodePolicyNotAttached)

	default:
		return fmt.Errorf("no handler for migration type %s", change.MigrationType())
	}
}

// settled drops a provider error saying the organization is already in the
// state the migration asks for
func settled(err error, code string) error {
	if remote.HasCode(err, code) {
		return nil
	}
	return err
}

func (a *applier) baselineRefs(ctx context.Context, policyID, policyName, targetID, targetPath string) (string, string, error) {
	policyID, err := a.policyID(ctx, policyID, policyName)
	if err != nil {
		return "", "", err
	}
	if targetID == "" {
		targetID, err = a.resolveTarget(ctx, targetPath)
		if err != nil {
			return "", "", err
		}
	}
	return policyID, targetID, nil
}

// policyID returns id, or looks the policy up by name
func (a *applier) policyID(ctx context.Context, id, name string) (string, error) {
	if id != "" {
		return id, nil
	}
	policies, err := a.client.ListPolicies(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range policies {
		if p.Name == name {
			return p.Id, nil
		}
	}
	return "", &ResolutionError{Kind: "policy", Reference: name}
}

// resolveContainer walks a logical path of OU names down from the root
func (a *applier) resolveContainer(ctx context.Context, path string) (string, error) {
	current := a.rootID
	for _, name := range hierarchy.SplitLogical(path) {
		id, found, err := a.findChild(ctx, current, name, models.KindOrganizationalUnit)
		if err != nil {
			return "", err
		}
		if !found {
			return "", &ResolutionError{Kind: "organizational unit", Reference: path}
		}
		current = id
	}
	return current, nil
}

// resolveTarget resolves the path of a root, OU or account
func (a *applier) resolveTarget(ctx context.Context, path string) (string, error) {
	names := hierarchy.SplitLogical(path)
	if len(names) == 0 {
		return a.rootID, nil
	}
	parentID, err := a.resolveContainer(ctx, hierarchy.JoinLogical(names[:len(names)-1]...))
	if err != nil {
		return "", err
	}
	last := names[len(names)-1]
	for _, kind := range []models.NodeKind{models.KindOrganizationalUnit, models.KindAccount} {
		id, found, err := a.findChild(ctx, parentID, last, kind)
		if err != nil {
			return "", err
		}
		if found {
			return id, nil
		}
	}
	return "", &ResolutionError{Kind: "target", Reference: path}
}

func (a *applier) findChild(ctx context.Context, parentID, name string, kind models.NodeKind) (string, bool, error) {
	ids, err := a.client.ListChildren(ctx, parentID, kind)
	if err != nil {
		return "", false, err
	}
	for _, id := range ids {
		var node *models.HierarchyNode
		if kind == models.KindAccount {
			node, err = a.client.DescribeAccount(ctx, id)
		} else {
			node, err = a.client.DescribeOrganizationalUnit(ctx, id)
		}
		if err != nil {
			return "", false, err
		}
		if node.Name == name {
			return id, true, nil
		}
	}
	return "", false, nil
}
