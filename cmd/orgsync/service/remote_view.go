package service

import (
	"context"
	"fmt"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

// RemoteView is the remote side of a reconciliation. It is answered either by
// the live organization or by the state file of the last import.
type RemoteView interface {
	Parents(ctx context.Context, childID string) ([]models.ParentRef, error)
	OrganizationalUnitName(ctx context.Context, ouID string) (string, error)
	Policy(ctx context.Context, policyID string) (*models.Policy, error)
	PolicyTargets(ctx context.Context, policyID string) ([]models.PolicyTarget, error)
	AttachedPolicies(ctx context.Context, targetID string) ([]models.PolicySummary, error)

	// DelegatedServices returns nothing, without error, for accounts that delegate nothing
	DelegatedServices(ctx context.Context, accountID string) ([]models.DelegatedAdministrator, error)
}

// LiveView answers from the remote API
type LiveView struct {
	client remote.Reader
}

// NewLiveView creates a view over the live organization
func NewLiveView(client remote.Reader) *LiveView {
	return &LiveView{client: client}
}

func (v *LiveView) Parents(ctx context.Context, childID string) ([]models.ParentRef, error) {
	return v.client.ListParents(ctx, childID)
}

func (v *LiveView) OrganizationalUnitName(ctx context.Context, ouID string) (string, error) {
	ou, err := v.client.DescribeOrganizationalUnit(ctx, ouID)
	if err != nil {
		return "", err
	}
	return ou.Name, nil
}

func (v *LiveView) Policy(ctx context.Context, policyID string) (*models.Policy, error) {
	return v.client.DescribePolicy(ctx, policyID)
}

func (v *LiveView) PolicyTargets(ctx context.Context, policyID string) ([]models.PolicyTarget, error) {
	return v.client.ListTargetsForPolicy(ctx, policyID)
}

func (v *LiveView) AttachedPolicies(ctx context.Context, targetID string) ([]models.PolicySummary, error) {
	return v.client.ListPoliciesForTarget(ctx, targetID)
}

func (v *LiveView) DelegatedServices(ctx context.Context, accountID string) ([]models.DelegatedAdministrator, error) {
	services, err := v.client.ListDelegatedServicesForAccount(ctx, accountID)
	if remote.IsAccountNotRegistered(err) {
		return nil, nil
	}
	return services, err
}

// SnapshotView answers from a previously fetched snapshot, without remote calls
type SnapshotView struct {
	snap *hierarchy.Snapshot
}

// NewSnapshotView creates a view over a fetched snapshot
func NewSnapshotView(snap *hierarchy.Snapshot) *SnapshotView {
	return &SnapshotView{snap: snap}
}

func (v *SnapshotView) Parents(_ context.Context, childID string) ([]models.ParentRef, error) {
	entry, ok := v.snap.Graph.ByID[childID]
	if !ok {
		return nil, nil
	}
	parent := v.snap.Graph.Parent(entry.Node)
	if parent == nil {
		return nil, nil
	}
	return []models.ParentRef{{ID: parent.ID, Kind: parent.Kind}}, nil
}

func (v *SnapshotView) OrganizationalUnitName(_ context.Context, ouID string) (string, error) {
	entry, ok := v.snap.Graph.ByID[ouID]
	if !ok || !entry.Node.IsOrganizationalUnit() {
		return "", fmt.Errorf("organizational unit %s not in state", ouID)
	}
	return entry.Node.Name, nil
}

func (v *SnapshotView) Policy(_ context.Context, policyID string) (*models.Policy, error) {
	p, ok := v.snap.PolicyByID(policyID)
	if !ok {
		return nil, fmt.Errorf("policy %s not in state", policyID)
	}
	return p, nil
}

func (v *SnapshotView) PolicyTargets(_ context.Context, policyID string) ([]models.PolicyTarget, error) {
	var out []models.PolicyTarget
	err := v.snap.Graph.Walk(func(key string, node *models.HierarchyNode) error {
		for _, a := range v.snap.Attachments[key] {
			if a.PolicyID == policyID {
				out = append(out, models.PolicyTarget{TargetID: node.ID, Name: node.Name, Type: string(node.Kind)})
			}
		}
		return nil
	})
	return out, err
}

func (v *SnapshotView) AttachedPolicies(_ context.Context, targetID string) ([]models.PolicySummary, error) {
	var out []models.PolicySummary
	for _, a := range v.snap.Attachments[targetID] {
		if p, ok := v.snap.PolicyByID(a.PolicyID); ok {
			out = append(out, p.Summary)
			continue
		}
		out = append(out, models.PolicySummary{Id: a.PolicyID, Name: a.PolicyName})
	}
	return out, nil
}

func (v *SnapshotView) DelegatedServices(_ context.Context, accountID string) ([]models.DelegatedAdministrator, error) {
	return v.snap.Delegated[accountID], nil
}
