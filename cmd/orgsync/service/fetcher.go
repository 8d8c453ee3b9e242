package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

// FetcherService reads the complete live state of one root
type FetcherService struct {
	client remote.Reader
	log    *logger.Logger
}

// NewFetcherService creates a fetcher over a remote reader
func NewFetcherService(client remote.Reader, log *logger.Logger) *FetcherService {
	return &FetcherService{client: client, log: log}
}

// Fetch walks the hierarchy breadth first from the root, then collects policies,
// their targets and delegated administrators. Any remote error aborts the fetch.
func (s *FetcherService) Fetch(ctx context.Context, rootID string) (*hierarchy.Snapshot, error) {
	roots, err := s.client.ListRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	var root *models.HierarchyNode
	for i := range roots {
		if roots[i].ID == rootID {
			root = &roots[i]
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("root %s not found in organization", rootID)
	}

	snap := hierarchy.NewSnapshot(rootID)
	rootNode := *root
	rootNode.Path = models.RootPath
	if _, err := snap.Graph.Add(&rootNode); err != nil {
		return nil, err
	}

	if err := s.fetchHierarchy(ctx, snap, &rootNode); err != nil {
		return nil, err
	}
	if err := s.fetchPolicies(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.fetchDelegated(ctx, snap); err != nil {
		return nil, err
	}

	s.log.Info("organization fetched",
		"root_id", rootID,
		"nodes", len(snap.Graph.Nodes),
		"policies", len(snap.Policies),
		"delegated_accounts", len(snap.Delegated),
	)
	return snap, nil
}

func (s *FetcherService) fetchHierarchy(ctx context.Context, snap *hierarchy.Snapshot, root *models.HierarchyNode) error {
	queue := []*models.HierarchyNode{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		ouIDs, err := s.client.ListChildren(ctx, parent.ID, models.KindOrganizationalUnit)
		if err != nil {
			return fmt.Errorf("list organizational units of %s: %w", parent.ID, err)
		}
		for _, id := range ouIDs {
			ou, err := s.client.DescribeOrganizationalUnit(ctx, id)
			if err != nil {
				return fmt.Errorf("describe organizational unit %s: %w", id, err)
			}
			if err := s.addChild(snap, parent, ou); err != nil {
				return err
			}
			queue = append(queue, ou)
		}

		accountIDs, err := s.client.ListChildren(ctx, parent.ID, models.KindAccount)
		if err != nil {
			return fmt.Errorf("list accounts of %s: %w", parent.ID, err)
		}
		for _, id := range accountIDs {
			account, err := s.client.DescribeAccount(ctx, id)
			if err != nil {
				return fmt.Errorf("describe account %s: %w", id, err)
			}
			if err := s.addChild(snap, parent, account); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FetcherService) addChild(snap *hierarchy.Snapshot, parent, child *models.HierarchyNode) error {
	names := append(hierarchy.SplitLogical(parent.Path), child.Name)
	child.Path = hierarchy.JoinLogical(names...)
	child.ParentID = parent.ID
	if _, err := snap.Graph.Add(child); err != nil {
		return fmt.Errorf("index %s: %w", child.ID, err)
	}
	return nil
}

func (s *FetcherService) fetchPolicies(ctx context.Context, snap *hierarchy.Snapshot) error {
	summaries, err := s.client.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}

	for _, summary := range summaries {
		policy, err := s.client.DescribePolicy(ctx, summary.Id)
		if err != nil {
			return fmt.Errorf("describe policy %s: %w", summary.Id, err)
		}
		snap.Policies = append(snap.Policies, *policy)

		targets, err := s.client.ListTargetsForPolicy(ctx, summary.Id)
		if err != nil {
			return fmt.Errorf("list targets of policy %s: %w", summary.Id, err)
		}
		for _, target := range targets {
			if err := checkTargetType(summary.Id, target); err != nil {
				return err
			}
			if _, ok := snap.Graph.ByID[target.TargetID]; !ok {
				// attached under another root
				continue
			}
			snap.Attachments[target.TargetID] = append(snap.Attachments[target.TargetID], models.PolicyAttachment{
				PolicyID:   policy.Summary.Id,
				PolicyName: policy.Summary.Name,
				TargetID:   target.TargetID,
				Origin:     models.OriginAttached,
			})
		}
	}

	snap.SortPolicies()
	for key := range snap.Attachments {
		attachments := snap.Attachments[key]
		sort.SliceStable(attachments, func(i, j int) bool {
			return attachments[i].PolicyName < attachments[j].PolicyName
		})
	}
	return nil
}

func (s *FetcherService) fetchDelegated(ctx context.Context, snap *hierarchy.Snapshot) error {
	accounts, err := s.client.ListDelegatedAdministrators(ctx)
	if err != nil {
		return fmt.Errorf("list delegated administrators: %w", err)
	}

	for _, account := range accounts {
		if _, ok := snap.Graph.ByID[account.ID]; !ok {
			continue
		}
		services, err := s.client.ListDelegatedServicesForAccount(ctx, account.ID)
		if remote.IsAccountNotRegistered(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("list delegated services of %s: %w", account.ID, err)
		}
		for i := range services {
			services[i].AccountID = account.ID
		}
		snap.Delegated[account.ID] = services
	}
	return nil
}

func checkTargetType(policyID string, target models.PolicyTarget) error {
	if models.NodeKind(target.Type).Valid() {
		return nil
	}
	return &models.UnrecognizedTargetTypeError{
		PolicyID:   policyID,
		TargetID:   target.TargetID,
		TargetType: target.Type,
	}
}
