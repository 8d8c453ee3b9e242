package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

// DiffPolicies compares policy definitions, then the directly attached policies of
// every entity. AWS managed policies are never diffed.
func DiffPolicies(ctx context.Context, local *hierarchy.Snapshot, view RemoteView, log *logger.Logger) ([]models.Change, error) {
	var changes []models.Change

	for _, policy := range local.Policies {
		summary := policy.Summary
		if summary.AwsManaged {
			continue
		}

		content, err := compactJSON(policy.Content)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", summary.Name, err)
		}

		if summary.Id == "" {
			changes = append(changes, &models.PolicyCreate{
				Name:        summary.Name,
				Description: summary.Description,
				Content:     content,
			})
			continue
		}

		remotePolicy, err := view.Policy(ctx, summary.Id)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", summary.Id, err)
		}
		if err := checkPolicyTargets(ctx, view, summary.Id); err != nil {
			return nil, err
		}

		if remotePolicy.Summary.Name != summary.Name || remotePolicy.Summary.Description != summary.Description {
			changes = append(changes, &models.PolicyDetailsUpdate{
				ID:          summary.Id,
				Name:        summary.Name,
				Description: summary.Description,
			})
		}

		if !jsonpatch.Equal([]byte(content), []byte(remotePolicy.Content)) {
			if patch, err := jsonpatch.CreateMergePatch([]byte(remotePolicy.Content), []byte(content)); err == nil {
				log.Debug("policy content differs", "policy_id", summary.Id, "merge_patch", string(patch))
			}
			changes = append(changes, &models.PolicyContentUpdate{ID: summary.Id, Content: content})
		}
	}

	err := local.Graph.Walk(func(key string, node *models.HierarchyNode) error {
		attached := local.Attachments[key]
		if len(attached) == 0 {
			return nil
		}
		if !node.Exists() {
			log.Warn("attachment target has no id, skipping", "path", node.Path)
			return nil
		}

		remoteAttached, err := view.AttachedPolicies(ctx, node.ID)
		if err != nil {
			return fmt.Errorf("policies for target %s: %w", node.ID, err)
		}

		for _, a := range attached {
			if a.Origin != "" && a.Origin != models.OriginAttached {
				continue
			}
			policyID := a.PolicyID
			if policyID == "" {
				if p, ok := local.PolicyByName(a.PolicyName); ok {
					policyID = p.Summary.Id
				}
			}
			if attachedRemotely(remoteAttached, policyID, a.PolicyName) {
				continue
			}
			change := &models.PolicyAttach{PolicyID: policyID, TargetID: node.ID}
			if policyID == "" {
				change.PolicyName = a.PolicyName
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// attachedRemotely matches by id, or by name when the local entry has no id yet
func attachedRemotely(remote []models.PolicySummary, policyID, policyName string) bool {
	for _, r := range remote {
		if policyID != "" && r.Id == policyID {
			return true
		}
		if policyID == "" && r.Name == policyName {
			return true
		}
	}
	return false
}

func checkPolicyTargets(ctx context.Context, view RemoteView, policyID string) error {
	targets, err := view.PolicyTargets(ctx, policyID)
	if err != nil {
		return fmt.Errorf("targets of policy %s: %w", policyID, err)
	}
	for _, target := range targets {
		if err := checkTargetType(policyID, target); err != nil {
			return err
		}
	}
	return nil
}

func compactJSON(content string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(content)); err != nil {
		return "", fmt.Errorf("invalid policy document: %w", err)
	}
	return buf.String(), nil
}
