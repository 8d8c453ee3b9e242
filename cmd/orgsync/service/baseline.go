package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/validation"
)

// BaselineService runs the policy baseline flow: capture which policies are
// attached where, then turn later edits of the local tree into attach and
// detach migrations
type BaselineService struct {
	snapshots  *repository.SnapshotRepository
	migrations *repository.MigrationRepository
	validator  *validation.ChangeValidator
	log        *logger.Logger
}

// NewBaselineService creates a new baseline service
func NewBaselineService(snapshots *repository.SnapshotRepository, migrations *repository.MigrationRepository, validator *validation.ChangeValidator, log *logger.Logger) *BaselineService {
	return &BaselineService{
		snapshots:  snapshots,
		migrations: migrations,
		validator:  validator,
		log:        log,
	}
}

// Capture records the currently attached policies of the local tree
func (s *BaselineService) Capture(ctx context.Context, rootID string) (map[string][]string, error) {
	local, err := s.snapshots.Read(ctx, rootID)
	if err != nil {
		return nil, err
	}
	baseline := local.AttachedByPath()
	if err := s.snapshots.WriteBaseline(ctx, rootID, baseline); err != nil {
		return nil, err
	}
	s.log.WithRootID(rootID).Info("policy baseline captured", "targets", len(baseline))
	return baseline, nil
}

// MakeMigrations appends ATTACH_POLICY and DETACH_POLICY migrations for the
// difference between the baseline and the local tree, then moves the baseline
// forward so the same edit is not emitted twice
func (s *BaselineService) MakeMigrations(ctx context.Context, rootID string) ([]*models.Migration, error) {
	initial, err := s.snapshots.ReadBaseline(ctx, rootID)
	if err != nil {
		return nil, err
	}
	local, err := s.snapshots.Read(ctx, rootID)
	if err != nil {
		return nil, err
	}
	current := local.AttachedByPath()

	changes := DiffBaseline(initial, current, local)
	for _, change := range changes {
		if err := s.validator.Validate(change); err != nil {
			return nil, fmt.Errorf("policy baseline %s: %w", rootID, err)
		}
	}

	created, err := s.migrations.AppendAll(ctx, rootID, changes)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.WriteBaseline(ctx, rootID, current); err != nil {
		return nil, err
	}
	s.log.WithRootID(rootID).Info("policy migrations made", "count", len(created))
	return created, nil
}

// DiffBaseline returns attaches (current minus initial) followed by detaches
// (initial minus current), each ordered by target path then policy name.
// Ids are filled from the local tree where known and resolved at apply time otherwise.
func DiffBaseline(initial, current map[string][]string, local *hierarchy.Snapshot) []models.Change {
	nodes := make(map[string]*models.HierarchyNode)
	_ = local.Graph.Walk(func(_ string, node *models.HierarchyNode) error {
		nodes[node.Path] = node
		return nil
	})

	ref := func(path, name string) (policyID, targetID string) {
		if p, ok := local.PolicyByName(name); ok {
			policyID = p.Summary.Id
		}
		if node, ok := nodes[path]; ok {
			targetID = node.ID
		}
		return policyID, targetID
	}

	var changes []models.Change
	for _, path := range sortedKeys(current) {
		for _, name := range difference(current[path], initial[path]) {
			policyID, targetID := ref(path, name)
			changes = append(changes, &models.AttachPolicy{
				PolicyName: name,
				PolicyID:   policyID,
				TargetPath: path,
				TargetID:   targetID,
			})
		}
	}
	for _, path := range sortedKeys(initial) {
		for _, name := range difference(initial[path], current[path]) {
			policyID, targetID := ref(path, name)
			changes = append(changes, &models.DetachPolicy{
				PolicyName: name,
				PolicyID:   policyID,
				TargetPath: path,
				TargetID:   targetID,
			})
		}
	}
	return changes
}

// difference returns the sorted names in a that are not in b
func difference(a, b []string) []string {
	exclude := make(map[string]bool, len(b))
	for _, name := range b {
		exclude[name] = true
	}
	var out []string
	for _, name := range a {
		if !exclude[name] {
			out = append(out, name)
			exclude[name] = true
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
