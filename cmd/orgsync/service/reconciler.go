package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
	"github.com/lyzr/orgsync/common/telemetry"
	"github.com/lyzr/orgsync/common/validation"
)

// Against selects what the local tree is compared to
type Against string

const (
	AgainstLive  Against = "live"
	AgainstState Against = "state"
)

// ParseAgainst validates a --against value
func ParseAgainst(s string) (Against, error) {
	switch Against(s) {
	case AgainstLive, AgainstState:
		return Against(s), nil
	default:
		return "", fmt.Errorf("unknown comparison target %q (want live or state)", s)
	}
}

// ReconcileService turns differences between the local tree and the remote side
// into ledger entries
type ReconcileService struct {
	client     remote.Reader
	snapshots  *repository.SnapshotRepository
	migrations *repository.MigrationRepository
	validator  *validation.ChangeValidator
	telemetry  *telemetry.Telemetry
	log        *logger.Logger
}

// ReconcileServiceOpts contains options for creating a ReconcileService
type ReconcileServiceOpts struct {
	Client     remote.Reader
	Snapshots  *repository.SnapshotRepository
	Migrations *repository.MigrationRepository
	Validator  *validation.ChangeValidator
	Telemetry  *telemetry.Telemetry
	Logger     *logger.Logger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(opts *ReconcileServiceOpts) *ReconcileService {
	return &ReconcileService{
		client:     opts.Client,
		snapshots:  opts.Snapshots,
		migrations: opts.Migrations,
		validator:  opts.Validator,
		telemetry:  opts.Telemetry,
		log:        opts.Logger,
	}
}

// MakeMigrations diffs the local tree of rootID and appends the changes to the ledger.
// Nothing is appended unless every diff and every validation succeeded.
func (s *ReconcileService) MakeMigrations(ctx context.Context, rootID string, against Against) ([]*models.Migration, error) {
	log := s.log.WithRootID(rootID)

	local, err := s.snapshots.Read(ctx, rootID)
	if err != nil {
		return nil, err
	}

	view, err := s.view(ctx, rootID, against)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	changes, err := s.Diff(ctx, local, view)
	s.telemetry.RecordDuration("reconcile", start)
	if err != nil {
		return nil, err
	}

	for _, change := range changes {
		if err := s.validator.Validate(change); err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", rootID, err)
		}
	}

	created, err := s.migrations.AppendAll(ctx, rootID, changes)
	if err != nil {
		return nil, err
	}
	log.Info("migrations made", "against", against, "count", len(created))
	return created, nil
}

// Diff runs the structure, policy and delegated administrator diffs in that order
func (s *ReconcileService) Diff(ctx context.Context, local *hierarchy.Snapshot, view RemoteView) ([]models.Change, error) {
	structure, err := DiffStructure(ctx, local, view, s.log)
	if err != nil {
		return nil, fmt.Errorf("structure diff: %w", err)
	}
	policies, err := DiffPolicies(ctx, local, view, s.log)
	if err != nil {
		return nil, fmt.Errorf("policy diff: %w", err)
	}
	delegated, err := DiffDelegated(ctx, local, view, s.log)
	if err != nil {
		return nil, fmt.Errorf("delegated administrator diff: %w", err)
	}

	changes := make([]models.Change, 0, len(structure)+len(policies)+len(delegated))
	changes = append(changes, structure...)
	changes = append(changes, policies...)
	changes = append(changes, delegated...)
	return changes, nil
}

func (s *ReconcileService) view(ctx context.Context, rootID string, against Against) (RemoteView, error) {
	switch against {
	case AgainstState:
		snap, err := s.snapshots.ReadState(ctx, rootID)
		if err != nil {
			return nil, err
		}
		return NewSnapshotView(snap), nil
	case AgainstLive, "":
		return NewLiveView(s.client), nil
	default:
		return nil, fmt.Errorf("unknown comparison target %q", against)
	}
}
