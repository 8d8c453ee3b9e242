package service

import (
	"context"
	"fmt"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

// DiffStructure compares OU names and account placement. OUs are visited
// breadth first so a parent's create always precedes its children's, then
// accounts. OU deletes and OU moves are not detected.
func DiffStructure(ctx context.Context, local *hierarchy.Snapshot, view RemoteView, log *logger.Logger) ([]models.Change, error) {
	var changes []models.Change

	for _, ou := range local.Graph.OrganizationalUnits() {
		if ou.Exists() {
			remoteName, err := view.OrganizationalUnitName(ctx, ou.ID)
			if err != nil {
				return nil, fmt.Errorf("organizational unit %s: %w", ou.ID, err)
			}
			if remoteName != ou.Name {
				changes = append(changes, &models.OURename{Name: ou.Name, OrganizationalUnitID: ou.ID})
			}
			continue
		}

		parent := local.Graph.Parent(ou)
		if parent.Exists() {
			changes = append(changes, &models.OUCreate{Name: ou.Name, ParentID: parent.ID})
		} else {
			changes = append(changes, &models.OUCreateWithNonExistentParentOU{Name: ou.Name, ParentOUPath: parent.Path})
		}
	}

	for _, account := range local.Graph.Accounts() {
		if !account.Exists() {
			log.Warn("account has no id, skipping", "path", account.Path)
			continue
		}

		parents, err := view.Parents(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("parents of account %s: %w", account.ID, err)
		}
		if len(parents) != 1 {
			return nil, &models.ConsistencyError{
				Entity: account.ID,
				Reason: fmt.Sprintf("account has %d parents, expected exactly 1", len(parents)),
			}
		}
		remoteParentID := parents[0].ID

		parent := local.Graph.Parent(account)
		switch {
		case !parent.Exists():
			changes = append(changes, &models.AccountMoveWithNonExistentParentOU{
				AccountID:       account.ID,
				SourceParentID:  remoteParentID,
				DestinationPath: parent.Path,
			})
		case parent.ID != remoteParentID:
			changes = append(changes, &models.AccountMove{
				AccountID:           account.ID,
				SourceParentID:      remoteParentID,
				DestinationParentID: parent.ID,
			})
		}
	}

	return changes, nil
}
