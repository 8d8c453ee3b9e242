package service

import (
	"context"
	"fmt"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

// DiffDelegated compares delegated administrator records by service principal.
// Only accounts carrying a local record are considered. Registers follow the
// local order, deregisters the remote order.
func DiffDelegated(ctx context.Context, local *hierarchy.Snapshot, view RemoteView, log *logger.Logger) ([]models.Change, error) {
	var changes []models.Change

	for _, account := range local.Graph.Accounts() {
		records, ok := local.Delegated[local.Graph.Key(account)]
		if !ok {
			continue
		}
		if !account.Exists() {
			log.Warn("delegated administrator record on account without id, skipping", "path", account.Path)
			continue
		}

		remoteServices, err := view.DelegatedServices(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("delegated services of %s: %w", account.ID, err)
		}

		localSet := principals(records)
		remoteSet := principals(remoteServices)

		seen := make(map[string]bool)
		for _, r := range records {
			if remoteSet[r.ServicePrincipal] || seen[r.ServicePrincipal] {
				continue
			}
			seen[r.ServicePrincipal] = true
			changes = append(changes, &models.RegisterDelegatedAdministrator{
				AccountID:        account.ID,
				ServicePrincipal: r.ServicePrincipal,
			})
		}
		for _, r := range remoteServices {
			if localSet[r.ServicePrincipal] {
				continue
			}
			changes = append(changes, &models.DeregisterDelegatedAdministrator{
				AccountID:        account.ID,
				ServicePrincipal: r.ServicePrincipal,
			})
		}
	}

	return changes, nil
}

func principals(services []models.DelegatedAdministrator) map[string]bool {
	set := make(map[string]bool, len(services))
	for _, s := range services {
		set[s.ServicePrincipal] = true
	}
	return set
}
