package models

import (
	"fmt"
	"strings"
)

// Extension is the reconciliation domain that produced a migration
type Extension string

const (
	ExtensionStructure               Extension = "aws_organized"
	ExtensionServiceControlPolicies  Extension = "service_control_policies"
	ExtensionDelegatedAdministrators Extension = "delegated_administrators"
	ExtensionPolicyBaseline          Extension = "aws_organized_policies"
)

// MigrationType is one of the closed set of change kinds
type MigrationType string

const (
	OUCreateType                           MigrationType = "OU_CREATE"
	OUCreateWithNonExistentParentOUType    MigrationType = "OU_CREATE_WITH_NON_EXISTENT_PARENT_OU"
	OURenameType                           MigrationType = "OU_RENAME"
	AccountMoveType                        MigrationType = "ACCOUNT_MOVE"
	AccountMoveWithNonExistentParentOUType MigrationType = "ACCOUNT_MOVE_WITH_NON_EXISTENT_PARENT_OU"

	PolicyCreateType        MigrationType = "POLICY_CREATE"
	PolicyDetailsUpdateType MigrationType = "POLICY_DETAILS_UPDATE"
	PolicyContentUpdateType MigrationType = "POLICY_CONTENT_UPDATE"
	PolicyAttachType        MigrationType = "POLICY_ATTACH"

	RegisterDelegatedAdministratorType   MigrationType = "REGISTER_DELEGATED_ADMINISTRATOR"
	DeregisterDelegatedAdministratorType MigrationType = "DEREGISTER_DELEGATED_ADMINISTRATOR"

	AttachPolicyType MigrationType = "ATTACH_POLICY"
	DetachPolicyType MigrationType = "DETACH_POLICY"
)

var extensionByType = map[MigrationType]Extension{
	OUCreateType:                           ExtensionStructure,
	OUCreateWithNonExistentParentOUType:    ExtensionStructure,
	OURenameType:                           ExtensionStructure,
	AccountMoveType:                        ExtensionStructure,
	AccountMoveWithNonExistentParentOUType: ExtensionStructure,
	PolicyCreateType:                       ExtensionServiceControlPolicies,
	PolicyDetailsUpdateType:                ExtensionServiceControlPolicies,
	PolicyContentUpdateType:                ExtensionServiceControlPolicies,
	PolicyAttachType:                       ExtensionServiceControlPolicies,
	RegisterDelegatedAdministratorType:     ExtensionDelegatedAdministrators,
	DeregisterDelegatedAdministratorType:   ExtensionDelegatedAdministrators,
	AttachPolicyType:                       ExtensionPolicyBaseline,
	DetachPolicyType:                       ExtensionPolicyBaseline,
}

// Extension returns the extension that owns the migration type
func (t MigrationType) Extension() (Extension, error) {
	ext, ok := extensionByType[t]
	if !ok {
		return "", fmt.Errorf("unknown migration type: %s", t)
	}
	return ext, nil
}

// MigrationStatus is the outcome recorded for a migration id
type MigrationStatus string

const (
	StatusPending MigrationStatus = "PENDING"
	StatusApplied MigrationStatus = "APPLIED"
	StatusFailed  MigrationStatus = "FAILED"
	StatusErrored MigrationStatus = "ERRORED"
)

// StatusOK is the message recorded with a successful migration
const StatusOK = "Ok"

// ParseMigrationStatus accepts both our status names and the Ok/Failed/Errored
// values written by earlier tooling into the marker store
func ParseMigrationStatus(s string) (MigrationStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatusPending, nil
	case "APPLIED", "OK":
		return StatusApplied, nil
	case "FAILED":
		return StatusFailed, nil
	case "ERRORED":
		return StatusErrored, nil
	default:
		return "", fmt.Errorf("unknown migration status: %q", s)
	}
}

// IsTerminal reports whether the status is a recorded outcome
func (s MigrationStatus) IsTerminal() bool {
	return s == StatusApplied || s == StatusFailed || s == StatusErrored
}

// Migration is a single ledger entry.
// Maps to: <environment>/<root>/_migrations/<id>.yaml
type Migration struct {
	ID        string        `json:"id"`
	RootID    string        `json:"root_id"`
	Extension Extension     `json:"extension"`
	Type      MigrationType `json:"migration_type"`
	Change    Change        `json:"migration_params"`

	// Status is filled from the marker store when listing; PENDING when no marker exists
	Status  MigrationStatus `json:"status"`
	Message string          `json:"message,omitempty"`
}

// NewMigration builds a ledger entry for a change
func NewMigration(id, rootID string, change Change) (*Migration, error) {
	ext, err := change.MigrationType().Extension()
	if err != nil {
		return nil, err
	}
	return &Migration{
		ID:        id,
		RootID:    rootID,
		Extension: ext,
		Type:      change.MigrationType(),
		Change:    change,
		Status:    StatusPending,
	}, nil
}
