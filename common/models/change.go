package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Change is the type-specific payload of a migration.
// The set of implementations is closed: new kinds are added here and in every
// exhaustive switch over Change.
type Change interface {
	MigrationType() MigrationType
	isChange()
}

// OUCreate creates an OU under an existing parent
type OUCreate struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	ParentID string `yaml:"parent_id" json:"parent_id" validate:"required"`
}

// OUCreateWithNonExistentParentOU creates an OU whose parent is created earlier in the same batch
type OUCreateWithNonExistentParentOU struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	ParentOUPath string `yaml:"parent_ou_path" json:"parent_ou_path" validate:"required,startswith=/"`
}

// OURename renames an existing OU
type OURename struct {
	Name                 string `yaml:"name" json:"name" validate:"required"`
	OrganizationalUnitID string `yaml:"organizational_unit_id" json:"organizational_unit_id" validate:"required"`
}

// AccountMove moves an account between existing parents
type AccountMove struct {
	AccountID           string `yaml:"account_id" json:"account_id" validate:"required"`
	SourceParentID      string `yaml:"source_parent_id" json:"source_parent_id" validate:"required"`
	DestinationParentID string `yaml:"destination_parent_id" json:"destination_parent_id" validate:"required,nefield=SourceParentID"`
}

// AccountMoveWithNonExistentParentOU moves an account into an OU created earlier in the same batch
type AccountMoveWithNonExistentParentOU struct {
	AccountID       string `yaml:"account_id" json:"account_id" validate:"required"`
	SourceParentID  string `yaml:"source_parent_id" json:"source_parent_id" validate:"required"`
	DestinationPath string `yaml:"destination_path" json:"destination_path" validate:"required,startswith=/"`
}

// PolicyCreate creates a service control policy
type PolicyCreate struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Content     string `yaml:"content" json:"content" validate:"required,json"`
}

// PolicyDetailsUpdate changes the name and description of a policy
type PolicyDetailsUpdate struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description"`
}

// PolicyContentUpdate replaces the document of a policy
type PolicyContentUpdate struct {
	ID      string `yaml:"id" json:"id" validate:"required"`
	Content string `yaml:"content" json:"content" validate:"required,json"`
}

// PolicyAttach attaches a policy to a target. PolicyName is used when the policy
// had no id yet when the migration was made.
type PolicyAttach struct {
	PolicyID   string `yaml:"policy_id,omitempty" json:"policy_id,omitempty" validate:"required_without=PolicyName"`
	PolicyName string `yaml:"policy_name,omitempty" json:"policy_name,omitempty" validate:"required_without=PolicyID"`
	TargetID   string `yaml:"target_id" json:"target_id" validate:"required"`
}

// RegisterDelegatedAdministrator registers an account for a service principal
type RegisterDelegatedAdministrator struct {
	AccountID        string `yaml:"account_id" json:"account_id" validate:"required"`
	ServicePrincipal string `yaml:"service_principal" json:"service_principal" validate:"required,service_principal"`
}

// DeregisterDelegatedAdministrator removes a delegation
type DeregisterDelegatedAdministrator struct {
	AccountID        string `yaml:"account_id" json:"account_id" validate:"required"`
	ServicePrincipal string `yaml:"service_principal" json:"service_principal" validate:"required,service_principal"`
}

// AttachPolicy is produced by the baseline flow; the target is identified by path
// and resolved at apply time when TargetID is empty
type AttachPolicy struct {
	PolicyName string `yaml:"policy_name" json:"policy_name" validate:"required"`
	PolicyID   string `yaml:"policy_id,omitempty" json:"policy_id,omitempty"`
	TargetPath string `yaml:"target_path" json:"target_path" validate:"required,startswith=/"`
	TargetID   string `yaml:"target_id,omitempty" json:"target_id,omitempty"`
}

// DetachPolicy is produced by the baseline flow
type DetachPolicy struct {
	PolicyName string `yaml:"policy_name" json:"policy_name" validate:"required"`
	PolicyID   string `yaml:"policy_id,omitempty" json:"policy_id,omitempty"`
	TargetPath string `yaml:"target_path" json:"target_path" validate:"required,startswith=/"`
	TargetID   string `yaml:"target_id,omitempty" json:"target_id,omitempty"`
}

func (*OUCreate) MigrationType() MigrationType { return OUCreateType }
func (*OUCreateWithNonExistentParentOU) MigrationType() MigrationType {
	return OUCreateWithNonExistentParentOUType
}
func (*OURename) MigrationType() MigrationType    { return OURenameType }
func (*AccountMove) MigrationType() MigrationType { return AccountMoveType }
func (*AccountMoveWithNonExistentParentOU) MigrationType() MigrationType {
	return AccountMoveWithNonExistentParentOUType
}
func (*PolicyCreate) MigrationType() MigrationType        { return PolicyCreateType }
func (*PolicyDetailsUpdate) MigrationType() MigrationType { return PolicyDetailsUpdateType }
func (*PolicyContentUpdate) MigrationType() MigrationType { return PolicyContentUpdateType }
func (*PolicyAttach) MigrationType() MigrationType        { return PolicyAttachType }
func (*RegisterDelegatedAdministrator) MigrationType() MigrationType {
	return RegisterDelegatedAdministratorType
}
func (*DeregisterDelegatedAdministrator) MigrationType() MigrationType {
	return DeregisterDelegatedAdministratorType
}
func (*AttachPolicy) MigrationType() MigrationType { return AttachPolicyType }
func (*DetachPolicy) MigrationType() MigrationType { return DetachPolicyType }

func (*OUCreate) isChange()                           {}
func (*OUCreateWithNonExistentParentOU) isChange()    {}
func (*OURename) isChange()                           {}
func (*AccountMove) isChange()                        {}
func (*AccountMoveWithNonExistentParentOU) isChange() {}
func (*PolicyCreate) isChange()                       {}
func (*PolicyDetailsUpdate) isChange()                {}
func (*PolicyContentUpdate) isChange()                {}
func (*PolicyAttach) isChange()                       {}
func (*RegisterDelegatedAdministrator) isChange()     {}
func (*DeregisterDelegatedAdministrator) isChange()   {}
func (*AttachPolicy) isChange()                       {}
func (*DetachPolicy) isChange()                       {}

// NewChange returns an empty change of the given type, ready to be decoded into
func NewChange(t MigrationType) (Change, error) {
	switch t {
	case OUCreateType:
		return &OUCreate{}, nil
	case OUCreateWithNonExistentParentOUType:
		return &OUCreateWithNonExistentParentOU{}, nil
	case OURenameType:
		return &OURename{}, nil
	case AccountMoveType:
		return &AccountMove{}, nil
	case AccountMoveWithNonExistentParentOUType:
		return &AccountMoveWithNonExistentParentOU{}, nil
	case PolicyCreateType:
		return &PolicyCreate{}, nil
	case PolicyDetailsUpdateType:
		return &PolicyDetailsUpdate{}, nil
	case PolicyContentUpdateType:
		return &PolicyContentUpdate{}, nil
	case PolicyAttachType:
		return &PolicyAttach{}, nil
	case RegisterDelegatedAdministratorType:
		return &RegisterDelegatedAdministrator{}, nil
	case DeregisterDelegatedAdministratorType:
		return &DeregisterDelegatedAdministrator{}, nil
	case AttachPolicyType:
		return &AttachPolicy{}, nil
	case DetachPolicyType:
		return &DetachPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown migration type: %s", t)
	}
}

// MigrationDocument is the on-disk form of a migration
type MigrationDocument struct {
	Extension       Extension     `yaml:"extension"`
	MigrationType   MigrationType `yaml:"migration_type"`
	MigrationParams yaml.Node     `yaml:"migration_params"`
}

// EncodeMigration renders a migration as YAML
func EncodeMigration(m *Migration) ([]byte, error) {
	doc := MigrationDocument{
		Extension:     m.Extension,
		MigrationType: m.Type,
	}
	if err := doc.MigrationParams.Encode(m.Change); err != nil {
		return nil, fmt.Errorf("encode migration params: %w", err)
	}
	return yaml.Marshal(&doc)
}

// DecodeMigration parses a migration file. The extension recorded in the file
// must match the extension that owns the migration type.
func DecodeMigration(id, rootID string, data []byte) (*Migration, error) {
	var doc MigrationDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse migration %s: %w", id, err)
	}

	change, err := NewChange(doc.MigrationType)
	if err != nil {
		return nil, fmt.Errorf("migration %s: %w", id, err)
	}
	if err := doc.MigrationParams.Decode(change); err != nil {
		return nil, fmt.Errorf("decode params of migration %s: %w", id, err)
	}

	m, err := NewMigration(id, rootID, change)
	if err != nil {
		return nil, err
	}
	if doc.Extension != m.Extension {
		return nil, fmt.Errorf("migration %s: extension %q does not own type %s", id, doc.Extension, doc.MigrationType)
	}
	return m, nil
}
