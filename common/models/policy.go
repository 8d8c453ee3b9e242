package models

// PolicyTypeServiceControl is the only policy type managed by orgsync
const PolicyTypeServiceControl = "SERVICE_CONTROL_POLICY"

// AttachmentOrigin tells whether a policy is attached directly or inherited
type AttachmentOrigin string

const (
	OriginAttached  AttachmentOrigin = "ATTACHED"
	OriginInherited AttachmentOrigin = "INHERITED"
)

// PolicySummary is the metadata of a policy (_meta.yaml in a policy directory).
// Maps to: the provider's PolicySummary
type PolicySummary struct {
	Id          string `yaml:"Id,omitempty" json:"id,omitempty"`
	Arn         string `yaml:"Arn,omitempty" json:"arn,omitempty"`
	Name        string `yaml:"Name" json:"name"`
	Description string `yaml:"Description,omitempty" json:"description,omitempty"`
	Type        string `yaml:"Type,omitempty" json:"type,omitempty"`
	AwsManaged  bool   `yaml:"AwsManaged,omitempty" json:"aws_managed,omitempty"`
}

// Policy is a policy summary together with its document
type Policy struct {
	Summary PolicySummary `yaml:"summary" json:"summary"`

	// Policy document as JSON text
	Content string `yaml:"content" json:"content"`
}

// PolicyAttachment records which policy is attached to which node
type PolicyAttachment struct {
	PolicyID   string           `yaml:"policy_id,omitempty" json:"policy_id,omitempty"`
	PolicyName string           `yaml:"policy_name" json:"policy_name"`
	TargetID   string           `yaml:"target_id,omitempty" json:"target_id,omitempty"`
	Origin     AttachmentOrigin `yaml:"origin" json:"origin"`

	// Logical path of the ancestor the policy is inherited from
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// PolicyRecord is the per-entity attachment file (_service_control_policies.yaml).
// Inherited entries are derived data and are rewritten on every import.
type PolicyRecord struct {
	Attached  []PolicyRecordEntry `yaml:"Attached"`
	Inherited []PolicyRecordEntry `yaml:"Inherited"`
}

// PolicyRecordEntry is one line of a PolicyRecord
type PolicyRecordEntry struct {
	Id          string `yaml:"Id,omitempty"`
	Arn         string `yaml:"Arn,omitempty"`
	Name        string `yaml:"Name"`
	Description string `yaml:"Description,omitempty"`
	Type        string `yaml:"Type,omitempty"`
	AwsManaged  bool   `yaml:"AwsManaged,omitempty"`
	Source      string `yaml:"Source,omitempty"`
}

// PolicyTarget is a single entry of a list-targets-for-policy response
type PolicyTarget struct {
	TargetID string
	Name     string
	Type     string
}
