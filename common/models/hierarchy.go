package models

// NodeKind is the kind of a hierarchy entity
type NodeKind string

const (
	KindRoot               NodeKind = "ROOT"
	KindOrganizationalUnit NodeKind = "ORGANIZATIONAL_UNIT"
	KindAccount            NodeKind = "ACCOUNT"
)

// Valid reports whether k is one of the known node kinds
func (k NodeKind) Valid() bool {
	switch k {
	case KindRoot, KindOrganizationalUnit, KindAccount:
		return true
	}
	return false
}

// RootPath is the logical path of every root
const RootPath = "/"

// HierarchyNode is a root, organizational unit or account.
// Nodes read from a locally authored folder without a _meta.yaml have no ID yet.
type HierarchyNode struct {
	// Provider-assigned identifier (empty for nodes not yet created remotely)
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// Display name, unique among siblings
	Name string `yaml:"name" json:"name"`

	Kind NodeKind `yaml:"kind" json:"kind"`

	// Logical path of ancestor names: "/" for the root, "/foo/bar" for nested OUs.
	// For accounts the last element is the account name.
	Path string `yaml:"path" json:"path"`

	// Ownership edge; empty for the root
	ParentID   string `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	ParentPath string `yaml:"parent_path,omitempty" json:"parent_path,omitempty"`

	Arn    string `yaml:"arn,omitempty" json:"arn,omitempty"`
	Email  string `yaml:"email,omitempty" json:"email,omitempty"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`
}

// IsRoot checks if node is a root
func (n *HierarchyNode) IsRoot() bool {
	return n.Kind == KindRoot
}

// IsOrganizationalUnit checks if node is an organizational unit
func (n *HierarchyNode) IsOrganizationalUnit() bool {
	return n.Kind == KindOrganizationalUnit
}

// IsAccount checks if node is an account
func (n *HierarchyNode) IsAccount() bool {
	return n.Kind == KindAccount
}

// Exists reports whether the node has a remote counterpart
func (n *HierarchyNode) Exists() bool {
	return n.ID != ""
}

// EntityMeta is the on-disk metadata record (_meta.yaml) of a root, OU or account.
// Keys follow the provider's describe output so imported files stay recognisable.
type EntityMeta struct {
	Id     string `yaml:"Id"`
	Name   string `yaml:"Name"`
	Type   string `yaml:"Type,omitempty"`
	Arn    string `yaml:"Arn,omitempty"`
	Email  string `yaml:"Email,omitempty"`
	Status string `yaml:"Status,omitempty"`
}

// ParentRef is a single entry of a list-parents response
type ParentRef struct {
	ID   string
	Kind NodeKind
}
