package hierarchy

import (
	"fmt"
	"strings"

	"github.com/lyzr/orgsync/common/models"
)

// On-disk names inside an environment directory
const (
	OrganizationalUnitsDir      = "_organizational_units"
	AccountsDir                 = "_accounts"
	MetaFile                    = "_meta.yaml"
	PoliciesDir                 = "_policies"
	ServiceControlPoliciesDir   = "service_control_policies"
	PolicyDocumentFile          = "policy.json"
	MigrationsDir               = "_migrations"
	PolicyRecordFile            = "_service_control_policies.yaml"
	DelegatedAdministratorsFile = "_delegated_administrators.yaml"
	StateFile                   = "state.yaml"
	InitialStateFile            = "initial_state.yaml"
)

// NodeRef identifies an entity by position rather than by id
type NodeRef struct {
	RootID string
	Kind   models.NodeKind

	// Names of the OUs between the root and the entity, outermost first
	OUNames []string

	// Entity name; empty for the root
	Name string
}

// LogicalPath is "/" for the root and "/ou/.../name" otherwise
func (r NodeRef) LogicalPath() string {
	if r.Kind == models.KindRoot {
		return models.RootPath
	}
	return JoinLogical(append(append([]string{}, r.OUNames...), r.Name)...)
}

// ParentLogicalPath is the logical path of the owning root or OU; empty for the root
func (r NodeRef) ParentLogicalPath() string {
	if r.Kind == models.KindRoot {
		return ""
	}
	return JoinLogical(r.OUNames...)
}

// JoinLogical builds a logical path from names
func JoinLogical(names ...string) string {
	if len(names) == 0 {
		return models.RootPath
	}
	return models.RootPath + strings.Join(names, "/")
}

// SplitLogical returns the names of a logical path; nil for the root
func SplitLogical(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Encode returns the directory segments of an entity, relative to the environment directory.
// The root segment is the root id; each level below alternates a container marker with a name.
func Encode(ref NodeRef) ([]string, error) {
	if ref.RootID == "" {
		return nil, fmt.Errorf("encode: empty root id")
	}

	segments := []string{ref.RootID}
	for _, ou := range ref.OUNames {
		if err := checkName(ou); err != nil {
			return nil, err
		}
		segments = append(segments, OrganizationalUnitsDir, ou)
	}

	switch ref.Kind {
	case models.KindRoot:
		if len(ref.OUNames) > 0 || ref.Name != "" {
			return nil, fmt.Errorf("encode: root ref must not carry names")
		}
	case models.KindOrganizationalUnit:
		if err := checkName(ref.Name); err != nil {
			return nil, err
		}
		segments = append(segments, OrganizationalUnitsDir, ref.Name)
	case models.KindAccount:
		if err := checkName(ref.Name); err != nil {
			return nil, err
		}
		segments = append(segments, AccountsDir, ref.Name)
	default:
		return nil, fmt.Errorf("encode: unknown node kind %q", ref.Kind)
	}
	return segments, nil
}

// Decode is the exact inverse of Encode. The kind is recovered from the marker
// immediately preceding the final name; an accounts marker is only legal last.
func Decode(segments []string) (NodeRef, error) {
	if len(segments) == 0 || segments[0] == "" {
		return NodeRef{}, fmt.Errorf("decode: missing root segment")
	}
	rest := segments[1:]
	if len(rest)%2 != 0 {
		return NodeRef{}, fmt.Errorf("decode: dangling segment in %q", strings.Join(segments, "/"))
	}

	ref := NodeRef{RootID: segments[0], Kind: models.KindRoot}
	for i := 0; i < len(rest); i += 2 {
		marker, name := rest[i], rest[i+1]
		if err := checkName(name); err != nil {
			return NodeRef{}, err
		}
		last := i+2 == len(rest)

		switch marker {
		case OrganizationalUnitsDir:
			if last {
				ref.Kind = models.KindOrganizationalUnit
				ref.Name = name
			} else {
				ref.OUNames = append(ref.OUNames, name)
			}
		case AccountsDir:
			if !last {
				return NodeRef{}, fmt.Errorf("decode: %s must be the last container in %q", AccountsDir, strings.Join(segments, "/"))
			}
			ref.Kind = models.KindAccount
			ref.Name = name
		default:
			return NodeRef{}, fmt.Errorf("decode: unexpected segment %q in %q", marker, strings.Join(segments, "/"))
		}
	}
	return ref, nil
}

// EncodePath is Encode joined with "/"
func EncodePath(ref NodeRef) (string, error) {
	segments, err := Encode(ref)
	if err != nil {
		return "", err
	}
	return strings.Join(segments, "/"), nil
}

// DecodePath is Decode over a "/"-joined relative path
func DecodePath(path string) (NodeRef, error) {
	return Decode(strings.Split(strings.Trim(path, "/"), "/"))
}

// RefFor derives a NodeRef from a node's kind and logical path
func RefFor(rootID string, node *models.HierarchyNode) (NodeRef, error) {
	ref := NodeRef{RootID: rootID, Kind: node.Kind}
	if node.Kind == models.KindRoot {
		return ref, nil
	}
	names := SplitLogical(node.Path)
	if len(names) == 0 {
		return NodeRef{}, fmt.Errorf("node %q has no logical path", node.Name)
	}
	ref.OUNames = names[:len(names)-1]
	ref.Name = names[len(names)-1]
	return ref, nil
}

// PathFor returns the directory segments of a node
func PathFor(rootID string, node *models.HierarchyNode) ([]string, error) {
	ref, err := RefFor(rootID, node)
	if err != nil {
		return nil, err
	}
	return Encode(ref)
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty entity name")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("entity name %q contains a path separator", name)
	}
	if name == OrganizationalUnitsDir || name == AccountsDir {
		return fmt.Errorf("entity name %q is reserved", name)
	}
	return nil
}
