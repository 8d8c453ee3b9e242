package hierarchy

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lyzr/orgsync/common/models"
)

// Snapshot is one side of a reconciliation: either a locally authored tree or
// the live organization as fetched. Both sides use the same shape.
type Snapshot struct {
	RootID string
	Graph  *Graph

	// Policies sorted by name
	Policies []models.Policy

	// Node key -> directly attached policies
	Attachments map[string][]models.PolicyAttachment

	// Node key -> delegated administrator records, only for accounts that have a record
	Delegated map[string][]models.DelegatedAdministrator
}

// NewSnapshot creates an empty snapshot for a root
func NewSnapshot(rootID string) *Snapshot {
	return &Snapshot{
		RootID:      rootID,
		Graph:       NewGraph(rootID),
		Attachments: make(map[string][]models.PolicyAttachment),
		Delegated:   make(map[string][]models.DelegatedAdministrator),
	}
}

// PolicyByName returns a policy by its name
func (s *Snapshot) PolicyByName(name string) (*models.Policy, bool) {
	for i := range s.Policies {
		if s.Policies[i].Summary.Name == name {
			return &s.Policies[i], true
		}
	}
	return nil, false
}

// PolicyByID returns a policy by its id
func (s *Snapshot) PolicyByID(id string) (*models.Policy, bool) {
	if id == "" {
		return nil, false
	}
	for i := range s.Policies {
		if s.Policies[i].Summary.Id == id {
			return &s.Policies[i], true
		}
	}
	return nil, false
}

// SortPolicies orders policies by name
func (s *Snapshot) SortPolicies() {
	sort.SliceStable(s.Policies, func(i, j int) bool {
		return s.Policies[i].Summary.Name < s.Policies[j].Summary.Name
	})
}

// AttachedByPath returns logical path -> names of directly attached policies,
// the shape captured by the policy baseline
func (s *Snapshot) AttachedByPath() map[string][]string {
	out := make(map[string][]string)
	_ = s.Graph.Walk(func(key string, node *models.HierarchyNode) error {
		for _, a := range s.Attachments[key] {
			out[node.Path] = append(out[node.Path], a.PolicyName)
		}
		if names, ok := out[node.Path]; ok {
			sort.Strings(names)
		}
		return nil
	})
	return out
}

// stateDocument is the serialized form of a snapshot (state.yaml)
type stateDocument struct {
	RootID      string                    `yaml:"root_id"`
	Nodes       []models.HierarchyNode    `yaml:"nodes"`
	Policies    []models.Policy           `yaml:"policies"`
	Attachments []models.PolicyAttachment `yaml:"attachments"`
	Delegated   []delegatedStateEntry     `yaml:"delegated_administrators"`
}

type delegatedStateEntry struct {
	AccountID string                          `yaml:"account_id"`
	Services  []models.DelegatedAdministrator `yaml:"services"`
}

// MarshalState serializes a fetched snapshot. Every node must have an id.
func (s *Snapshot) MarshalState() ([]byte, error) {
	doc := stateDocument{RootID: s.RootID, Policies: s.Policies}

	err := s.Graph.Walk(func(key string, node *models.HierarchyNode) error {
		if node.ID == "" {
			return fmt.Errorf("state: node %s has no id", node.Path)
		}
		doc.Nodes = append(doc.Nodes, *node)
		for _, a := range s.Attachments[key] {
			a.TargetID = node.ID
			doc.Attachments = append(doc.Attachments, a)
		}
		if services, ok := s.Delegated[key]; ok {
			doc.Delegated = append(doc.Delegated, delegatedStateEntry{AccountID: node.ID, Services: services})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(&doc)
}

// UnmarshalState rebuilds a snapshot from MarshalState output
func UnmarshalState(data []byte) (*Snapshot, error) {
	var doc stateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if doc.RootID == "" {
		return nil, fmt.Errorf("parse state: missing root_id")
	}

	snap := NewSnapshot(doc.RootID)
	snap.Policies = doc.Policies
	snap.SortPolicies()

	// Nodes were written parent-first
	for i := range doc.Nodes {
		node := doc.Nodes[i]
		if _, err := snap.Graph.Add(&node); err != nil {
			return nil, fmt.Errorf("parse state: %w", err)
		}
	}
	for _, a := range doc.Attachments {
		if _, ok := snap.Graph.ByID[a.TargetID]; !ok {
			return nil, fmt.Errorf("parse state: attachment target %s unknown", a.TargetID)
		}
		snap.Attachments[a.TargetID] = append(snap.Attachments[a.TargetID], a)
	}
	for _, d := range doc.Delegated {
		services := make([]models.DelegatedAdministrator, len(d.Services))
		for i, svc := range d.Services {
			svc.AccountID = d.AccountID
			services[i] = svc
		}
		snap.Delegated[d.AccountID] = services
	}
	return snap, nil
}
