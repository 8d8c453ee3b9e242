package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lyzr/orgsync/common/models"
)

// syntheticKeyPrefix marks nodes that have no remote id yet
const syntheticKeyPrefix = "path:"

// IDEntry is the by-id index value
type IDEntry struct {
	// Encoded directory path relative to the environment directory
	Path string
	Node *models.HierarchyNode
}

// Graph is a hierarchy with lookup indexes built once at load time.
// Parents must be added before their children.
type Graph struct {
	RootID string

	// Node key -> node. Key is the id, or "path:<dir>" for nodes without one
	Nodes map[string]*models.HierarchyNode

	// Logical path -> node key, for the root and OUs
	ByName map[string]string

	// Remote id -> directory path and node
	ByID map[string]IDEntry

	// Encoded directory path -> node key
	ByPath map[string]string

	children map[string][]string
	dirs     map[string]string
}

// NewGraph creates an empty graph for a root
func NewGraph(rootID string) *Graph {
	return &Graph{
		RootID:   rootID,
		Nodes:    make(map[string]*models.HierarchyNode),
		ByName:   make(map[string]string),
		ByID:     make(map[string]IDEntry),
		ByPath:   make(map[string]string),
		children: make(map[string][]string),
		dirs:     make(map[string]string),
	}
}

// KeyFor returns the node key used by the indexes
func KeyFor(node *models.HierarchyNode, dir string) string {
	if node.ID != "" {
		return node.ID
	}
	return syntheticKeyPrefix + dir
}

// Add indexes a node. Path and Kind must be set; ParentID is filled from the
// parent's recorded id when the node does not carry one.
func (g *Graph) Add(node *models.HierarchyNode) (string, error) {
	if !node.Kind.Valid() {
		return "", fmt.Errorf("node %q: invalid kind %q", node.Name, node.Kind)
	}

	if node.IsRoot() {
		node.Path = models.RootPath
		node.ParentPath = ""
	} else {
		names := SplitLogical(node.Path)
		if len(names) == 0 {
			return "", fmt.Errorf("node %q: missing logical path", node.Name)
		}
		node.ParentPath = JoinLogical(names[:len(names)-1]...)

		parentKey, ok := g.ByName[node.ParentPath]
		if !ok {
			return "", fmt.Errorf("node %s: parent %s not in graph", node.Path, node.ParentPath)
		}
		if node.ParentID == "" {
			node.ParentID = g.Nodes[parentKey].ID
		}
	}

	segments, err := PathFor(g.RootID, node)
	if err != nil {
		return "", err
	}
	dir := strings.Join(segments, "/")

	key := KeyFor(node, dir)
	if _, exists := g.Nodes[key]; exists {
		return "", fmt.Errorf("duplicate node %s (%s)", key, node.Path)
	}
	if _, exists := g.ByPath[dir]; exists {
		return "", fmt.Errorf("duplicate path %s", dir)
	}

	g.Nodes[key] = node
	g.ByPath[dir] = key
	g.dirs[key] = dir
	if node.ID != "" {
		g.ByID[node.ID] = IDEntry{Path: dir, Node: node}
	}
	if !node.IsAccount() {
		g.ByName[node.Path] = key
	}
	if !node.IsRoot() {
		g.children[node.ParentPath] = append(g.children[node.ParentPath], key)
	}
	return key, nil
}

// Root returns the root node, or nil when it was never added
func (g *Graph) Root() *models.HierarchyNode {
	return g.Container(models.RootPath)
}

// Container returns the root or OU at a logical path
func (g *Graph) Container(path string) *models.HierarchyNode {
	key, ok := g.ByName[path]
	if !ok {
		return nil
	}
	return g.Nodes[key]
}

// Parent returns the owning root or OU of a node
func (g *Graph) Parent(node *models.HierarchyNode) *models.HierarchyNode {
	if node.IsRoot() {
		return nil
	}
	return g.Container(node.ParentPath)
}

// Dir returns the encoded directory path of a node key
func (g *Graph) Dir(key string) string {
	return g.dirs[key]
}

// Key returns the index key of a node already in the graph
func (g *Graph) Key(node *models.HierarchyNode) string {
	if node.ID != "" {
		if _, ok := g.Nodes[node.ID]; ok {
			return node.ID
		}
	}
	segments, err := PathFor(g.RootID, node)
	if err != nil {
		return ""
	}
	return g.ByPath[strings.Join(segments, "/")]
}

// Children returns the direct children of a container, OUs first, each group sorted by name
func (g *Graph) Children(path string) []*models.HierarchyNode {
	keys := g.children[path]
	nodes := make([]*models.HierarchyNode, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, g.Nodes[k])
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].IsOrganizationalUnit()
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes
}

// OrganizationalUnits returns all OUs breadth first, sorted by name per level,
// so every OU comes after its parent
func (g *Graph) OrganizationalUnits() []*models.HierarchyNode {
	var out []*models.HierarchyNode
	queue := []string{models.RootPath}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range g.Children(current) {
			if !child.IsOrganizationalUnit() {
				continue
			}
			out = append(out, child)
			queue = append(queue, child.Path)
		}
	}
	return out
}

// Accounts returns all accounts ordered by their parent's breadth-first position, then name
func (g *Graph) Accounts() []*models.HierarchyNode {
	var out []*models.HierarchyNode
	containers := append([]string{models.RootPath}, pathsOf(g.OrganizationalUnits())...)
	for _, container := range containers {
		for _, child := range g.Children(container) {
			if child.IsAccount() {
				out = append(out, child)
			}
		}
	}
	return out
}

// Walk visits the root, then OUs breadth first, then accounts
func (g *Graph) Walk(fn func(key string, node *models.HierarchyNode) error) error {
	ordered := make([]*models.HierarchyNode, 0, len(g.Nodes))
	if root := g.Root(); root != nil {
		ordered = append(ordered, root)
	}
	ordered = append(ordered, g.OrganizationalUnits()...)
	ordered = append(ordered, g.Accounts()...)

	for _, node := range ordered {
		if err := fn(g.Key(node), node); err != nil {
			return err
		}
	}
	return nil
}

func pathsOf(nodes []*models.HierarchyNode) []string {
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n.Path
	}
	return paths
}
