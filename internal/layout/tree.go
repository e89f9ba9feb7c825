package layout

import (
	"sort"

	"github.com/google/uuid"

	"github.com/hudman/hudman/internal/hud"
)

// MaxDepth bounds ancestor walks and traversals. Parent cycles are rejected
// at edit time; the bound keeps a corrupted document from hanging a tick.
const MaxDepth = 64

// Node is one layout in a Forest.
type Node struct {
	ID       uuid.UUID
	Value    hud.SavedLayout
	Parent   *Node
	Children []*Node
}

// NodeDepth pairs a node with its distance from the traversal start.
type NodeDepth struct {
	Node  *Node
	Depth int
}

// Forest is the navigable view of a flat layout collection. It is rebuilt
// whenever it is needed and never persisted.
type Forest struct {
	Roots []*Node
	nodes map[uuid.UUID]*Node
}

// BuildTree links layouts by their declared parent. Layouts without a parent,
// or whose parent is missing, become roots. Nodes caught in a parent cycle
// are detached and re-rooted.
func BuildTree(layouts map[uuid.UUID]hud.SavedLayout) *Forest {
	f := &Forest{nodes: make(map[uuid.UUID]*Node, len(layouts))}
	for id, value := range layouts {
		f.nodes[id] = &Node{ID: id, Value: value}
	}
	for _, node := range f.sorted() {
		parentID := node.Value.Parent
		parent, ok := f.nodes[parentID]
		if parentID == uuid.Nil || !ok || parentID == node.ID {
			f.Roots = append(f.Roots, node)
			continue
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}

	reached := make(map[uuid.UUID]bool, len(f.nodes))
	for _, root := range f.Roots {
		for _, nd := range root.TraverseWithDepth() {
			reached[nd.Node.ID] = true
		}
	}
	for _, node := range f.sorted() {
		if reached[node.ID] {
			continue
		}
		node.Parent.Children = removeNode(node.Parent.Children, node)
		node.Parent = nil
		f.Roots = append(f.Roots, node)
		for _, nd := range node.TraverseWithDepth() {
			reached[nd.Node.ID] = true
		}
	}
	sortNodes(f.Roots)
	return f
}

func removeNode(nodes []*Node, target *Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

func (f *Forest) sorted() []*Node {
	out := make([]*Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	sortNodes(out)
	return out
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Value.Name != nodes[j].Value.Name {
			return nodes[i].Value.Name < nodes[j].Value.Name
		}
		return nodes[i].ID.String() < nodes[j].ID.String()
	})
}

// Find returns the node for id.
func (f *Forest) Find(id uuid.UUID) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Len returns the number of layouts in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Walk visits every node depth first, roots in order.
func (f *Forest) Walk() []NodeDepth {
	var out []NodeDepth
	for _, root := range f.Roots {
		out = append(out, root.TraverseWithDepth()...)
	}
	return out
}

// IsDescendant reports whether id sits below ancestor.
func (f *Forest) IsDescendant(ancestor, id uuid.UUID) bool {
	node, ok := f.nodes[id]
	if !ok {
		return false
	}
	for _, a := range node.Ancestors() {
		if a.ID == ancestor {
			return true
		}
	}
	return false
}

// ValidParents lists the layouts id may choose as parent: everything except
// itself and its descendants.
func (f *Forest) ValidParents(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, node := range f.sorted() {
		if node.ID == id || f.IsDescendant(id, node.ID) {
			continue
		}
		out = append(out, node.ID)
	}
	return out
}

// Orphan returns the ids of the direct children of id, which must be
// re-rooted when id is deleted.
func (f *Forest) Orphan(id uuid.UUID) []uuid.UUID {
	node, ok := f.nodes[id]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(node.Children))
	for _, child := range node.Children {
		out = append(out, child.ID)
	}
	return out
}

// Ancestors returns the chain from the immediate parent up to the root.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.Parent; p != nil && len(out) < MaxDepth; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// Traverse returns n and all of its descendants, depth first.
func (n *Node) Traverse() []*Node {
	nds := n.TraverseWithDepth()
	out := make([]*Node, len(nds))
	for i, nd := range nds {
		out[i] = nd.Node
	}
	return out
}

// TraverseWithDepth is Traverse with each node's depth below n.
func (n *Node) TraverseWithDepth() []NodeDepth {
	var out []NodeDepth
	var visit func(node *Node, depth int)
	visit = func(node *Node, depth int) {
		if depth > MaxDepth {
			return
		}
		out = append(out, NodeDepth{Node: node, Depth: depth})
		children := append([]*Node(nil), node.Children...)
		sortNodes(children)
		for _, child := range children {
			visit(child, depth+1)
		}
	}
	visit(n, 0)
	return out
}
