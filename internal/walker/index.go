package walker

import "pagesync/internal/remote"

// NodeIndex is the snapshot produced by one discovery pass. Later stages
// reference nodes only through the index, never through hardcoded IDs. It is
// transient: rebuilt fresh on every run, never shared across documents.
type NodeIndex struct {
	rootID   string
	nodes    map[string]*remote.Node
	children map[string][]string
	parent   map[string]string
}

func newNodeIndex(rootID string) *NodeIndex {
	return &NodeIndex{
		rootID:   rootID,
		nodes:    make(map[string]*remote.Node),
		children: make(map[string][]string),
		parent:   make(map[string]string),
	}
}

func (ix *NodeIndex) add(parentID string, n *remote.Node) bool {
	if _, seen := ix.nodes[n.ID]; seen {
		return false
	}
	ix.nodes[n.ID] = n
	ix.parent[n.ID] = parentID
	ix.children[parentID] = append(ix.children[parentID], n.ID)
	return true
}

// RootID returns the resolved root node's ID.
func (ix *NodeIndex) RootID() string { return ix.rootID }

// Node returns the indexed node, or nil if the ID was never discovered.
func (ix *NodeIndex) Node(id string) *remote.Node { return ix.nodes[id] }

// Parent returns the parent ID of a discovered node ("" for the root).
func (ix *NodeIndex) Parent(id string) string { return ix.parent[id] }

// Children returns the ordered child IDs of a node.
func (ix *NodeIndex) Children(id string) []string { return ix.children[id] }

// Len reports how many nodes were discovered, excluding the root itself.
func (ix *NodeIndex) Len() int { return len(ix.nodes) }

// SubtreeOrder returns the IDs of scopeRootID's subtree in document order
// (depth-first, siblings in listing order). scopeRootID itself is excluded.
func (ix *NodeIndex) SubtreeOrder(scopeRootID string) []string {
	var out []string
	var walk func(id string)
	walk = func(id string) {
		for _, cid := range ix.children[id] {
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(scopeRootID)
	return out
}
