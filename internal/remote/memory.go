package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Memory is an in-memory document backend implementing Client. It backs the
// test suites and dry runs, with the same pagination and idempotence
// semantics as the hosted API: children listings are paged, deletes of
// missing nodes succeed, appends assign fresh opaque IDs.
type Memory struct {
	mu       sync.Mutex
	pageSize int
	seq      int
	nodes    map[string]*memNode
	roots    []string

	// Hook, when set, runs before every operation and can inject a failure.
	// Mutations that fail via the hook are not applied.
	Hook func(op, nodeID string) error

	// HookAfter runs after a mutation has been applied, simulating an
	// unacknowledged success (the write landed, the response was lost).
	HookAfter func(op, nodeID string) error

	// Calls counts operations by name.
	Calls map[string]int
}

type memNode struct {
	id       string
	title    string // only set for roots, matched by Search
	kind     NodeKind
	content  []TextRun
	children []string
	parent   string
}

// NewMemory creates an empty backend paging children pageSize at a time.
func NewMemory(pageSize int) *Memory {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Memory{
		pageSize: pageSize,
		nodes:    make(map[string]*memNode),
		Calls:    make(map[string]int),
	}
}

// AddRoot registers a searchable root document and returns its ID.
func (m *Memory) AddRoot(title string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.nodes[id] = &memNode{id: id, title: title, kind: KindPageReference}
	m.roots = append(m.roots, id)
	return id
}

// Add appends a child node under parentID and returns its ID.
func (m *Memory) Add(parentID string, kind NodeKind, text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.nodes[parentID]
	if !ok {
		panic(fmt.Sprintf("memory: unknown parent %s", parentID))
	}
	id := m.nextID()
	m.nodes[id] = &memNode{
		id:      id,
		kind:    kind,
		content: []TextRun{{Text: text}},
		parent:  parentID,
	}
	parent.children = append(parent.children, id)
	return id
}

func (m *Memory) nextID() string {
	m.seq++
	return fmt.Sprintf("node-%04d", m.seq)
}

func (m *Memory) Search(ctx context.Context, query string) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before("search", ""); err != nil {
		return nil, err
	}
	var out []Candidate
	for _, id := range m.roots {
		n := m.nodes[id]
		if n != nil && strings.Contains(n.title, query) {
			out = append(out, Candidate{ID: n.id, Title: n.title})
		}
	}
	return out, nil
}

func (m *Memory) GetChildren(ctx context.Context, nodeID, cursor string) (ChildPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before("get_children", nodeID); err != nil {
		return ChildPage{}, err
	}
	n, ok := m.nodes[nodeID]
	if !ok {
		return ChildPage{}, &APIError{Op: "get_children", NodeID: nodeID, Status: 404, Msg: "no such node"}
	}

	offset := 0
	if cursor != "" {
		var err error
		offset, err = strconv.Atoi(cursor)
		if err != nil || offset < 0 || offset > len(n.children) {
			return ChildPage{}, &APIError{Op: "get_children", NodeID: nodeID, Status: 400, Msg: "bad cursor"}
		}
	}

	end := offset + m.pageSize
	if end > len(n.children) {
		end = len(n.children)
	}

	page := ChildPage{}
	for _, cid := range n.children[offset:end] {
		page.Children = append(page.Children, m.snapshot(cid))
	}
	if end < len(n.children) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (m *Memory) AppendChildren(ctx context.Context, parentID string, payloads []Payload, afterID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before("append_children", parentID); err != nil {
		return nil, err
	}
	parent, ok := m.nodes[parentID]
	if !ok {
		return nil, &APIError{Op: "append_children", NodeID: parentID, Status: 404, Msg: "no such parent"}
	}

	at := len(parent.children)
	if afterID != "" {
		at = -1
		for i, cid := range parent.children {
			if cid == afterID {
				at = i + 1
				break
			}
		}
		if at < 0 {
			return nil, &APIError{Op: "append_children", NodeID: parentID, Status: 400, Msg: "after id is not a child"}
		}
	}

	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		id := m.nextID()
		m.nodes[id] = &memNode{id: id, kind: p.Kind, content: cloneRuns(p.Content), parent: parentID}
		ids = append(ids, id)
	}
	parent.children = append(parent.children[:at], append(ids, parent.children[at:]...)...)

	if err := m.after("append_children", parentID); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Memory) UpdateNode(ctx context.Context, nodeID string, payload Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before("update_node", nodeID); err != nil {
		return err
	}
	n, ok := m.nodes[nodeID]
	if !ok {
		return &APIError{Op: "update_node", NodeID: nodeID, Status: 404, Msg: "no such node"}
	}
	n.kind = payload.Kind
	n.content = cloneRuns(payload.Content)
	return m.after("update_node", nodeID)
}

func (m *Memory) DeleteNode(ctx context.Context, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before("delete_node", nodeID); err != nil {
		return err
	}
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil // idempotent
	}
	if n.parent != "" {
		if p := m.nodes[n.parent]; p != nil {
			p.children = removeID(p.children, nodeID)
		}
	}
	m.deleteSubtree(nodeID)
	return m.after("delete_node", nodeID)
}

func (m *Memory) deleteSubtree(id string) {
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	for _, cid := range n.children {
		m.deleteSubtree(cid)
	}
	delete(m.nodes, id)
}

// Children returns the current ordered child IDs of a node, for assertions.
func (m *Memory) Children(nodeID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil
	}
	return append([]string(nil), n.children...)
}

// Get returns a snapshot of the node, or nil if it no longer exists.
func (m *Memory) Get(nodeID string) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[nodeID]; !ok {
		return nil
	}
	return m.snapshot(nodeID)
}

// CountMatching counts live nodes whose kind and plain text satisfy fn.
func (m *Memory) CountMatching(fn func(kind NodeKind, text string) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.nodes {
		var text string
		for _, r := range n.content {
			text += r.Text
		}
		if fn(n.kind, text) {
			count++
		}
	}
	return count
}

func (m *Memory) snapshot(id string) *Node {
	n := m.nodes[id]
	return &Node{
		ID:          n.id,
		Kind:        n.kind,
		Content:     cloneRuns(n.content),
		HasChildren: len(n.children) > 0,
	}
}

func (m *Memory) before(op, nodeID string) error {
	m.Calls[op]++
	if m.Hook != nil {
		return m.Hook(op, nodeID)
	}
	return nil
}

func (m *Memory) after(op, nodeID string) error {
	if m.HookAfter != nil {
		return m.HookAfter(op, nodeID)
	}
	return nil
}

func cloneRuns(runs []TextRun) []TextRun {
	return append([]TextRun(nil), runs...)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
