package remote

// NodeKind is the closed set of node types the document API exposes.
type NodeKind string

const (
	KindHeading            NodeKind = "heading"
	KindCollapsibleHeading NodeKind = "collapsible_heading"
	KindParagraph          NodeKind = "paragraph"
	KindBulletedItem       NodeKind = "bulleted_item"
	KindNumberedItem       NodeKind = "numbered_item"
	KindChecklistItem      NodeKind = "checklist_item"
	KindPageReference      NodeKind = "page_reference"
	KindCallout            NodeKind = "callout"
	KindColumnList         NodeKind = "column_list"
	KindColumn             NodeKind = "column"
)

// ValidKind reports whether k is one of the supported node kinds.
func ValidKind(k NodeKind) bool {
	switch k {
	case KindHeading, KindCollapsibleHeading, KindParagraph, KindBulletedItem,
		KindNumberedItem, KindChecklistItem, KindPageReference, KindCallout,
		KindColumnList, KindColumn:
		return true
	}
	return false
}

// TextRun is a span of styled text inside a node.
type TextRun struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Code   bool   `json:"code,omitempty"`
}

// Node is one addressable element of the document tree. IDs are opaque and
// remote-assigned; nodes are rebuilt fresh on every discovery pass.
type Node struct {
	ID          string    `json:"id"`
	Kind        NodeKind  `json:"kind"`
	Content     []TextRun `json:"content"`
	ChildIDs    []string  `json:"child_ids"`
	HasChildren bool      `json:"has_children"`

	// ChildrenFetched distinguishes "no children" from "not yet fetched".
	ChildrenFetched bool `json:"-"`
}

// PlainText concatenates the node's text runs, unstyled.
func (n *Node) PlainText() string {
	var out string
	for _, r := range n.Content {
		out += r.Text
	}
	return out
}

// Payload is the writable portion of a node used by create and update calls.
type Payload struct {
	Kind    NodeKind  `json:"kind"`
	Content []TextRun `json:"content"`
}

// PlainText concatenates the payload's text runs.
func (p Payload) PlainText() string {
	var out string
	for _, r := range p.Content {
		out += r.Text
	}
	return out
}

// Text builds a single-run payload, the common case for human-authored sections.
func Text(kind NodeKind, text string) Payload {
	return Payload{Kind: kind, Content: []TextRun{{Text: text}}}
}

// Candidate is one search result for a root query.
type Candidate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChildPage is one page of a node's children plus the cursor for the next
// page, empty when the listing is complete.
type ChildPage struct {
	Children   []*Node `json:"children"`
	NextCursor string  `json:"next_cursor"`
}
