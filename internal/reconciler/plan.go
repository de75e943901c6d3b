package reconciler

import (
	"fmt"

	"github.com/google/uuid"

	"pagesync/internal/remote"
)

// OpKind tags a mutation operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one primitive mutation. A logical move never appears as a single op;
// it is always a Create under the new parent followed by a Delete of the
// stale source.
type Op struct {
	Kind OpKind

	// Create fields. ParentID may be empty when ParentFromOp is set, meaning
	// the parent is the node created by an earlier op in the same group.
	ParentID     string
	ParentFromOp int // index within the group; -1 when ParentID is literal
	AfterID      string
	Payload      remote.Payload

	// Update and Delete target.
	NodeID string
}

func (o Op) String() string {
	switch o.Kind {
	case OpCreate:
		if o.ParentFromOp >= 0 {
			return fmt.Sprintf("create %q under op[%d]", o.Payload.PlainText(), o.ParentFromOp)
		}
		return fmt.Sprintf("create %q under %s", o.Payload.PlainText(), o.ParentID)
	case OpUpdate:
		return fmt.Sprintf("update %s to %s %q", o.NodeID, o.Payload.Kind, o.Payload.PlainText())
	default:
		return fmt.Sprintf("delete %s", o.NodeID)
	}
}

// Group holds the ordered ops for one schema entry. Groups execute in entry
// order and an op failure stops everything after it, bounding the blast
// radius of a failure to one logical section.
type Group struct {
	Key string
	Ops []Op
}

// Plan is the full ordered mutation plan for one reconcile run.
type Plan struct {
	ID     string
	Groups []Group
}

func newPlan() *Plan {
	return &Plan{ID: uuid.NewString()}
}

// Total counts ops across all groups.
func (p *Plan) Total() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Ops)
	}
	return n
}

// Empty reports whether the plan contains no operations. A reconcile of an
// already-converged document must produce an empty plan.
func (p *Plan) Empty() bool { return p.Total() == 0 }
