// Package reconciler diffs matched document state against the schema's
// desired end state and applies the resulting mutation plan. The backing API
// has no cross-call transactions, so every step is planned to be
// independently idempotent: a crashed or partially-applied run converges on
// the next invocation instead of duplicating content.
package reconciler

import (
	"go.uber.org/zap"

	"pagesync/internal/matcher"
	"pagesync/internal/remote"
	"pagesync/internal/schema"
	"pagesync/internal/walker"
)

// Build computes the mutation plan that closes the gap between the resolved
// document state and the schema. Ops are grouped per entry, in schema order.
// Building against an already-converged document yields an empty plan.
func Build(ix *walker.NodeIndex, resolved matcher.ResolvedMap, s *schema.Schema, scopeRootID string, logger *zap.Logger) *Plan {
	if logger == nil {
		logger = zap.NewNop()
	}

	plan := newPlan()
	for _, entry := range s.Entries {
		var ops []Op
		if res := resolved[entry.Key]; res != nil {
			ops = diffEntry(ix, res)
		} else {
			ops = createEntry(entry, scopeRootID)
		}
		if len(ops) > 0 {
			plan.Groups = append(plan.Groups, Group{Key: entry.Key, Ops: ops})
		}
	}

	logger.Debug("plan built",
		zap.String("plan", plan.ID),
		zap.Int("groups", len(plan.Groups)),
		zap.Int("ops", plan.Total()))
	return plan
}

// createEntry plans a section that currently has no match at all: the anchor
// node plus its desired children, nested under the op that creates the
// anchor.
func createEntry(entry schema.Entry, scopeRootID string) []Op {
	ops := []Op{{
		Kind:         OpCreate,
		ParentID:     scopeRootID,
		ParentFromOp: -1,
		Payload:      entry.CreationPayload(),
	}}
	for _, child := range entry.Desired.Children {
		ops = append(ops, Op{
			Kind:         OpCreate,
			ParentFromOp: 0,
			Payload:      remote.Text(child.Kind, child.Text),
		})
	}
	return ops
}

// diffEntry plans the mutations for a resolved section: a kind or content
// update of the anchor, then one pass over the desired children. A child
// that exists as a sibling instead of a child becomes a move, realized as
// Create-under-anchor followed by Delete-of-sibling.
//
// The idempotence pre-check lives here: before planning the Create half of a
// move, the anchor's current children are consulted; if a node with the
// target kind and content already exists the Create is skipped and only the
// stale source's Delete is planned. That is what lets a run that crashed
// between the two halves converge on re-invocation.
func diffEntry(ix *walker.NodeIndex, res *matcher.Resolved) []Op {
	entry := res.Entry
	anchor := ix.Node(res.NodeID)
	var ops []Op

	desiredKind := entry.DesiredKind()
	desiredText := entry.Desired.Text
	needKind := anchor.Kind != desiredKind
	needText := desiredText != "" && anchor.PlainText() != desiredText
	if needKind || needText {
		payload := remote.Payload{Kind: desiredKind, Content: anchor.Content}
		if desiredText != "" {
			payload.Content = []remote.TextRun{{Text: desiredText}}
		}
		ops = append(ops, Op{Kind: OpUpdate, NodeID: res.NodeID, Payload: payload})
	}

	if len(entry.Desired.Children) == 0 {
		return ops
	}

	usedChildren := make(map[string]bool)
	usedSources := make(map[string]bool)
	for _, want := range entry.Desired.Children {
		if id := findChild(ix, res.NodeID, want, usedChildren); id != "" {
			usedChildren[id] = true
		} else {
			ops = append(ops, Op{
				Kind:         OpCreate,
				ParentID:     res.NodeID,
				ParentFromOp: -1,
				Payload:      remote.Text(want.Kind, want.Text),
			})
		}
		// A sibling in the collection run carrying this content is the
		// stale source of a move and goes away either way.
		if src := findSource(ix, res.Run, want, usedSources); src != "" {
			usedSources[src] = true
			ops = append(ops, Op{Kind: OpDelete, NodeID: src})
		}
	}

	return ops
}

// findChild returns an unclaimed current child of parentID already
// satisfying the desired child, or "".
func findChild(ix *walker.NodeIndex, parentID string, want schema.DesiredChild, used map[string]bool) string {
	for _, id := range ix.Children(parentID) {
		if used[id] {
			continue
		}
		n := ix.Node(id)
		if n.Kind == want.Kind && n.PlainText() == want.Text {
			return id
		}
	}
	return ""
}

// findSource returns an unclaimed run sibling whose text matches the desired
// child, or "". Kind is not required to match; a move may change it.
func findSource(ix *walker.NodeIndex, run []string, want schema.DesiredChild, used map[string]bool) string {
	for _, id := range run {
		if used[id] {
			continue
		}
		if ix.Node(id).PlainText() == want.Text {
			return id
		}
	}
	return ""
}
