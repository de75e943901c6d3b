// Package matcher resolves schema entries against a discovered NodeIndex.
// Matching is deliberately simple: filter by kind, then case-sensitive text
// containment, first hit in document order wins. Target documents are
// expected to carry unique human-authored section titles, so there is no
// scoring or ranking.
package matcher

import (
	"fmt"

	"go.uber.org/zap"

	"pagesync/internal/schema"
	"pagesync/internal/walker"
)

// Resolved binds one schema entry to the node(s) currently realizing it.
type Resolved struct {
	Entry  schema.Entry
	NodeID string
	// Run holds the ordered sibling run claimed by a collection entry,
	// excluding the anchor itself.
	Run []string
}

// ResolvedMap maps entry key to its resolution.
type ResolvedMap map[string]*Resolved

// Ambiguity records extra candidates for a singleton entry beyond the first.
// Non-fatal: the engine proceeds with the first candidate in document order.
type Ambiguity struct {
	Key          string
	ChosenID     string
	AlternateIDs []string
}

// NoMatchError means a required entry resolved to nothing. It aborts the
// run before any mutation is attempted.
type NoMatchError struct {
	Key string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("required schema entry %q has no matching node", e.Key)
}

// Match resolves every schema entry within scopeRootID's subtree.
// Unresolved optional entries are returned by key; the reconciler turns them
// into creations. Scoping is mandatory when sibling subtrees could contain
// similarly named sections, so callers pass the narrowest reasonable root.
func Match(ix *walker.NodeIndex, s *schema.Schema, scopeRootID string, logger *zap.Logger) (ResolvedMap, []string, []Ambiguity, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	order := ix.SubtreeOrder(scopeRootID)
	resolved := make(ResolvedMap, len(s.Entries))
	var unresolved []string
	var ambiguities []Ambiguity

	for _, entry := range s.Entries {
		var anchorID string
		var alternates []string
		for _, id := range order {
			if !entry.Matches(ix.Node(id)) {
				continue
			}
			if anchorID == "" {
				anchorID = id
				if entry.Collection {
					break
				}
				continue
			}
			alternates = append(alternates, id)
		}

		if anchorID == "" {
			if entry.Required {
				return nil, nil, nil, &NoMatchError{Key: entry.Key}
			}
			unresolved = append(unresolved, entry.Key)
			continue
		}

		if len(alternates) > 0 {
			logger.Warn("ambiguous match, proceeding with first candidate",
				zap.String("entry", entry.Key),
				zap.String("chosen", anchorID),
				zap.Strings("alternates", alternates))
			ambiguities = append(ambiguities, Ambiguity{
				Key:          entry.Key,
				ChosenID:     anchorID,
				AlternateIDs: alternates,
			})
		}

		res := &Resolved{Entry: entry, NodeID: anchorID}
		if entry.Collection {
			res.Run = collectSiblingRun(ix, s, anchorID, entry.Key)
		}
		resolved[entry.Key] = res
	}

	return resolved, unresolved, ambiguities, nil
}

// collectSiblingRun gathers the ordered siblings following the anchor, up to
// but excluding the next sibling that matches any other top-level entry.
func collectSiblingRun(ix *walker.NodeIndex, s *schema.Schema, anchorID, ownKey string) []string {
	parentID := ix.Parent(anchorID)
	siblings := ix.Children(parentID)

	start := -1
	for i, id := range siblings {
		if id == anchorID {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var run []string
	for _, id := range siblings[start:] {
		if matchesOtherEntry(ix, s, id, ownKey) {
			break
		}
		run = append(run, id)
	}
	return run
}

func matchesOtherEntry(ix *walker.NodeIndex, s *schema.Schema, id, ownKey string) bool {
	n := ix.Node(id)
	for _, entry := range s.Entries {
		if entry.Key == ownKey {
			continue
		}
		if entry.Matches(n) {
			return true
		}
	}
	return false
}
