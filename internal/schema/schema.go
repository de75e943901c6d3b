// Package schema declares the target structure a document must converge to.
// Callers build schemas in code or load them from YAML files; entries are
// matched against discovered nodes by kind and text content, never by ID.
package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pagesync/internal/remote"
)

// Entry declares one target section under a symbolic key.
type Entry struct {
	// Key is the symbolic name later stages use to reference the section.
	Key string `yaml:"key"`

	// Match predicate: Kind is required; exactly one of TextEquals or
	// TextContains must be set. Text matching is case-sensitive over the
	// concatenation of a node's text runs.
	Kind         remote.NodeKind `yaml:"kind"`
	TextEquals   string          `yaml:"text_equals,omitempty"`
	TextContains string          `yaml:"text_contains,omitempty"`

	// Required makes a missing match fatal for the whole run.
	Required bool `yaml:"required,omitempty"`

	// Collection matches an ordered run of siblings after the anchor rather
	// than a single node.
	Collection bool `yaml:"collection,omitempty"`

	Desired Desired `yaml:"desired,omitempty"`
}

// Desired is the end state an entry's section must reach. Zero-valued fields
// mean "leave as is".
type Desired struct {
	Kind     remote.NodeKind `yaml:"kind,omitempty"`
	Text     string          `yaml:"text,omitempty"`
	Children []DesiredChild  `yaml:"children,omitempty"`
}

// DesiredChild is one child the section must contain, in order.
type DesiredChild struct {
	Kind remote.NodeKind `yaml:"kind"`
	Text string          `yaml:"text"`
}

// Schema is an ordered list of entries. Order matters twice: collection runs
// stop at the next entry's anchor, and mutation plans execute entry by entry.
type Schema struct {
	Entries []Entry `yaml:"entries"`
}

// Load reads and validates a schema from a YAML file.
func Load(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks keys are unique and predicates well-formed.
func (s *Schema) Validate() error {
	if len(s.Entries) == 0 {
		return fmt.Errorf("schema has no entries")
	}
	seen := make(map[string]bool, len(s.Entries))
	for i, e := range s.Entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("entry %d: missing key", i)
		}
		if seen[e.Key] {
			return fmt.Errorf("duplicate entry key %q", e.Key)
		}
		seen[e.Key] = true
		if !remote.ValidKind(e.Kind) {
			return fmt.Errorf("entry %q: invalid kind %q", e.Key, e.Kind)
		}
		if (e.TextEquals == "") == (e.TextContains == "") {
			return fmt.Errorf("entry %q: exactly one of text_equals or text_contains required", e.Key)
		}
		if e.Desired.Kind != "" && !remote.ValidKind(e.Desired.Kind) {
			return fmt.Errorf("entry %q: invalid desired kind %q", e.Key, e.Desired.Kind)
		}
		for j, c := range e.Desired.Children {
			if !remote.ValidKind(c.Kind) {
				return fmt.Errorf("entry %q: desired child %d: invalid kind %q", e.Key, j, c.Kind)
			}
		}
	}
	return nil
}

// Matches reports whether the node satisfies the entry's match predicate.
// Both the declared kind and the desired kind are accepted: once a section
// has been converted (say, plain heading to collapsible heading), the entry
// must keep resolving to it on later runs.
func (e Entry) Matches(n *remote.Node) bool {
	if n == nil {
		return false
	}
	if n.Kind != e.Kind && n.Kind != e.DesiredKind() {
		return false
	}
	text := n.PlainText()
	if e.TextEquals != "" {
		return text == e.TextEquals
	}
	return strings.Contains(text, e.TextContains)
}

// DesiredKind resolves the end-state kind, defaulting to the match kind.
func (e Entry) DesiredKind() remote.NodeKind {
	if e.Desired.Kind != "" {
		return e.Desired.Kind
	}
	return e.Kind
}

// CreationPayload is what gets created when the entry has no match at all.
func (e Entry) CreationPayload() remote.Payload {
	text := e.Desired.Text
	if text == "" {
		text = e.TextEquals
	}
	if text == "" {
		text = e.TextContains
	}
	return remote.Text(e.DesiredKind(), text)
}
