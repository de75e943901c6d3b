package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesync/internal/remote"
)

func TestLoad_ValidSchema(t *testing.T) {
	raw := `
entries:
  - key: goals
    kind: heading
    text_equals: Goals
    required: true
    collection: true
    desired:
      kind: collapsible_heading
      children:
        - kind: paragraph
          text: Ship v1
        - kind: paragraph
          text: Reduce latency
  - key: notes
    kind: callout
    text_contains: Notes
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Entries, 2)

	goals := s.Entries[0]
	assert.Equal(t, "goals", goals.Key)
	assert.Equal(t, remote.KindHeading, goals.Kind)
	assert.True(t, goals.Required)
	assert.True(t, goals.Collection)
	assert.Equal(t, remote.KindCollapsibleHeading, goals.DesiredKind())
	assert.Len(t, goals.Desired.Children, 2)

	notes := s.Entries[1]
	assert.False(t, notes.Required)
	assert.Equal(t, remote.KindCallout, notes.DesiredKind(), "desired kind defaults to match kind")
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		schema Schema
	}{
		{"empty", Schema{}},
		{"missing key", Schema{Entries: []Entry{
			{Kind: remote.KindHeading, TextEquals: "X"},
		}}},
		{"duplicate key", Schema{Entries: []Entry{
			{Key: "a", Kind: remote.KindHeading, TextEquals: "X"},
			{Key: "a", Kind: remote.KindHeading, TextEquals: "Y"},
		}}},
		{"bad kind", Schema{Entries: []Entry{
			{Key: "a", Kind: "divider", TextEquals: "X"},
		}}},
		{"no text predicate", Schema{Entries: []Entry{
			{Key: "a", Kind: remote.KindHeading},
		}}},
		{"both text predicates", Schema{Entries: []Entry{
			{Key: "a", Kind: remote.KindHeading, TextEquals: "X", TextContains: "X"},
		}}},
		{"bad desired kind", Schema{Entries: []Entry{
			{Key: "a", Kind: remote.KindHeading, TextEquals: "X", Desired: Desired{Kind: "divider"}},
		}}},
		{"bad desired child kind", Schema{Entries: []Entry{
			{Key: "a", Kind: remote.KindHeading, TextEquals: "X",
				Desired: Desired{Children: []DesiredChild{{Kind: "divider", Text: "y"}}}},
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.schema.Validate())
		})
	}
}

func TestEntry_Matches(t *testing.T) {
	entry := Entry{
		Key:        "goals",
		Kind:       remote.KindHeading,
		TextEquals: "Goals",
		Desired:    Desired{Kind: remote.KindCollapsibleHeading},
	}

	t.Run("kind and exact text", func(t *testing.T) {
		n := &remote.Node{Kind: remote.KindHeading, Content: []remote.TextRun{{Text: "Goals"}}}
		assert.True(t, entry.Matches(n))
	})

	t.Run("desired kind also matches", func(t *testing.T) {
		// After conversion the section keeps resolving.
		n := &remote.Node{Kind: remote.KindCollapsibleHeading, Content: []remote.TextRun{{Text: "Goals"}}}
		assert.True(t, entry.Matches(n))
	})

	t.Run("wrong kind", func(t *testing.T) {
		n := &remote.Node{Kind: remote.KindParagraph, Content: []remote.TextRun{{Text: "Goals"}}}
		assert.False(t, entry.Matches(n))
	})

	t.Run("exact match is case sensitive", func(t *testing.T) {
		n := &remote.Node{Kind: remote.KindHeading, Content: []remote.TextRun{{Text: "goals"}}}
		assert.False(t, entry.Matches(n))
	})

	t.Run("substring over concatenated runs", func(t *testing.T) {
		sub := Entry{Key: "n", Kind: remote.KindCallout, TextContains: "Release Notes"}
		n := &remote.Node{Kind: remote.KindCallout, Content: []remote.TextRun{
			{Text: "Release ", Bold: true}, {Text: "Notes for v2"},
		}}
		assert.True(t, sub.Matches(n))
	})

	t.Run("nil node", func(t *testing.T) {
		assert.False(t, entry.Matches(nil))
	})
}
