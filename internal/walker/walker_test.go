package walker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pagesync/internal/remote"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 2
	cfg.Retry.InitialBackoff = 1
	cfg.Retry.MaxBackoff = 1
	return cfg
}

func TestWalker_Discover_DeepNesting(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Target buried three container levels down: column list -> column ->
	// collapsible heading. A depth-1 traversal would miss it.
	mem := remote.NewMemory(100)
	rootID := mem.AddRoot("Team Handbook")
	colList := mem.Add(rootID, remote.KindColumnList, "")
	col := mem.Add(colList, remote.KindColumn, "")
	sec := mem.Add(col, remote.KindCollapsibleHeading, "Quarterly Goals")
	target := mem.Add(sec, remote.KindParagraph, "buried paragraph")

	w := New(mem, fastConfig(), nil)
	ix, err := w.Discover(context.Background(), "Handbook")
	require.NoError(t, err)

	require.NotNil(t, ix.Node(target), "deeply nested node should be discovered")
	assert.Equal(t, sec, ix.Parent(target))
	assert.Equal(t, col, ix.Parent(sec))
	assert.Equal(t, colList, ix.Parent(col))
	assert.Equal(t, rootID, ix.Parent(colList))
	assert.Equal(t, 4, ix.Len())
}

func TestWalker_Discover_FollowsPagination(t *testing.T) {
	mem := remote.NewMemory(2) // force continuation cursors
	rootID := mem.AddRoot("Paged Doc")
	want := []string{}
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		want = append(want, mem.Add(rootID, remote.KindParagraph, text))
	}

	w := New(mem, fastConfig(), nil)
	ix, err := w.Discover(context.Background(), "Paged")
	require.NoError(t, err)

	assert.Equal(t, want, ix.Children(rootID), "all pages should be followed, in order")
	assert.GreaterOrEqual(t, mem.Calls["get_children"], 3, "five children at page size two need three pages")
}

func TestWalker_Discover_RootNotFound(t *testing.T) {
	mem := remote.NewMemory(100)
	mem.AddRoot("Team Handbook")

	w := New(mem, fastConfig(), nil)
	_, err := w.Discover(context.Background(), "No Such Document")
	require.ErrorIs(t, err, ErrRootNotFound)
}

func TestWalker_Discover_RetriesTransientReads(t *testing.T) {
	mem := remote.NewMemory(100)
	rootID := mem.AddRoot("Flaky Doc")
	mem.Add(rootID, remote.KindParagraph, "content")

	failures := 2
	mem.Hook = func(op, nodeID string) error {
		if op == "get_children" && failures > 0 {
			failures--
			return &remote.APIError{Op: op, NodeID: nodeID, Status: 503, Msg: "overloaded"}
		}
		return nil
	}

	w := New(mem, fastConfig(), nil)
	ix, err := w.Discover(context.Background(), "Flaky")
	require.NoError(t, err, "transient read failures should be retried away")
	assert.Equal(t, 1, ix.Len())
}

func TestWalker_Discover_RetriesExhausted(t *testing.T) {
	mem := remote.NewMemory(100)
	rootID := mem.AddRoot("Down Doc")
	mem.Add(rootID, remote.KindParagraph, "content")

	mem.Hook = func(op, nodeID string) error {
		if op == "get_children" {
			return &remote.APIError{Op: op, NodeID: nodeID, Status: 503, Msg: "still down"}
		}
		return nil
	}

	w := New(mem, fastConfig(), nil)
	_, err := w.Discover(context.Background(), "Down")
	require.ErrorIs(t, err, remote.ErrRetriesExhausted)
}

func TestWalker_Discover_PageLimitGuard(t *testing.T) {
	mem := remote.NewMemory(1)
	rootID := mem.AddRoot("Endless Doc")
	for _, text := range []string{"a", "b", "c", "d"} {
		mem.Add(rootID, remote.KindParagraph, text)
	}

	cfg := fastConfig()
	cfg.MaxPagesPerNode = 2
	w := New(mem, cfg, nil)
	_, err := w.Discover(context.Background(), "Endless")
	require.ErrorIs(t, err, ErrPageLimit)
}

func TestWalker_Discover_ConcurrentFetchesJoin(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Wide level: many siblings with children each, fetched with bounded
	// fan-out. The returned index must be a complete snapshot.
	mem := remote.NewMemory(100)
	rootID := mem.AddRoot("Wide Doc")
	leaves := 0
	for i := 0; i < 20; i++ {
		sec := mem.Add(rootID, remote.KindHeading, "Section")
		mem.Add(sec, remote.KindParagraph, "body")
		leaves++
	}

	cfg := fastConfig()
	cfg.FetchFanout = 4
	w := New(mem, cfg, nil)
	ix, err := w.Discover(context.Background(), "Wide")
	require.NoError(t, err)
	assert.Equal(t, 20+leaves, ix.Len())
}

func TestNodeIndex_SubtreeOrder(t *testing.T) {
	mem := remote.NewMemory(100)
	rootID := mem.AddRoot("Ordered Doc")
	h1 := mem.Add(rootID, remote.KindHeading, "First")
	p1 := mem.Add(h1, remote.KindParagraph, "first body")
	h2 := mem.Add(rootID, remote.KindHeading, "Second")

	w := New(mem, fastConfig(), nil)
	ix, err := w.Discover(context.Background(), "Ordered")
	require.NoError(t, err)

	// Document order: depth-first, children before later siblings.
	assert.Equal(t, []string{h1, p1, h2}, ix.SubtreeOrder(rootID))
	assert.Equal(t, []string{p1}, ix.SubtreeOrder(h1))
}
