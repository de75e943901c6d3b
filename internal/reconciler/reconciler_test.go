package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesync/internal/matcher"
	"pagesync/internal/remote"
	"pagesync/internal/schema"
	"pagesync/internal/walker"
)

func goalsSchema() *schema.Schema {
	return &schema.Schema{Entries: []schema.Entry{{
		Key:        "goals",
		Kind:       remote.KindHeading,
		TextEquals: "Goals",
		Required:   true,
		Collection: true,
		Desired: schema.Desired{
			Kind: remote.KindCollapsibleHeading,
			Children: []schema.DesiredChild{
				{Kind: remote.KindParagraph, Text: "Ship v1"},
				{Kind: remote.KindParagraph, Text: "Reduce latency"},
				{Kind: remote.KindParagraph, Text: "Write docs"},
			},
		},
	}}}
}

// goalsDocument is Scenario A's starting point: a plain heading followed by
// three sibling paragraphs that the schema wants nested under it.
func goalsDocument() (*remote.Memory, string) {
	mem := remote.NewMemory(100)
	rootID := mem.AddRoot("Roadmap")
	mem.Add(rootID, remote.KindHeading, "Goals")
	mem.Add(rootID, remote.KindParagraph, "Ship v1")
	mem.Add(rootID, remote.KindParagraph, "Reduce latency")
	mem.Add(rootID, remote.KindParagraph, "Write docs")
	return mem, rootID
}

func buildPlan(t *testing.T, mem *remote.Memory, s *schema.Schema, query string) *Plan {
	t.Helper()
	cfg := walker.DefaultConfig()
	cfg.Retry.InitialBackoff = 1
	ix, err := walker.New(mem, cfg, nil).Discover(context.Background(), query)
	require.NoError(t, err)
	resolved, _, _, err := matcher.Match(ix, s, ix.RootID(), nil)
	require.NoError(t, err)
	return Build(ix, resolved, s, ix.RootID(), nil)
}

func countKinds(p *Plan) (creates, updates, deletes int) {
	for _, g := range p.Groups {
		for _, op := range g.Ops {
			switch op.Kind {
			case OpCreate:
				creates++
			case OpUpdate:
				updates++
			case OpDelete:
				deletes++
			}
		}
	}
	return
}

func apply(t *testing.T, mem *remote.Memory, p *Plan) int {
	t.Helper()
	retry := remote.DefaultRetryConfig()
	retry.InitialBackoff = 1
	applied, err := NewExecutor(mem, retry, nil).Apply(context.Background(), p)
	require.NoError(t, err)
	return applied
}

func TestBuild_ScenarioA_HeadingBecomesContainer(t *testing.T) {
	mem, _ := goalsDocument()
	plan := buildPlan(t, mem, goalsSchema(), "Roadmap")

	require.Len(t, plan.Groups, 1)
	creates, updates, deletes := countKinds(plan)
	assert.Equal(t, 1, updates, "kind change of the anchor")
	assert.Equal(t, 3, creates, "children created under the new container")
	assert.Equal(t, 3, deletes, "old siblings removed")

	// The move invariant: each Create precedes its paired Delete.
	first := plan.Groups[0].Ops[0]
	assert.Equal(t, OpUpdate, first.Kind)
	assert.Equal(t, remote.KindCollapsibleHeading, first.Payload.Kind)
	ops := plan.Groups[0].Ops[1:]
	for i := 0; i < len(ops); i += 2 {
		assert.Equal(t, OpCreate, ops[i].Kind)
		assert.Equal(t, OpDelete, ops[i+1].Kind)
	}
}

func TestBuild_SecondRunIsEmpty(t *testing.T) {
	mem, _ := goalsDocument()
	s := goalsSchema()

	first := buildPlan(t, mem, s, "Roadmap")
	applied := apply(t, mem, first)
	assert.Equal(t, first.Total(), applied)

	second := buildPlan(t, mem, s, "Roadmap")
	assert.True(t, second.Empty(), "already-reconciled document must plan zero ops, got %d", second.Total())
}

func TestBuild_ScenarioB_SingleMissingChild(t *testing.T) {
	mem, _ := goalsDocument()
	s := goalsSchema()
	apply(t, mem, buildPlan(t, mem, s, "Roadmap"))

	// A fourth desired child absent from the document entirely.
	s.Entries[0].Desired.Children = append(s.Entries[0].Desired.Children,
		schema.DesiredChild{Kind: remote.KindParagraph, Text: "Grow the team"})

	plan := buildPlan(t, mem, s, "Roadmap")
	creates, updates, deletes := countKinds(plan)
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, updates)
	assert.Equal(t, 0, deletes)
}

func TestBuild_MissingEntryIsCreatedWithChildren(t *testing.T) {
	mem := remote.NewMemory(100)
	mem.AddRoot("Empty Doc")

	s := &schema.Schema{Entries: []schema.Entry{{
		Key:        "risks",
		Kind:       remote.KindHeading,
		TextEquals: "Risks",
		Desired: schema.Desired{
			Children: []schema.DesiredChild{
				{Kind: remote.KindBulletedItem, Text: "Vendor lock-in"},
			},
		},
	}}}

	plan := buildPlan(t, mem, s, "Empty")
	require.Len(t, plan.Groups, 1)
	ops := plan.Groups[0].Ops
	require.Len(t, ops, 2)

	assert.Equal(t, OpCreate, ops[0].Kind)
	assert.Equal(t, -1, ops[0].ParentFromOp)
	assert.Equal(t, OpCreate, ops[1].Kind)
	assert.Equal(t, 0, ops[1].ParentFromOp, "child nests under the node the first op creates")
}

func TestBuild_MoveCrashSafety(t *testing.T) {
	// Simulate a crash after the Create half of the first move: the write
	// lands but the response is lost, so the run stops before the Delete.
	mem, _ := goalsDocument()
	s := goalsSchema()

	failed := false
	mem.HookAfter = func(op, nodeID string) error {
		if op == "append_children" && !failed {
			failed = true
			return &remote.APIError{Op: op, NodeID: nodeID, Status: 504, Msg: "response lost"}
		}
		return nil
	}

	retry := remote.DefaultRetryConfig()
	retry.InitialBackoff = 1
	plan := buildPlan(t, mem, s, "Roadmap")
	applied, err := NewExecutor(mem, retry, nil).Apply(context.Background(), plan)

	var mutErr *MutationError
	require.ErrorAs(t, err, &mutErr, "creates are never blindly retried")
	assert.Equal(t, 1, applied, "only the kind-change update acknowledged")
	mem.HookAfter = nil

	// Re-run: the pre-check must detect the already-created "Ship v1" child
	// and plan only its source's Delete, never a second Create.
	second := buildPlan(t, mem, s, "Roadmap")
	creates, updates, deletes := countKinds(second)
	assert.Equal(t, 0, updates)
	assert.Equal(t, 2, creates, "the two children whose creates never ran")
	assert.Equal(t, 3, deletes, "all three stale siblings")
	for _, op := range second.Groups[0].Ops {
		if op.Kind == OpCreate {
			assert.NotEqual(t, "Ship v1", op.Payload.PlainText(),
				"already-created child must not be created again")
		}
	}

	apply(t, mem, second)
	assert.True(t, buildPlan(t, mem, s, "Roadmap").Empty())

	// No duplication despite the partial failure.
	assert.Equal(t, 1, mem.CountMatching(func(kind remote.NodeKind, text string) bool {
		return kind == remote.KindParagraph && text == "Ship v1"
	}))
}
