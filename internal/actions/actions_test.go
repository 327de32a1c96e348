package actions

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/proximity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// setup builds a -> b -> c flow where a owns a two member group and c has
// one direct attachment.
func setup(t *testing.T) (*graph.Model, *Dispatcher) {
	t.Helper()
	g := graph.New("test")
	cfg := layout.DefaultConfig()
	ids := nodeid.Sequence("n")
	life := lifecycle.New(g, cfg, ids)
	drag := dragdrop.New(g, life, proximity.New(proximity.DefaultRadius, cfg), cfg, ids)
	d := New(g, life, drag, cfg, ids, WithClock(func() time.Time { return fixedNow }))

	ctx := context.Background()
	require.NoError(t, g.AddNode(node.NewTask("a", node.Point{}, node.TaskPayload{TaskRef: "T-1", Label: "A"})))
	require.NoError(t, g.AddNode(node.NewTask("b", node.Point{Y: 300}, node.TaskPayload{TaskRef: "T-2", Label: "B"})))
	require.NoError(t, g.AddNode(node.NewTask("c", node.Point{Y: 600}, node.TaskPayload{Label: "C", IsFinished: true})))
	for _, id := range []nodeid.ID{"x", "y", "z"} {
		require.NoError(t, g.AddNode(node.NewAttachment(id, node.Point{X: 2000}, string(id)+".pdf", "pdf")))
	}
	require.NoError(t, g.AddEdge(node.Edge{ID: "ab", SourceID: "a", TargetID: "b", Kind: node.EdgeFlow, SourcePort: node.PortBottom, TargetPort: node.PortTop, Animated: true}))
	require.NoError(t, g.AddEdge(node.Edge{ID: "bc", SourceID: "b", TargetID: "c", Kind: node.EdgeFlow, SourcePort: node.PortBottom, TargetPort: node.PortTop, Animated: true}))
	_, err := life.Attach(ctx, "a", "x")
	require.NoError(t, err)
	_, err = life.Attach(ctx, "a", "y")
	require.NoError(t, err)
	_, err = life.Attach(ctx, "c", "z")
	require.NoError(t, err)
	g.Drain()
	return g, d
}

// requireNoFlowFromFinished checks that finished tasks never start a flow.
func requireNoFlowFromFinished(t *testing.T, g *graph.Model) {
	t.Helper()
	for _, task := range g.NodesOfKind(node.KindTask) {
		if task.Task.IsFinished {
			require.Empty(t, g.OutgoingEdges(task.ID, node.EdgeFlow), "finished task %s has an outgoing flow", task.ID)
		}
	}
}

func TestToggleFinished(t *testing.T) {
	g, d := setup(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Request{Action: ToggleFinished, NodeID: "b"})
	require.NoError(t, err)
	requireNoFlowFromFinished(t, g)

	_, exists := g.Edge("bc")
	assert.False(t, exists, "outgoing flow removed")
	ab, ok := g.Edge("ab")
	require.True(t, ok, "incoming flow kept")
	assert.True(t, ab.Animated, "a is still active")

	_, err = d.Dispatch(ctx, Request{Action: ToggleFinished, NodeID: "a"})
	require.NoError(t, err)
	requireNoFlowFromFinished(t, g)
	_, exists = g.Edge("ab")
	assert.False(t, exists)

	_, err = d.Dispatch(ctx, Request{Action: ToggleFinished, NodeID: "a"})
	require.NoError(t, err)
	a, _ := g.Node("a")
	assert.False(t, a.Task.IsFinished)

	_, err = d.Dispatch(ctx, Request{Action: ToggleFinished, NodeID: "x"})
	require.ErrorIs(t, err, ErrUnsupportedTarget)
}

func TestToggleFinished_RecomputesAnimation(t *testing.T) {
	g, d := setup(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Request{Action: MarkDone, NodeID: "a"})
	require.NoError(t, err)
	ab, _ := g.Edge("ab")
	assert.True(t, ab.Animated, "b still active")

	// b finishing drops b->c and leaves a->b between two inactive tasks.
	_, err = d.Dispatch(ctx, Request{Action: ToggleFinished, NodeID: "b"})
	require.NoError(t, err)
	ab, _ = g.Edge("ab")
	assert.False(t, ab.Animated)
}

func TestMarkDone(t *testing.T) {
	g, d := setup(t)
	ctx := context.Background()

	res, err := d.Dispatch(ctx, Request{Action: MarkDone, NodeID: "a"})
	require.NoError(t, err)
	require.NotNil(t, res.Catalog)
	assert.Equal(t, CatalogChange{TaskRef: "T-1", Done: true, At: fixedNow}, *res.Catalog)

	a, _ := g.Node("a")
	assert.True(t, a.Task.Done)
	assert.False(t, a.Task.IsFinished, "done is independent of finished")
	assert.Equal(t, fixedNow, a.Task.CompletedAt)

	res, err = d.Dispatch(ctx, Request{Action: MarkUndone, NodeID: "a"})
	require.NoError(t, err)
	require.NotNil(t, res.Catalog)
	assert.False(t, res.Catalog.Done)
	a, _ = g.Node("a")
	assert.True(t, a.Task.CompletedAt.IsZero())

	res, err = d.Dispatch(ctx, Request{Action: MarkDone, NodeID: "c"})
	require.NoError(t, err)
	assert.Nil(t, res.Catalog, "no catalogue reference")
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("task", func(t *testing.T) {
		g, d := setup(t)
		groupID := lifecycle.StateOf(g, "a").GroupID

		res, err := d.Dispatch(ctx, Request{Action: Disconnect, NodeID: "a"})
		require.NoError(t, err)
		assert.Equal(t, lifecycle.TransitionRelease, res.Transition)
		assert.Empty(t, g.EdgesTouching("a"))

		group, ok := g.Node(groupID)
		require.True(t, ok, "owned group survives as standalone")
		assert.True(t, group.Group.Standalone())
		assert.Len(t, g.MembersOf(groupID), 2)
	})

	t.Run("owned group", func(t *testing.T) {
		g, d := setup(t)
		groupID := lifecycle.StateOf(g, "a").GroupID

		_, err := d.Dispatch(ctx, Request{Action: Disconnect, NodeID: groupID})
		require.NoError(t, err)
		group, ok := g.Node(groupID)
		require.True(t, ok)
		assert.True(t, group.Group.Standalone())
		assert.Equal(t, lifecycle.PlaceholderLabel, group.Group.Label)
		_, ok = g.Edge("ab")
		assert.True(t, ok, "task flows untouched")
	})

	t.Run("direct attachment", func(t *testing.T) {
		g, d := setup(t)
		_, err := d.Dispatch(ctx, Request{Action: Disconnect, NodeID: "z"})
		require.NoError(t, err)
		assert.Equal(t, lifecycle.Unattached, lifecycle.StateOf(g, "c").Kind)
	})
}

func TestDuplicate(t *testing.T) {
	ctx := context.Background()

	t.Run("group member stays in the group", func(t *testing.T) {
		g, d := setup(t)
		groupID := lifecycle.StateOf(g, "a").GroupID

		res, err := d.Dispatch(ctx, Request{Action: Duplicate, NodeID: "x"})
		require.NoError(t, err)
		require.False(t, res.CreatedID.IsZero())
		clone, ok := g.Node(res.CreatedID)
		require.True(t, ok)
		assert.Equal(t, groupID, clone.ParentID)
		assert.Equal(t, "x.pdf", clone.Attachment.Name)
		assert.Len(t, g.MembersOf(groupID), 3)
		group, _ := g.Node(groupID)
		assert.Equal(t, 3, group.Group.MemberCount)
	})

	t.Run("freestanding attachment gets an offset", func(t *testing.T) {
		g, d := setup(t)
		require.NoError(t, g.AddNode(node.NewAttachment("free", node.Point{X: 10, Y: 10}, "f", "text")))

		res, err := d.Dispatch(ctx, Request{Action: Duplicate, NodeID: "free"})
		require.NoError(t, err)
		clone, _ := g.Node(res.CreatedID)
		assert.Equal(t, node.Point{X: 30, Y: 30}, clone.Position)
		assert.False(t, clone.HasParent())
	})

	t.Run("tasks cannot be duplicated", func(t *testing.T) {
		_, d := setup(t)
		_, err := d.Dispatch(ctx, Request{Action: Duplicate, NodeID: "a"})
		require.ErrorIs(t, err, ErrUnsupportedTarget)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("task hands its group over", func(t *testing.T) {
		g, d := setup(t)
		groupID := lifecycle.StateOf(g, "a").GroupID

		_, err := d.Dispatch(ctx, Request{Action: Delete, NodeID: "a"})
		require.NoError(t, err)
		_, ok := g.Node("a")
		assert.False(t, ok)
		_, ok = g.Edge("ab")
		assert.False(t, ok)
		group, ok := g.Node(groupID)
		require.True(t, ok)
		assert.True(t, group.Group.Standalone())
		for _, m := range g.MembersOf(groupID) {
			assert.True(t, m.Attachment.TaskRef.IsZero())
		}
	})

	t.Run("member demotes a pair", func(t *testing.T) {
		g, d := setup(t)
		res, err := d.Dispatch(ctx, Request{Action: Delete, NodeID: "x"})
		require.NoError(t, err)
		assert.Equal(t, lifecycle.TransitionDemote, res.Transition)
		assert.Equal(t, lifecycle.Direct, lifecycle.StateOf(g, "a").Kind)
	})

	t.Run("missing node", func(t *testing.T) {
		_, d := setup(t)
		_, err := d.Dispatch(ctx, Request{Action: Delete, NodeID: "ghost"})
		require.ErrorIs(t, err, graph.ErrReferenceMissing)
	})
}

func TestDeleteGroup_TwoStep(t *testing.T) {
	g, d := setup(t)
	ctx := context.Background()
	groupID := lifecycle.StateOf(g, "a").GroupID

	res, err := d.Dispatch(ctx, Request{Action: DeleteGroup, NodeID: groupID})
	require.NoError(t, err)
	assert.True(t, res.AwaitingConfirmation)
	assert.Equal(t, groupID, d.PendingGroup())
	_, ok := g.Node(groupID)
	assert.True(t, ok, "nothing deleted before confirmation")

	_, err = d.Dispatch(ctx, Request{Action: CancelDeleteGroup})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, Request{Action: ConfirmDeleteGroup, NodeID: groupID})
	require.ErrorIs(t, err, ErrNothingPending)

	res, err = d.Dispatch(ctx, Request{Action: Delete, NodeID: groupID})
	require.NoError(t, err)
	require.True(t, res.AwaitingConfirmation)
	res, err = d.Dispatch(ctx, Request{Action: ConfirmDeleteGroup})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionDelete, res.Transition)

	_, ok = g.Node(groupID)
	assert.False(t, ok)
	for _, id := range []nodeid.ID{"x", "y"} {
		_, ok := g.Node(id)
		assert.False(t, ok, "member %s deleted with its group", id)
	}
	assert.Equal(t, lifecycle.Unattached, lifecycle.StateOf(g, "a").Kind)
}

func TestAddAttachment(t *testing.T) {
	ctx := context.Background()

	t.Run("onto a task with one attachment promotes", func(t *testing.T) {
		g, d := setup(t)
		res, err := d.Dispatch(ctx, Request{Action: AddAttachment, NodeID: "c", FileType: "image"})
		require.NoError(t, err)
		require.NotNil(t, res.Connection)
		assert.True(t, res.Connection.Connected())
		assert.Equal(t, lifecycle.TransitionPromote, res.Transition)

		st := lifecycle.StateOf(g, "c")
		require.Equal(t, lifecycle.Grouped, st.Kind)
		created, _ := g.Node(res.CreatedID)
		assert.Equal(t, "New image", created.Attachment.Name)
		assert.Equal(t, st.GroupID, created.ParentID)
	})

	t.Run("into a group", func(t *testing.T) {
		g, d := setup(t)
		groupID := lifecycle.StateOf(g, "a").GroupID
		res, err := d.Dispatch(ctx, Request{Action: AddAttachment, NodeID: groupID, Name: "notes.md", FileType: "text"})
		require.NoError(t, err)
		assert.Len(t, g.MembersOf(groupID), 3)
		created, _ := g.Node(res.CreatedID)
		assert.Equal(t, nodeid.ID("a"), created.Attachment.TaskRef)
	})
}

func TestDispatch_UnknownAction(t *testing.T) {
	_, d := setup(t)
	_, err := d.Dispatch(context.Background(), Request{Action: "explode", NodeID: "a"})
	require.ErrorIs(t, err, ErrUnknownAction)
}
