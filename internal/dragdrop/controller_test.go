package dragdrop

import (
	"context"
	"testing"

	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/proximity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T) (*graph.Model, *Controller) {
	t.Helper()
	g := graph.New("test")
	cfg := layout.DefaultConfig()
	ids := nodeid.Sequence("n")
	life := lifecycle.New(g, cfg, ids)
	return g, New(g, life, proximity.New(proximity.DefaultRadius, cfg), cfg, ids)
}

// TestScenario walks through building a small flow by hand: two tasks
// wired by proximity, then two attachments dragged onto the first task.
func TestScenario(t *testing.T) {
	g, c := newController(t)
	ctx := context.Background()
	cfg := layout.DefaultConfig()

	resA, err := c.DropTask(ctx, node.TaskPayload{Label: "A"}, node.Point{X: 0, Y: 0})
	require.NoError(t, err)
	assert.False(t, resA.Attempted, "nothing to wire to on an empty canvas")
	a := resA.NodeID

	resB, err := c.DropTask(ctx, node.TaskPayload{Label: "B"}, node.Point{X: 100, Y: 100})
	require.NoError(t, err)
	require.True(t, resB.Connected())
	b := resB.NodeID

	flows := g.OutgoingEdges(a, node.EdgeFlow)
	require.Len(t, flows, 1)
	assert.Equal(t, b, flows[0].TargetID)
	assert.Equal(t, node.PortBottom, flows[0].SourcePort)
	assert.Equal(t, node.PortTop, flows[0].TargetPort)
	assert.True(t, flows[0].Animated)

	aNode, _ := g.Node(a)
	bNode, _ := g.Node(b)
	assert.Equal(t, cfg.Beneath(aNode.Position), bNode.Position, "B sits below A")

	// Drag X from the library onto A.
	resX, err := c.DropAttachment(ctx, AttachmentSpec{Name: "x.pdf", FileType: "pdf"}, node.Point{X: 2000, Y: 2000})
	require.NoError(t, err)
	x := resX.NodeID
	require.NoError(t, c.Begin(x))
	hover, err := c.Move(ctx, x, node.Point{X: 50, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, a, hover.AnchorID, "A is highlighted")
	res, err := c.End(ctx, x, node.Point{X: 50, Y: 0})
	require.NoError(t, err)
	require.True(t, res.Connected())
	assert.Equal(t, lifecycle.TransitionDirect, res.Transition)
	assert.False(t, c.Highlight().Active(), "highlight cleared after the drop")

	direct := g.OutgoingEdges(a, node.EdgeAttachment)
	require.Len(t, direct, 1)
	assert.Equal(t, x, direct[0].TargetID)

	// Drag Y onto A: promotion.
	resY, err := c.DropAttachment(ctx, AttachmentSpec{Name: "y.png", FileType: "image"}, node.Point{X: 2000, Y: 2000})
	require.NoError(t, err)
	y := resY.NodeID
	res, err = c.End(ctx, y, node.Point{X: 50, Y: -20})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionPromote, res.Transition)

	st := lifecycle.StateOf(g, a)
	require.Equal(t, lifecycle.Grouped, st.Kind)
	assert.Empty(t, g.OutgoingEdges(a, node.EdgeAttachment))
	groupEdges := g.OutgoingEdges(a, node.EdgeGroup)
	require.Len(t, groupEdges, 1)
	assert.Equal(t, st.GroupID, groupEdges[0].TargetID)
	members := g.MembersOf(st.GroupID)
	require.Len(t, members, 2)
	slots := layout.Compute(cfg, 2).Slots
	assert.Equal(t, x, members[0].ID)
	assert.Equal(t, slots[0], members[0].Position)
	assert.Equal(t, y, members[1].ID)
	assert.Equal(t, slots[1], members[1].Position)

	// Delete X: the group dissolves and Y goes back to a direct edge.
	life := lifecycle.New(g, cfg, nodeid.Sequence("later"))
	_, err = life.DeleteAttachment(ctx, x)
	require.NoError(t, err)
	_, exists := g.Node(st.GroupID)
	assert.False(t, exists)
	direct = g.OutgoingEdges(a, node.EdgeAttachment)
	require.Len(t, direct, 1)
	assert.Equal(t, y, direct[0].TargetID)
}

func TestDropTask(t *testing.T) {
	ctx := context.Background()

	t.Run("outside the radius stays unwired", func(t *testing.T) {
		g, c := newController(t)
		_, err := c.DropTask(ctx, node.TaskPayload{}, node.Point{})
		require.NoError(t, err)
		res, err := c.DropTask(ctx, node.TaskPayload{}, node.Point{X: 200})
		require.NoError(t, err)
		assert.False(t, res.Attempted)
		assert.Empty(t, g.Edges())

		n, _ := g.Node(res.NodeID)
		assert.Equal(t, node.Point{X: 75, Y: -60}, n.Position, "centered on the drop point")
	})

	t.Run("occupied slot shifts diagonally", func(t *testing.T) {
		g, c := newController(t)
		cfg := layout.DefaultConfig()
		resA, err := c.DropTask(ctx, node.TaskPayload{}, node.Point{})
		require.NoError(t, err)
		a, _ := g.Node(resA.NodeID)
		below := cfg.Beneath(a.Position)
		require.NoError(t, g.AddNode(node.NewTask("blocker", below, node.TaskPayload{})))

		res, err := c.DropTask(ctx, node.TaskPayload{}, node.Point{X: 10, Y: 10})
		require.NoError(t, err)
		require.True(t, res.Connected())
		assert.Equal(t, resA.NodeID, res.AnchorID)
		n, _ := g.Node(res.NodeID)
		assert.NotEqual(t, below, n.Position)
		assert.False(t, layout.Overlaps(n.Position, cfg.TaskSize(), below, cfg.TaskSize()))
	})

	t.Run("finished anchor is not wired", func(t *testing.T) {
		g, c := newController(t)
		require.NoError(t, g.AddNode(node.NewTask("fin", node.Point{X: -125, Y: -60}, node.TaskPayload{IsFinished: true})))
		res, err := c.DropTask(ctx, node.TaskPayload{}, node.Point{X: 0, Y: 50})
		require.NoError(t, err)
		assert.True(t, res.Attempted)
		assert.Equal(t, connection.ReasonFinishedSource, res.Decision.Reason)
		assert.Empty(t, g.Edges())
	})
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	t.Run("highlight clears outside the radius", func(t *testing.T) {
		g, c := newController(t)
		require.NoError(t, g.AddNode(node.NewTask("t", node.Point{X: -125, Y: -60}, node.TaskPayload{})))
		require.NoError(t, g.AddNode(node.NewAttachment("x", node.Point{X: 1000}, "x", "pdf")))
		require.NoError(t, c.Begin("x"))

		h, err := c.Move(ctx, "x", node.Point{X: 199})
		require.NoError(t, err)
		assert.True(t, h.Active())
		h, err = c.Move(ctx, "x", node.Point{X: 200})
		require.NoError(t, err)
		assert.False(t, h.Active())
		assert.Equal(t, nodeid.ID("x"), c.Highlight().NodeID)
	})

	t.Run("tasks are never highlighted targets", func(t *testing.T) {
		g, c := newController(t)
		require.NoError(t, g.AddNode(node.NewTask("t", node.Point{}, node.TaskPayload{})))
		require.NoError(t, g.AddNode(node.NewTask("u", node.Point{X: 1000}, node.TaskPayload{})))
		h, err := c.Move(ctx, "u", node.Point{X: 150, Y: 60})
		require.NoError(t, err)
		assert.False(t, h.Active())
	})

	t.Run("members are clamped into their container", func(t *testing.T) {
		g, c := newController(t)
		cfg := layout.DefaultConfig()
		require.NoError(t, g.AddNode(node.NewGroup("grp", node.Point{X: 500, Y: 500}, node.GroupPayload{Size: node.Size{Width: 350, Height: 160}})))
		m := node.NewAttachment("m", node.Point{X: 25, Y: 60}, "m", "pdf")
		m.ParentID = "grp"
		require.NoError(t, g.AddNode(m))

		_, err := c.Move(ctx, "m", node.Point{X: 0, Y: 0})
		require.NoError(t, err)
		got, _ := g.Node("m")
		assert.Equal(t, node.Point{X: 0, Y: cfg.HeaderHeight}, got.Position)

		_, err = c.Move(ctx, "m", node.Point{X: 5000, Y: 5000})
		require.NoError(t, err)
		got, _ = g.Node("m")
		assert.Equal(t, node.Point{X: 350 - cfg.ItemWidth, Y: 160 - cfg.ItemHeight}, got.Position)
	})

	t.Run("missing node", func(t *testing.T) {
		_, c := newController(t)
		_, err := c.Move(ctx, "ghost", node.Point{})
		require.ErrorIs(t, err, graph.ErrReferenceMissing)
		require.ErrorIs(t, c.Begin("ghost"), graph.ErrReferenceMissing)
	})
}

func TestEnd_StandaloneGroupSnaps(t *testing.T) {
	g, c := newController(t)
	ctx := context.Background()
	require.NoError(t, g.AddNode(node.NewTask("t", node.Point{X: -125, Y: -60}, node.TaskPayload{Label: "T"})))
	require.NoError(t, g.AddNode(node.NewGroup("solo", node.Point{X: 1000}, node.GroupPayload{Label: lifecycle.PlaceholderLabel})))
	for _, id := range []nodeid.ID{"p", "q"} {
		a := node.NewAttachment(id, node.Point{}, string(id), "pdf")
		a.ParentID = "solo"
		require.NoError(t, g.AddNode(a))
	}

	res, err := c.End(ctx, "solo", node.Point{X: 100, Y: 0})
	require.NoError(t, err)
	require.True(t, res.Connected())
	assert.Equal(t, node.EdgeGroup, res.Decision.Kind)
	assert.Equal(t, lifecycle.TransitionAdopt, res.Transition)

	owned, ok := g.GroupOwnedBy("t")
	require.True(t, ok)
	assert.Equal(t, nodeid.ID("solo"), owned.ID)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	g, c := newController(t)
	require.NoError(t, g.AddNode(node.NewTask("a", node.Point{}, node.TaskPayload{})))
	require.NoError(t, g.AddNode(node.NewTask("b", node.Point{Y: 300}, node.TaskPayload{})))
	require.NoError(t, g.AddNode(node.NewAttachment("x", node.Point{X: 800}, "x", "pdf")))

	res, err := c.Connect(ctx, connection.Proposal{SourceID: "a", TargetID: "b"})
	require.NoError(t, err)
	assert.True(t, res.Connected())
	_, ok := g.EdgeBetween("a", "b", node.EdgeFlow)
	assert.True(t, ok)

	res, err = c.Connect(ctx, connection.Proposal{SourceID: "b", TargetID: "a"})
	require.NoError(t, err)
	assert.False(t, res.Connected())
	assert.Equal(t, connection.ReasonDuplicate, res.Decision.Reason)

	res, err = c.Connect(ctx, connection.Proposal{SourceID: "a", TargetID: "x", SourcePort: node.PortBottom, TargetPort: node.PortAttach})
	require.NoError(t, err)
	assert.Equal(t, connection.ReasonMixedPorts, res.Decision.Reason)

	res, err = c.Connect(ctx, connection.Proposal{SourceID: "x", TargetID: "a", SourcePort: node.PortAttach, TargetPort: node.PortAttach})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionDirect, res.Transition)
}
