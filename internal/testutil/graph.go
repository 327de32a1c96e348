package testutil

import (
	"context"
	"testing"

	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/stretchr/testify/require"
)

// GraphBuilder assembles a graph.Model for tests, failing the test on any
// invalid step.
type GraphBuilder struct {
	t *testing.T
	g *graph.Model
}

// NewGraph starts an empty graph.
func NewGraph(t *testing.T, graphID string) *GraphBuilder {
	t.Helper()
	return &GraphBuilder{t: t, g: graph.New(graphID)}
}

// Task adds a task node.
func (b *GraphBuilder) Task(id nodeid.ID, x, y float64, label string) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddNode(node.NewTask(id, node.Point{X: x, Y: y}, node.TaskPayload{Label: label})))
	return b
}

// Attachment adds a freestanding attachment.
func (b *GraphBuilder) Attachment(id nodeid.ID, x, y float64, name string) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddNode(node.NewAttachment(id, node.Point{X: x, Y: y}, name, "file")))
	return b
}

// Flow adds an animated flow edge between two tasks.
func (b *GraphBuilder) Flow(id, source, target nodeid.ID) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddEdge(node.Edge{
		ID:         id,
		SourceID:   source,
		TargetID:   target,
		SourcePort: node.PortBottom,
		TargetPort: node.PortTop,
		Kind:       node.EdgeFlow,
		Animated:   true,
	}))
	return b
}

// Build returns the graph with an empty journal.
func (b *GraphBuilder) Build() *graph.Model {
	b.g.Drain()
	return b.g
}

// Seed writes the nodes and edges of g into store and returns the ids it
// assigned, keyed by the ids in g.
func Seed(t *testing.T, store graphstore.Store, graphID string, g *graph.Model) map[nodeid.ID]nodeid.ID {
	t.Helper()
	ctx := context.Background()
	ids := make(map[nodeid.ID]nodeid.ID)
	resolve := func(id nodeid.ID) nodeid.ID {
		if stored, ok := ids[id]; ok {
			return stored
		}
		return id
	}
	for _, n := range g.Nodes() {
		local := n.ID
		n.ParentID = resolve(n.ParentID)
		n.Group.TaskID = resolve(n.Group.TaskID)
		n.Attachment.TaskRef = resolve(n.Attachment.TaskRef)
		created, err := store.CreateNode(ctx, graphID, n)
		require.NoError(t, err)
		ids[local] = created.ID
	}
	for _, e := range g.Edges() {
		local := e.ID
		e.SourceID = resolve(e.SourceID)
		e.TargetID = resolve(e.TargetID)
		created, err := store.CreateEdge(ctx, graphID, e)
		require.NoError(t, err)
		ids[local] = created.ID
	}
	return ids
}
