// Package storetest holds behaviour checks shared by every graphstore.Store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store created fresh for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) graphstore.Store) {
	t.Run("empty graph lists nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		nodes, err := s.ListNodes(ctx, "nothing-here")
		require.NoError(t, err)
		assert.Empty(t, nodes)
		edges, err := s.ListEdges(ctx, "nothing-here")
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("create assigns permanent ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tmp := nodeid.NewTemp()
		created, err := s.CreateNode(ctx, "g1", node.NewTask(tmp, node.Point{X: 10, Y: 20}, node.TaskPayload{TaskRef: "T-1", Label: "Write"}))
		require.NoError(t, err)
		assert.NotEqual(t, tmp, created.ID)
		assert.False(t, created.ID.IsTemp())
		assert.Equal(t, node.KindTask, created.Kind)
		assert.Equal(t, "T-1", created.Task.TaskRef)

		nodes, err := s.ListNodes(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, created, nodes[0])
	})

	t.Run("graphs are isolated and ordered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := mustCreate(t, s, "g1", node.NewTask(nodeid.NewTemp(), node.Point{}, node.TaskPayload{Label: "a"}))
		b := mustCreate(t, s, "g1", node.NewTask(nodeid.NewTemp(), node.Point{Y: 200}, node.TaskPayload{Label: "b"}))
		mustCreate(t, s, "g2", node.NewTask(nodeid.NewTemp(), node.Point{}, node.TaskPayload{Label: "other"}))

		nodes, err := s.ListNodes(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, a.ID, nodes[0].ID)
		assert.Equal(t, b.ID, nodes[1].ID)
	})

	t.Run("updates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := mustCreate(t, s, "g1", node.NewTask(nodeid.NewTemp(), node.Point{}, node.TaskPayload{}))
		group := mustCreate(t, s, "g1", node.NewGroup(nodeid.NewTemp(), node.Point{X: 400}, node.GroupPayload{}))
		att := mustCreate(t, s, "g1", node.NewAttachment(nodeid.NewTemp(), node.Point{X: 900}, "a.pdf", "pdf"))

		require.NoError(t, s.UpdateNodePosition(ctx, task.ID, node.Point{X: 5, Y: 6}))
		require.NoError(t, s.UpdateNodeFinished(ctx, task.ID, true))
		require.NoError(t, s.UpdateNodeParent(ctx, att.ID, group.ID))
		require.NoError(t, s.UpdateNodePosition(ctx, att.ID, node.Point{X: 25, Y: 60}))

		nodes, err := s.ListNodes(ctx, "g1")
		require.NoError(t, err)
		byID := index(nodes)
		assert.Equal(t, node.Point{X: 5, Y: 6}, byID[task.ID].Position)
		assert.True(t, byID[task.ID].Task.IsFinished)
		assert.Equal(t, group.ID, byID[att.ID].ParentID)
		assert.Equal(t, node.Point{X: 25, Y: 60}, byID[att.ID].Position)

		require.NoError(t, s.UpdateNodeParent(ctx, att.ID, nodeid.None))
		nodes, err = s.ListNodes(ctx, "g1")
		require.NoError(t, err)
		assert.False(t, index(nodes)[att.ID].HasParent())
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.ErrorIs(t, s.UpdateNodePosition(ctx, "ghost", node.Point{}), graphstore.ErrNotFound)
		require.ErrorIs(t, s.UpdateNodeFinished(ctx, "ghost", true), graphstore.ErrNotFound)
		require.ErrorIs(t, s.DeleteNode(ctx, "ghost"), graphstore.ErrNotFound)
		require.ErrorIs(t, s.DeleteEdge(ctx, "g1", "ghost", "other"), graphstore.ErrNotFound)
	})

	t.Run("edges", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := mustCreate(t, s, "g1", node.NewTask(nodeid.NewTemp(), node.Point{}, node.TaskPayload{}))
		b := mustCreate(t, s, "g1", node.NewTask(nodeid.NewTemp(), node.Point{Y: 200}, node.TaskPayload{}))

		e, err := s.CreateEdge(ctx, "g1", node.Edge{
			ID: nodeid.NewTemp(), SourceID: a.ID, TargetID: b.ID,
			SourcePort: node.PortBottom, TargetPort: node.PortTop,
			Kind: node.EdgeFlow, Animated: true,
		})
		require.NoError(t, err)
		assert.False(t, e.ID.IsTemp())

		edges, err := s.ListEdges(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, e, edges[0])

		_, err = s.CreateEdge(ctx, "g1", node.Edge{ID: nodeid.NewTemp(), SourceID: a.ID, TargetID: "ghost", Kind: node.EdgeFlow})
		require.ErrorIs(t, err, graphstore.ErrNotFound)

		require.ErrorIs(t, s.DeleteEdge(ctx, "g1", b.ID, a.ID), graphstore.ErrNotFound, "direction matters")
		require.NoError(t, s.DeleteEdge(ctx, "g1", a.ID, b.ID))
		edges, err = s.ListEdges(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("delete node", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := mustCreate(t, s, "g1", node.NewTask(nodeid.NewTemp(), node.Point{}, node.TaskPayload{}))
		require.NoError(t, s.DeleteNode(ctx, a.ID))
		nodes, err := s.ListNodes(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, nodes)
		require.ErrorIs(t, s.DeleteNode(ctx, a.ID), graphstore.ErrNotFound)
	})
}

func mustCreate(t *testing.T, s graphstore.Store, graphID string, n node.Node) node.Node {
	t.Helper()
	created, err := s.CreateNode(context.Background(), graphID, n)
	require.NoError(t, err)
	return created
}

func index(nodes []node.Node) map[nodeid.ID]node.Node {
	out := make(map[nodeid.ID]node.Node, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}
