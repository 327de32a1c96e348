package editor

import (
	"testing"

	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce(t *testing.T) {
	g := graph.New("g")
	require.NoError(t, g.AddNode(node.NewTask("a", node.Point{}, node.TaskPayload{})))
	require.NoError(t, g.AddNode(node.NewTask("b", node.Point{Y: 300}, node.TaskPayload{})))
	g.Drain()

	require.NoError(t, g.MoveNode("a", node.Point{X: 1}))
	require.NoError(t, g.MoveNode("a", node.Point{X: 2}))
	require.NoError(t, g.MoveNode("b", node.Point{X: 9}))
	require.NoError(t, g.MoveNode("a", node.Point{X: 3}))
	require.NoError(t, g.MoveNode("a", node.Point{X: 4}))
	require.NoError(t, g.UpdateTask("a", func(p *node.TaskPayload) { p.IsFinished = true }))
	require.NoError(t, g.MoveNode("a", node.Point{X: 5}))

	ops := coalesce(g.Drain())
	require.Len(t, ops, 5)
	assert.Equal(t, node.Point{}, ops[0].Prev.Position)
	assert.Equal(t, node.Point{X: 2}, ops[0].Node.Position)
	assert.Equal(t, "b", string(ops[1].Node.ID))
	assert.Equal(t, node.Point{X: 2}, ops[2].Prev.Position)
	assert.Equal(t, node.Point{X: 4}, ops[2].Node.Position)
	assert.True(t, ops[3].Node.Task.IsFinished, "payload changes are kept apart")

	// Reverting the coalesced ops restores the start state.
	g.Revert(ops, nil)
	a, _ := g.Node("a")
	assert.Equal(t, node.Point{}, a.Position)
	assert.False(t, a.Task.IsFinished)
}
