package graph

import (
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// View is the read-only side of the model, consumed by the validator, the
// proximity resolver and snapshot builders.
type View interface {
	// Node returns a copy of the node, or false if it doesn't exist.
	Node(id nodeid.ID) (node.Node, bool)

	// Nodes returns all nodes in insertion order.
	Nodes() []node.Node

	// NodesOfKind returns the nodes of one kind in insertion order.
	NodesOfKind(kind node.Kind) []node.Node

	// Edges returns all edges in insertion order.
	Edges() []node.Edge

	// EdgesTouching returns every edge with id as source or target.
	EdgesTouching(id nodeid.ID) []node.Edge

	// OutgoingEdges returns the edges of the given kind whose source is id.
	OutgoingEdges(id nodeid.ID, kind node.EdgeKind) []node.Edge

	// EdgeBetween finds an edge of the given kind joining a and b in either
	// direction.
	EdgeBetween(a, b nodeid.ID, kind node.EdgeKind) (node.Edge, bool)

	// MembersOf returns the members of a group in slot order.
	MembersOf(groupID nodeid.ID) []node.Node

	// GroupOwnedBy returns the group owned by a task, if any.
	GroupOwnedBy(taskID nodeid.ID) (node.Node, bool)
}

var _ View = (*Model)(nil)
