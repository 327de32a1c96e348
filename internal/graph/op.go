package graph

import (
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// OpKind identifies a recorded mutation.
type OpKind int

const (
	OpAddNode OpKind = iota
	OpRemoveNode
	OpUpdateNode
	OpAddEdge
	OpRemoveEdge
	OpUpdateEdge
)

func (k OpKind) String() string {
	switch k {
	case OpAddNode:
		return "add_node"
	case OpRemoveNode:
		return "remove_node"
	case OpUpdateNode:
		return "update_node"
	case OpAddEdge:
		return "add_edge"
	case OpRemoveEdge:
		return "remove_edge"
	case OpUpdateEdge:
		return "update_edge"
	default:
		return "unknown"
	}
}

// Op is one recorded, reversible mutation.
//
// For node ops, Node is the state after the mutation and Prev the state
// before it (Prev is unused for OpAddNode, Node holds the removed value for
// OpRemoveNode). Edge ops mirror this with Edge and PrevEdge.
type Op struct {
	Kind     OpKind
	Node     node.Node
	Prev     node.Node
	Edge     node.Edge
	PrevEdge node.Edge

	// Order is the insertion-order position of an added or removed entity.
	Order int
	// FromIndex and ToIndex are member-list positions in Prev's and Node's
	// parent. -1 means no parent (or append, for ToIndex).
	FromIndex int
	ToIndex   int
}

// Inverse returns the op that undoes o.
func (o Op) Inverse() Op {
	inv := o
	switch o.Kind {
	case OpAddNode:
		inv.Kind = OpRemoveNode
	case OpRemoveNode:
		inv.Kind = OpAddNode
	case OpUpdateNode:
		inv.Node, inv.Prev = o.Prev, o.Node
		inv.FromIndex, inv.ToIndex = o.ToIndex, o.FromIndex
	case OpAddEdge:
		inv.Kind = OpRemoveEdge
	case OpRemoveEdge:
		inv.Kind = OpAddEdge
	case OpUpdateEdge:
		inv.Edge, inv.PrevEdge = o.PrevEdge, o.Edge
	}
	return inv
}

// Subject is the id of the entity the op mutates.
func (o Op) Subject() nodeid.ID {
	switch o.Kind {
	case OpAddEdge, OpRemoveEdge, OpUpdateEdge:
		return o.Edge.ID
	default:
		return o.Node.ID
	}
}

// IsNodeOp reports whether the op mutates a node.
func (o Op) IsNodeOp() bool {
	return o.Kind == OpAddNode || o.Kind == OpRemoveNode || o.Kind == OpUpdateNode
}

// Resolve rewrites every id referenced by the op through resolve. It is
// used to replay old ops after temporary ids were replaced.
func (o Op) Resolve(resolve func(nodeid.ID) nodeid.ID) Op {
	if resolve == nil {
		return o
	}
	o.Node = resolveNode(o.Node, resolve)
	o.Prev = resolveNode(o.Prev, resolve)
	o.Edge = resolveEdge(o.Edge, resolve)
	o.PrevEdge = resolveEdge(o.PrevEdge, resolve)
	return o
}

func resolveNode(n node.Node, resolve func(nodeid.ID) nodeid.ID) node.Node {
	n.ID = resolveOpt(n.ID, resolve)
	n.ParentID = resolveOpt(n.ParentID, resolve)
	n.Group.TaskID = resolveOpt(n.Group.TaskID, resolve)
	n.Attachment.TaskRef = resolveOpt(n.Attachment.TaskRef, resolve)
	return n
}

func resolveEdge(e node.Edge, resolve func(nodeid.ID) nodeid.ID) node.Edge {
	e.ID = resolveOpt(e.ID, resolve)
	e.SourceID = resolveOpt(e.SourceID, resolve)
	e.TargetID = resolveOpt(e.TargetID, resolve)
	return e
}

func resolveOpt(id nodeid.ID, resolve func(nodeid.ID) nodeid.ID) nodeid.ID {
	if id.IsZero() {
		return id
	}
	return resolve(id)
}
