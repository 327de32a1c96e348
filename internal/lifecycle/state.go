package lifecycle

import (
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// StateKind tags the attachment state of a task.
type StateKind int

const (
	// Unattached: no attachments.
	Unattached StateKind = iota
	// Direct: attachments connected straight to the task by attachment edges.
	Direct
	// Grouped: attachments collected in a container owned by the task.
	Grouped
)

func (k StateKind) String() string {
	switch k {
	case Unattached:
		return "unattached"
	case Direct:
		return "direct"
	case Grouped:
		return "grouped"
	default:
		return "unknown"
	}
}

// State is the attachment state of one task.
type State struct {
	Kind StateKind
	// Edges holds the direct attachment edges (Direct).
	Edges []node.Edge
	// GroupID is the owned container (Grouped).
	GroupID nodeid.ID
	// Count is the task's total attachment count.
	Count int
}

// StateOf derives the attachment state of a task from the graph.
func StateOf(v graph.View, taskID nodeid.ID) State {
	direct := v.OutgoingEdges(taskID, node.EdgeAttachment)
	if g, ok := v.GroupOwnedBy(taskID); ok {
		return State{
			Kind:    Grouped,
			Edges:   direct,
			GroupID: g.ID,
			Count:   len(v.MembersOf(g.ID)) + len(direct),
		}
	}
	if len(direct) > 0 {
		return State{Kind: Direct, Edges: direct, Count: len(direct)}
	}
	return State{Kind: Unattached}
}

// Transition names what a lifecycle operation did, for logs and metrics.
type Transition string

const (
	TransitionNone     Transition = ""
	TransitionDirect   Transition = "direct"
	TransitionPromote  Transition = "promote"
	TransitionAppend   Transition = "append"
	TransitionReflow   Transition = "reflow"
	TransitionDemote   Transition = "demote"
	TransitionDissolve Transition = "dissolve"
	TransitionAdopt    Transition = "adopt"
	TransitionMerge    Transition = "merge"
	TransitionRelease  Transition = "release"
	TransitionDetach   Transition = "detach"
	TransitionDelete   Transition = "delete"
)
