// Package connection decides whether a proposed edge may be created and,
// if so, what kind of edge it becomes.
//
// The rules are applied in a fixed order and the first failing rule names
// the rejection. Rejection is a value, not an error: from the user's point
// of view a refused connection is simply a no-op.
package connection

import (
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Reason explains a rejection. The empty Reason means accepted.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonMissingNode     Reason = "missing_node"
	ReasonSelfConnection  Reason = "self_connection"
	ReasonGroupedMember   Reason = "grouped_member"
	ReasonTaskAttachPorts Reason = "task_attachment_ports"
	ReasonFinishedSource  Reason = "finished_source"
	ReasonMixedPorts      Reason = "mixed_ports"
	ReasonDuplicate       Reason = "duplicate"
	ReasonAlreadyAttached Reason = "already_attached"
	ReasonAlreadyOwned    Reason = "already_owned"
	ReasonUnsupported     Reason = "unsupported"
)

// Proposal is a connection the user (or a drop) asks for.
type Proposal struct {
	SourceID   nodeid.ID `json:"source"`
	TargetID   nodeid.ID `json:"target"`
	SourcePort node.Port `json:"sourcePort,omitempty"`
	TargetPort node.Port `json:"targetPort,omitempty"`
}

// Decision is the validator's verdict.
type Decision struct {
	Accepted bool
	Reason   Reason

	// Edge template for an accepted proposal. Ports are canonical: flow
	// edges always run bottom -> top, attachment edges task -> attachable.
	Kind       node.EdgeKind
	SourceID   nodeid.ID
	TargetID   nodeid.ID
	SourcePort node.Port
	TargetPort node.Port
	Animated   bool

	// For attachment-style decisions, the task and the attachment or
	// standalone group joining it.
	TaskID       nodeid.ID
	AttachableID nodeid.ID
}

func reject(r Reason) Decision {
	return Decision{Reason: r}
}

// Validate applies the connection rules to p.
func Validate(v graph.View, p Proposal) Decision {
	src, ok := v.Node(p.SourceID)
	if !ok {
		return reject(ReasonMissingNode)
	}
	dst, ok := v.Node(p.TargetID)
	if !ok {
		return reject(ReasonMissingNode)
	}
	if src.ID == dst.ID {
		return reject(ReasonSelfConnection)
	}

	sp := defaultPort(src, dst, p.SourcePort, true)
	tp := defaultPort(dst, src, p.TargetPort, false)

	// 1. Group members cannot be reconnected independently.
	if isMember(src) || isMember(dst) {
		return reject(ReasonGroupedMember)
	}

	bothTasks := src.IsTask() && dst.IsTask()

	// 2. Task to task only over flow ports.
	if bothTasks && (sp.IsAttachment() || tp.IsAttachment()) {
		return reject(ReasonTaskAttachPorts)
	}

	// 3. A finished task cannot start a flow.
	if src.IsTask() && src.Task.IsFinished && sp.IsFlow() {
		return reject(ReasonFinishedSource)
	}

	// 4. Flow ports pair only with flow ports, attachment ports only with
	// attachment ports.
	if (sp.IsFlow() && tp.IsAttachment()) || (sp.IsAttachment() && tp.IsFlow()) {
		return reject(ReasonMixedPorts)
	}

	// 5. Task -> task flow.
	if bothTasks {
		if !sp.IsFlow() || !tp.IsFlow() {
			return reject(ReasonUnsupported)
		}
		if _, exists := v.EdgeBetween(src.ID, dst.ID, node.EdgeFlow); exists {
			return reject(ReasonDuplicate)
		}
		return Decision{
			Accepted:   true,
			Kind:       node.EdgeFlow,
			SourceID:   src.ID,
			TargetID:   dst.ID,
			SourcePort: node.PortBottom,
			TargetPort: node.PortTop,
			Animated:   FlowAnimated(src.Task, dst.Task),
		}
	}

	// 6. Task with a standalone attachment or an unowned group.
	task, other := src, dst
	if !task.IsTask() {
		task, other = dst, src
	}
	if !task.IsTask() || !sp.IsAttachment() || !tp.IsAttachment() {
		return reject(ReasonUnsupported)
	}

	switch other.Kind {
	case node.KindAttachment:
		if len(v.EdgesTouching(other.ID)) > 0 {
			return reject(ReasonAlreadyAttached)
		}
		return attachDecision(task, other, node.EdgeAttachment)
	case node.KindGroup:
		if !other.Group.Standalone() {
			return reject(ReasonAlreadyOwned)
		}
		return attachDecision(task, other, node.EdgeGroup)
	}
	return reject(ReasonUnsupported)
}

// FlowAnimated reports whether a flow edge between two tasks conveys
// still-active work.
func FlowAnimated(source, target node.TaskPayload) bool {
	return source.Active() || target.Active()
}

func attachDecision(task, other node.Node, kind node.EdgeKind) Decision {
	return Decision{
		Accepted:     true,
		Kind:         kind,
		SourceID:     task.ID,
		TargetID:     other.ID,
		SourcePort:   node.PortAttach,
		TargetPort:   node.PortAttach,
		TaskID:       task.ID,
		AttachableID: other.ID,
	}
}

func isMember(n node.Node) bool {
	return n.IsAttachment() && n.HasParent()
}

// defaultPort fills in a missing port from the node kinds involved.
func defaultPort(self, other node.Node, p node.Port, isSource bool) node.Port {
	if p != node.PortNone {
		return p
	}
	if self.IsTask() && other.IsTask() {
		if isSource {
			return node.PortBottom
		}
		return node.PortTop
	}
	return node.PortAttach
}
