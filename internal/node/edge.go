package node

import (
	"fmt"

	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// EdgeKind is the semantic kind of a connection.
type EdgeKind int

const (
	// EdgeFlow sequences two tasks.
	EdgeFlow EdgeKind = iota
	// EdgeAttachment links a task to one standalone attachment.
	EdgeAttachment
	// EdgeGroup links a task to the container holding its attachments.
	EdgeGroup
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFlow:
		return "flow"
	case EdgeAttachment:
		return "attachment"
	case EdgeGroup:
		return "group"
	default:
		return "unknown"
	}
}

func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EdgeKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseEdgeKind(string(b))
	if !ok {
		return fmt.Errorf("unknown edge kind %q", b)
	}
	*k = parsed
	return nil
}

// ParseEdgeKind is the inverse of EdgeKind.String.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch s {
	case "flow":
		return EdgeFlow, true
	case "attachment":
		return EdgeAttachment, true
	case "group":
		return EdgeGroup, true
	}
	return 0, false
}

// Port is a named connection handle on a node.
type Port string

const (
	PortNone Port = ""
	// PortTop and PortBottom are the flow ports of a task.
	PortTop    Port = "top"
	PortBottom Port = "bottom"
	// PortAttach is the attachment handle of tasks, attachments and groups.
	PortAttach Port = "attach"
	// PortOut is the outward-facing handle exposed by a standalone group.
	PortOut Port = "out"
)

// IsFlow reports whether p is a flow port.
func (p Port) IsFlow() bool {
	return p == PortTop || p == PortBottom
}

// IsAttachment reports whether p is an attachment port.
func (p Port) IsAttachment() bool {
	return p == PortAttach || p == PortOut
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID         nodeid.ID `json:"id"`
	SourceID   nodeid.ID `json:"sourceId"`
	TargetID   nodeid.ID `json:"targetId"`
	SourcePort Port      `json:"sourcePort,omitempty"`
	TargetPort Port      `json:"targetPort,omitempty"`
	Kind       EdgeKind  `json:"kind"`
	// Animated marks a connection that represents still-active work.
	Animated bool `json:"animated"`
}

// Touches reports whether id is either endpoint of the edge.
func (e Edge) Touches(id nodeid.ID) bool {
	return e.SourceID == id || e.TargetID == id
}

// Other returns the endpoint opposite to id.
func (e Edge) Other(id nodeid.ID) nodeid.ID {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}
