// Package node defines the vertices and edges of a task-flow graph.
//
// A Node is a plain value: the graph model hands out copies, so a caller
// can never mutate a node behind the model's back. Exactly one of the
// payload fields is meaningful, selected by Kind.
package node

import (
	"fmt"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Kind distinguishes the three vertex types of the canvas.
type Kind int

const (
	// KindTask is a completed unit of work placed on the flow.
	KindTask Kind = iota
	// KindAttachment is a file-like artifact associated with a task.
	KindAttachment
	// KindGroup is a container holding two or more attachments.
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindAttachment:
		return "attachment"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown node kind %q", b)
	}
	*k = parsed
	return nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "task":
		return KindTask, true
	case "attachment":
		return KindAttachment, true
	case "group":
		return KindGroup, true
	}
	return 0, false
}

// Point is a canvas coordinate. For a node with a parent it is relative to
// the parent's origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a width/height pair in canvas units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TaskPayload is the data carried by a KindTask node.
type TaskPayload struct {
	TaskRef       string    `json:"taskRef"`
	Label         string    `json:"label"`
	IsFinished    bool      `json:"isFinished"`
	Done          bool      `json:"done"`
	CompletedAt   time.Time `json:"completedAt"`
	GroupBadge    string    `json:"groupBadge,omitempty"`
	PriorityBadge string    `json:"priorityBadge,omitempty"`
}

// Active reports whether the task still represents ongoing work, which is
// what an animated flow edge conveys.
func (p TaskPayload) Active() bool {
	return !p.IsFinished && !p.Done
}

// AttachmentPayload is the data carried by a KindAttachment node.
type AttachmentPayload struct {
	Name     string `json:"name"`
	FileType string `json:"fileType"`
	// TaskRef is the owning task node, denormalized for display. Empty for a
	// freestanding attachment.
	TaskRef nodeid.ID `json:"taskRef,omitempty"`
}

// GroupPayload is the data carried by a KindGroup node.
type GroupPayload struct {
	// TaskID is the owning task node. Empty for a standalone group.
	TaskID      nodeid.ID `json:"taskId,omitempty"`
	MemberCount int       `json:"memberCount"`
	Label       string    `json:"label"`
	Size        Size      `json:"size"`
}

// Standalone reports whether the group is not owned by any task.
func (p GroupPayload) Standalone() bool {
	return p.TaskID.IsZero()
}

// Node is a graph vertex.
type Node struct {
	ID       nodeid.ID `json:"id"`
	Kind     Kind      `json:"kind"`
	Position Point     `json:"position"`
	// ParentID names the Group containing this node. Only attachments may
	// have a parent.
	ParentID nodeid.ID `json:"parentId,omitempty"`

	Task       TaskPayload       `json:"task,omitzero"`
	Attachment AttachmentPayload `json:"attachment,omitzero"`
	Group      GroupPayload      `json:"group,omitzero"`
}

// HasParent reports whether the node is contained in a group.
func (n Node) HasParent() bool {
	return !n.ParentID.IsZero()
}

// IsTask, IsAttachment and IsGroup are shorthands for Kind checks.
func (n Node) IsTask() bool       { return n.Kind == KindTask }
func (n Node) IsAttachment() bool { return n.Kind == KindAttachment }
func (n Node) IsGroup() bool      { return n.Kind == KindGroup }

// NewTask builds a task node.
func NewTask(id nodeid.ID, pos Point, payload TaskPayload) Node {
	return Node{ID: id, Kind: KindTask, Position: pos, Task: payload}
}

// NewAttachment builds a freestanding attachment node.
func NewAttachment(id nodeid.ID, pos Point, name, fileType string) Node {
	return Node{
		ID:         id,
		Kind:       KindAttachment,
		Position:   pos,
		Attachment: AttachmentPayload{Name: name, FileType: fileType},
	}
}

// NewGroup builds a group node.
func NewGroup(id nodeid.ID, pos Point, payload GroupPayload) Node {
	return Node{ID: id, Kind: KindGroup, Position: pos, Group: payload}
}
