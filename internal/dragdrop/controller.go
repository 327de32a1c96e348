// Package dragdrop turns pointer gestures on the canvas into graph
// mutations: dropping new nodes, dragging existing ones with a live anchor
// highlight, and connecting nodes through the validator.
package dragdrop

import (
	"context"
	"fmt"

	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/proximity"
)

// maxDiagonalShifts bounds the search for a free slot beneath an anchor.
const maxDiagonalShifts = 8

// Hover is the drop-target highlight shown while dragging.
type Hover struct {
	NodeID   nodeid.ID `json:"nodeId"`
	AnchorID nodeid.ID `json:"anchorId,omitzero"`
}

// Active reports whether a drop target is highlighted.
func (h Hover) Active() bool { return !h.AnchorID.IsZero() }

// Result describes what a gesture did.
type Result struct {
	// NodeID is the node created or moved by the gesture.
	NodeID nodeid.ID
	// AnchorID is the task the node snapped to, if any.
	AnchorID nodeid.ID
	// Decision is the validator's verdict when a connection was attempted.
	Decision   connection.Decision
	Attempted  bool
	Transition lifecycle.Transition
}

// Connected reports whether the gesture produced a connection.
func (r Result) Connected() bool { return r.Attempted && r.Decision.Accepted }

// AttachmentSpec describes an attachment created by a drop.
type AttachmentSpec struct {
	Name     string
	FileType string
}

// Controller owns the drag state of one editor session. It is not safe for
// concurrent use; the editor serializes access.
type Controller struct {
	g     *graph.Model
	life  *lifecycle.Manager
	prox  proximity.Resolver
	cfg   layout.Config
	newID nodeid.Generator

	hover Hover
}

// New creates a Controller.
func New(g *graph.Model, life *lifecycle.Manager, prox proximity.Resolver, cfg layout.Config, newID nodeid.Generator) *Controller {
	if newID == nil {
		newID = nodeid.NewTemp
	}
	return &Controller{g: g, life: life, prox: prox, cfg: cfg, newID: newID}
}

// Highlight returns the current drop-target highlight.
func (c *Controller) Highlight() Hover { return c.hover }

// Rekey follows an id replacement in the highlight.
func (c *Controller) Rekey(oldID, newID nodeid.ID) {
	if c.hover.NodeID == oldID {
		c.hover.NodeID = newID
	}
	if c.hover.AnchorID == oldID {
		c.hover.AnchorID = newID
	}
}

// DropTask creates a task centered on p. When a task lies within the
// snapping radius the new task is wired after it and placed beneath it.
func (c *Controller) DropTask(ctx context.Context, payload node.TaskPayload, p node.Point) (Result, error) {
	logger := ctxlog.FromContext(ctx)

	anchor, hasAnchor := c.prox.Nearest(c.g, p)
	t := node.NewTask(c.newID(), p.Sub(half(c.cfg.TaskSize())), payload)
	if err := c.g.AddNode(t); err != nil {
		return Result{}, fmt.Errorf("failed to add task: %w", err)
	}
	res := Result{NodeID: t.ID}
	if !hasAnchor {
		logger.Debug("Task dropped.", "task", t.ID)
		return res, nil
	}

	res.AnchorID = anchor.ID
	res.Attempted = true
	res.Decision = connection.Validate(c.g, connection.Proposal{
		SourceID:   anchor.ID,
		TargetID:   t.ID,
		SourcePort: node.PortBottom,
		TargetPort: node.PortTop,
	})
	if !res.Decision.Accepted {
		logger.Debug("Task dropped near an anchor that cannot start a flow.", "task", t.ID, "anchor", anchor.ID, "reason", res.Decision.Reason)
		return res, nil
	}

	anchorNode, ok := c.g.Node(anchor.ID)
	if !ok {
		return res, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, anchor.ID)
	}
	if err := c.g.MoveNode(t.ID, c.freeSlotBeneath(anchorNode, t.ID)); err != nil {
		return res, err
	}
	if err := c.addEdge(res.Decision); err != nil {
		return res, err
	}
	logger.Debug("Task dropped and wired after anchor.", "task", t.ID, "anchor", anchor.ID, "distance", anchor.Distance)
	return res, nil
}

// DropAttachment creates an attachment centered on p and, when a task lies
// within the snapping radius, attaches it.
func (c *Controller) DropAttachment(ctx context.Context, spec AttachmentSpec, p node.Point) (Result, error) {
	a := node.NewAttachment(c.newID(), p.Sub(half(c.cfg.ItemSize())), spec.Name, spec.FileType)
	if err := c.g.AddNode(a); err != nil {
		return Result{}, fmt.Errorf("failed to add attachment: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Attachment dropped.", "attachment", a.ID, "file_type", spec.FileType)
	return c.snap(ctx, a.ID, p)
}

// Begin starts dragging an existing node.
func (c *Controller) Begin(id nodeid.ID) error {
	if _, ok := c.g.Node(id); !ok {
		return fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, id)
	}
	c.hover = Hover{NodeID: id}
	return nil
}

// Move drags a node so that its center follows p and refreshes the
// highlight. Group members stay inside their container.
func (c *Controller) Move(ctx context.Context, id nodeid.ID, p node.Point) (Hover, error) {
	n, ok := c.g.Node(id)
	if !ok {
		c.reset()
		return Hover{}, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, id)
	}
	if err := c.g.MoveNode(id, c.positionFor(n, p)); err != nil {
		return Hover{}, err
	}

	c.hover = Hover{NodeID: id}
	if snappable(c.g, n) {
		if anchor, ok := c.prox.Nearest(c.g, p); ok {
			c.hover.AnchorID = anchor.ID
		}
	}
	return c.hover, nil
}

// End finishes a drag at p. A freestanding attachment or standalone group
// released within the radius of a task is connected to it.
func (c *Controller) End(ctx context.Context, id nodeid.ID, p node.Point) (Result, error) {
	defer c.reset()

	n, ok := c.g.Node(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, id)
	}
	if err := c.g.MoveNode(id, c.positionFor(n, p)); err != nil {
		return Result{}, err
	}
	if !snappable(c.g, n) {
		return Result{NodeID: id}, nil
	}
	return c.snap(ctx, id, p)
}

// Connect handles an explicit port-to-port connection.
func (c *Controller) Connect(ctx context.Context, p connection.Proposal) (Result, error) {
	res := Result{NodeID: p.TargetID, Attempted: true}
	res.Decision = connection.Validate(c.g, p)
	if !res.Decision.Accepted {
		ctxlog.FromContext(ctx).Debug("Connection rejected.", "source", p.SourceID, "target", p.TargetID, "reason", res.Decision.Reason)
		return res, nil
	}
	return c.accept(ctx, res)
}

// snap connects a node to the nearest task around p.
func (c *Controller) snap(ctx context.Context, id nodeid.ID, p node.Point) (Result, error) {
	res := Result{NodeID: id}
	anchor, ok := c.prox.Nearest(c.g, p, id)
	if !ok {
		return res, nil
	}
	res.AnchorID = anchor.ID
	res.Attempted = true
	res.Decision = connection.Validate(c.g, connection.Proposal{SourceID: id, TargetID: anchor.ID})
	if !res.Decision.Accepted {
		ctxlog.FromContext(ctx).Debug("Drop on anchor rejected.", "node", id, "anchor", anchor.ID, "reason", res.Decision.Reason)
		return res, nil
	}
	return c.accept(ctx, res)
}

func (c *Controller) accept(ctx context.Context, res Result) (Result, error) {
	d := res.Decision
	var err error
	switch d.Kind {
	case node.EdgeFlow:
		err = c.addEdge(d)
	case node.EdgeAttachment:
		res.Transition, err = c.life.Attach(ctx, d.TaskID, d.AttachableID)
	case node.EdgeGroup:
		res.Transition, err = c.life.AttachGroup(ctx, d.TaskID, d.AttachableID)
	default:
		err = fmt.Errorf("unsupported edge kind %s", d.Kind)
	}
	return res, err
}

func (c *Controller) addEdge(d connection.Decision) error {
	return c.g.AddEdge(node.Edge{
		ID:         c.newID(),
		SourceID:   d.SourceID,
		TargetID:   d.TargetID,
		SourcePort: d.SourcePort,
		TargetPort: d.TargetPort,
		Kind:       d.Kind,
		Animated:   d.Animated,
	})
}

// freeSlotBeneath finds a position below the anchor that no other node
// overlaps, shifting diagonally while the slot is taken.
func (c *Controller) freeSlotBeneath(anchor node.Node, self nodeid.ID) node.Point {
	pos := c.cfg.Beneath(anchor.Position)
	for range maxDiagonalShifts {
		if !c.occupied(pos, c.cfg.TaskSize(), self) {
			break
		}
		pos = c.cfg.Diagonal(pos)
	}
	return pos
}

func (c *Controller) occupied(origin node.Point, size node.Size, self nodeid.ID) bool {
	for _, n := range c.g.Nodes() {
		if n.ID == self || n.HasParent() {
			continue
		}
		if layout.Overlaps(origin, size, n.Position, c.cfg.SizeOf(n)) {
			return true
		}
	}
	return false
}

// positionFor converts a pointer position into the node's stored position.
func (c *Controller) positionFor(n node.Node, p node.Point) node.Point {
	pos := p.Sub(half(c.cfg.SizeOf(n)))
	if !n.HasParent() {
		return pos
	}
	parent, ok := c.g.Node(n.ParentID)
	if !ok {
		return pos
	}
	return c.cfg.Clamp(pos.Sub(parent.Position), c.cfg.SizeOf(parent))
}

func (c *Controller) reset() {
	c.hover = Hover{}
}

// snappable reports whether dropping n near a task should connect it.
func snappable(v graph.View, n node.Node) bool {
	switch n.Kind {
	case node.KindAttachment:
		return !n.HasParent() && len(v.EdgesTouching(n.ID)) == 0
	case node.KindGroup:
		return n.Group.Standalone()
	default:
		return false
	}
}

func half(s node.Size) node.Point {
	return node.Point{X: s.Width / 2, Y: s.Height / 2}
}
