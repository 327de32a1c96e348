// Package actions maps context-menu actions onto graph transitions.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Action names a context-menu entry.
type Action string

const (
	ToggleFinished     Action = "toggle_finished"
	MarkDone           Action = "mark_done"
	MarkUndone         Action = "mark_undone"
	Disconnect         Action = "disconnect"
	Duplicate          Action = "duplicate"
	Delete             Action = "delete"
	AddAttachment      Action = "add_attachment"
	DeleteGroup        Action = "delete_group"
	ConfirmDeleteGroup Action = "confirm_delete_group"
	CancelDeleteGroup  Action = "cancel_delete_group"
)

var (
	ErrUnknownAction = errors.New("actions: unknown action")
	// ErrUnsupportedTarget is returned when an action doesn't apply to the
	// kind of node it was invoked on.
	ErrUnsupportedTarget = errors.New("actions: action not supported on this node")
	// ErrNothingPending is returned when confirming a group deletion that
	// was never requested.
	ErrNothingPending = errors.New("actions: no group deletion awaiting confirmation")
)

// Request is one menu invocation.
type Request struct {
	Action Action    `json:"action" validate:"required"`
	NodeID nodeid.ID `json:"nodeId"`
	// Name and FileType describe the attachment created by add_attachment.
	Name     string `json:"name,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// CatalogChange is a completion update to forward to the task catalogue.
type CatalogChange struct {
	TaskRef string
	Done    bool
	At      time.Time
}

// Result describes what an action did.
type Result struct {
	Action     Action
	NodeID     nodeid.ID
	CreatedID  nodeid.ID
	Transition lifecycle.Transition
	Connection *dragdrop.Result
	// Catalog is set when the task catalogue has to be updated and the
	// task list refreshed.
	Catalog *CatalogChange
	// AwaitingConfirmation is set when a group deletion waits for the user.
	AwaitingConfirmation bool
}

// Dispatcher executes context actions against one graph. Like the drag
// controller it relies on the editor to serialize calls.
type Dispatcher struct {
	g     *graph.Model
	life  *lifecycle.Manager
	drag  *dragdrop.Controller
	cfg   layout.Config
	newID nodeid.Generator
	now   func() time.Time

	pendingGroup nodeid.ID
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher.
func New(g *graph.Model, life *lifecycle.Manager, drag *dragdrop.Controller, cfg layout.Config, newID nodeid.Generator, opts ...Option) *Dispatcher {
	if newID == nil {
		newID = nodeid.NewTemp
	}
	d := &Dispatcher{g: g, life: life, drag: drag, cfg: cfg, newID: newID, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PendingGroup returns the group whose deletion awaits confirmation.
func (d *Dispatcher) PendingGroup() nodeid.ID { return d.pendingGroup }

// Rekey follows an id replacement in the pending confirmation.
func (d *Dispatcher) Rekey(oldID, newID nodeid.ID) {
	if d.pendingGroup == oldID {
		d.pendingGroup = newID
	}
}

// Dispatch runs one action.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	ctx = ctxlog.With(ctx, "action", string(req.Action), "node", req.NodeID)
	res := Result{Action: req.Action, NodeID: req.NodeID}

	// Confirmation steps work on the pending group, not on a looked-up node.
	switch req.Action {
	case ConfirmDeleteGroup:
		return d.confirmDeleteGroup(ctx, req, res)
	case CancelDeleteGroup:
		d.pendingGroup = nodeid.None
		return res, nil
	}

	n, ok := d.g.Node(req.NodeID)
	if !ok {
		return res, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, req.NodeID)
	}

	var err error
	switch req.Action {
	case ToggleFinished:
		err = d.toggleFinished(ctx, n)
	case MarkDone, MarkUndone:
		res.Catalog, err = d.markDone(ctx, n, req.Action == MarkDone)
	case Disconnect:
		res.Transition, err = d.disconnect(ctx, n)
	case Duplicate:
		res.CreatedID, res.Transition, err = d.duplicate(ctx, n)
	case Delete:
		if n.IsGroup() {
			d.pendingGroup = n.ID
			res.AwaitingConfirmation = true
			return res, nil
		}
		res.Transition, err = d.delete(ctx, n)
	case AddAttachment:
		res, err = d.addAttachment(ctx, n, req, res)
	case DeleteGroup:
		if !n.IsGroup() {
			return res, fmt.Errorf("%w: %s on %s", ErrUnsupportedTarget, req.Action, n.Kind)
		}
		d.pendingGroup = n.ID
		res.AwaitingConfirmation = true
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	return res, err
}

func (d *Dispatcher) toggleFinished(ctx context.Context, n node.Node) error {
	if !n.IsTask() {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedTarget, ToggleFinished, n.Kind)
	}
	finished := !n.Task.IsFinished
	if finished {
		for _, e := range d.g.OutgoingEdges(n.ID, node.EdgeFlow) {
			if err := d.g.RemoveEdge(e.ID); err != nil {
				return err
			}
		}
	}
	if err := d.g.UpdateTask(n.ID, func(p *node.TaskPayload) { p.IsFinished = finished }); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Task finished flag toggled.", "finished", finished)
	return d.refreshAnimation(n.ID)
}

func (d *Dispatcher) markDone(ctx context.Context, n node.Node, done bool) (*CatalogChange, error) {
	if !n.IsTask() {
		return nil, fmt.Errorf("%w: mark done on %s", ErrUnsupportedTarget, n.Kind)
	}
	var at time.Time
	if done {
		at = d.now().UTC()
	}
	if err := d.g.UpdateTask(n.ID, func(p *node.TaskPayload) {
		p.Done = done
		p.CompletedAt = at
	}); err != nil {
		return nil, err
	}
	if err := d.refreshAnimation(n.ID); err != nil {
		return nil, err
	}
	if n.Task.TaskRef == "" {
		ctxlog.FromContext(ctx).Warn("Task has no catalogue reference, completion kept local.")
		return nil, nil
	}
	return &CatalogChange{TaskRef: n.Task.TaskRef, Done: done, At: at}, nil
}

// refreshAnimation recomputes the animated flag of every flow edge
// touching a task.
func (d *Dispatcher) refreshAnimation(taskID nodeid.ID) error {
	for _, e := range d.g.EdgesTouching(taskID) {
		if e.Kind != node.EdgeFlow {
			continue
		}
		src, ok1 := d.g.Node(e.SourceID)
		dst, ok2 := d.g.Node(e.TargetID)
		if !ok1 || !ok2 {
			continue
		}
		if err := d.g.SetEdgeAnimated(e.ID, connection.FlowAnimated(src.Task, dst.Task)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) disconnect(ctx context.Context, n node.Node) (lifecycle.Transition, error) {
	switch n.Kind {
	case node.KindTask:
		tr, err := d.life.ReleaseTask(ctx, n.ID)
		if err != nil {
			return tr, err
		}
		for _, e := range d.g.EdgesTouching(n.ID) {
			if err := d.g.RemoveEdge(e.ID); err != nil {
				return tr, err
			}
		}
		return tr, nil
	case node.KindAttachment:
		if n.HasParent() || len(d.g.EdgesTouching(n.ID)) > 0 {
			return d.life.Detach(ctx, n.ID)
		}
		return lifecycle.TransitionNone, nil
	default:
		return d.life.Disown(ctx, n.ID)
	}
}

func (d *Dispatcher) duplicate(ctx context.Context, n node.Node) (nodeid.ID, lifecycle.Transition, error) {
	if !n.IsAttachment() {
		return nodeid.None, lifecycle.TransitionNone, fmt.Errorf("%w: %s on %s", ErrUnsupportedTarget, Duplicate, n.Kind)
	}
	clone := node.NewAttachment(d.newID(), n.Position.Add(node.Point{X: d.cfg.DuplicateOffset, Y: d.cfg.DuplicateOffset}), n.Attachment.Name, n.Attachment.FileType)
	if n.HasParent() {
		tr, err := d.life.InsertMember(ctx, n.ParentID, clone)
		return clone.ID, tr, err
	}
	if err := d.g.AddNode(clone); err != nil {
		return nodeid.None, lifecycle.TransitionNone, err
	}
	ctxlog.FromContext(ctx).Debug("Attachment duplicated.", "clone", clone.ID)
	return clone.ID, lifecycle.TransitionNone, nil
}

func (d *Dispatcher) delete(ctx context.Context, n node.Node) (lifecycle.Transition, error) {
	switch n.Kind {
	case node.KindTask:
		tr, err := d.life.ReleaseTask(ctx, n.ID)
		if err != nil {
			return tr, err
		}
		if err := d.g.RemoveNode(n.ID); err != nil {
			return tr, err
		}
		ctxlog.FromContext(ctx).Debug("Task returned to the library.", "task_ref", n.Task.TaskRef)
		return tr, nil
	case node.KindAttachment:
		return d.life.DeleteAttachment(ctx, n.ID)
	default:
		return lifecycle.TransitionNone, fmt.Errorf("%w: %s on %s", ErrUnsupportedTarget, Delete, n.Kind)
	}
}

// addAttachment creates an attachment next to the target and connects it
// as if it had been dropped there.
func (d *Dispatcher) addAttachment(ctx context.Context, n node.Node, req Request, res Result) (Result, error) {
	name := req.Name
	if name == "" {
		name = "New " + req.FileType
	}
	switch n.Kind {
	case node.KindTask:
		a := node.NewAttachment(d.newID(), d.cfg.DirectSlot(n.Position), name, req.FileType)
		if err := d.g.AddNode(a); err != nil {
			return res, err
		}
		res.CreatedID = a.ID
		conn, err := d.drag.Connect(ctx, connection.Proposal{
			SourceID:   n.ID,
			TargetID:   a.ID,
			SourcePort: node.PortAttach,
			TargetPort: node.PortAttach,
		})
		res.Connection = &conn
		res.Transition = conn.Transition
		return res, err
	case node.KindGroup:
		a := node.NewAttachment(d.newID(), node.Point{}, name, req.FileType)
		tr, err := d.life.InsertMember(ctx, n.ID, a)
		res.CreatedID = a.ID
		res.Transition = tr
		return res, err
	default:
		return res, fmt.Errorf("%w: %s on %s", ErrUnsupportedTarget, AddAttachment, n.Kind)
	}
}

func (d *Dispatcher) confirmDeleteGroup(ctx context.Context, req Request, res Result) (Result, error) {
	pending := d.pendingGroup
	if pending.IsZero() || (!req.NodeID.IsZero() && req.NodeID != pending) {
		return res, ErrNothingPending
	}
	d.pendingGroup = nodeid.None
	res.NodeID = pending
	tr, err := d.life.DeleteGroup(ctx, pending)
	res.Transition = tr
	return res, err
}
