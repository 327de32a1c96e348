package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

// Open loads the graph from the store. The store only keeps positions,
// containment and the finished flag reliably, so ownership, labels,
// container sizes, animation and task metadata are derived again here.
// Records that no longer fit the graph are skipped with a warning.
func (e *Editor) Open(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("graphID", e.graphID)
	ctx = ctxlog.WithLogger(ctx, logger)

	nodes, err := e.store.ListNodes(ctx, e.graphID)
	if err != nil {
		return fmt.Errorf("listing nodes of graph '%s': %w", e.graphID, err)
	}
	edges, err := e.store.ListEdges(ctx, e.graphID)
	if err != nil {
		return fmt.Errorf("listing edges of graph '%s': %w", e.graphID, err)
	}

	e.mu.Lock()
	if n, m := e.g.Len(); n+m > 0 {
		e.mu.Unlock()
		return ErrAlreadyOpen
	}

	// Containers first, so members find their parent whatever the store
	// order.
	for _, pass := range []bool{false, true} {
		for _, n := range nodes {
			if n.HasParent() != pass {
				continue
			}
			if err := e.g.AddNode(n); err != nil {
				logger.Warn("Skipping stored node.", "node", n.ID, "error", err)
			}
		}
	}
	for _, ed := range edges {
		if err := e.g.AddEdge(ed); err != nil {
			logger.Warn("Skipping stored edge.", "edge", ed.ID, "error", err)
		}
	}

	e.refreshTasks(ctx)
	e.normalize(ctx, true)
	e.g.Drain()

	nodeCount, edgeCount := e.g.Len()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	logger.Info("Graph opened.", "nodes", nodeCount, "edges", edgeCount)
	e.notifier.Snapshot(snap)
	return nil
}

// refreshTasks copies display metadata from the catalogue onto task nodes.
func (e *Editor) refreshTasks(ctx context.Context) {
	if e.catalog == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	for _, n := range e.g.NodesOfKind(node.KindTask) {
		if n.Task.TaskRef == "" {
			continue
		}
		rec, err := e.catalog.Get(ctx, n.Task.TaskRef)
		if errors.Is(err, taskcatalog.ErrNotFound) {
			logger.Warn("Task not in catalogue.", "node", n.ID, "ref", n.Task.TaskRef)
			continue
		}
		if err != nil {
			logger.Warn("Refreshing task metadata failed.", "node", n.ID, "ref", n.Task.TaskRef, "error", err)
			continue
		}
		if err := e.g.UpdateTask(n.ID, func(p *node.TaskPayload) {
			p.Label = rec.Title
			p.GroupBadge = rec.Group
			p.PriorityBadge = rec.Priority
			p.Done = rec.Done
			p.CompletedAt = rec.CompletedAt
		}); err != nil {
			logger.Warn("Applying task metadata failed.", "node", n.ID, "error", err)
		}
	}
}

// normalize derives ownership, labels and animation from the edges. With
// all set every group is laid out again; otherwise only groups whose member
// count is out of date are.
func (e *Editor) normalize(ctx context.Context, all bool) {
	logger := ctxlog.FromContext(ctx)
	warn := func(msg string, id nodeid.ID, err error) {
		if err != nil {
			logger.Warn(msg, "id", id, "error", err)
		}
	}

	for _, a := range e.g.NodesOfKind(node.KindAttachment) {
		if !a.HasParent() && !a.Attachment.TaskRef.IsZero() {
			warn("Clearing attachment owner failed.", a.ID, e.g.UpdateAttachment(a.ID, func(p *node.AttachmentPayload) { p.TaskRef = nodeid.None }))
		}
	}
	for _, ed := range e.g.Edges() {
		switch ed.Kind {
		case node.EdgeFlow:
			src, srcOK := e.g.Node(ed.SourceID)
			dst, dstOK := e.g.Node(ed.TargetID)
			if !srcOK || !dstOK {
				logger.Warn("Flow edge lost an endpoint.", "edge", ed.ID)
				continue
			}
			warn("Updating edge animation failed.", ed.ID, e.g.SetEdgeAnimated(ed.ID, connection.FlowAnimated(src.Task, dst.Task)))
		case node.EdgeAttachment:
			warn("Setting attachment owner failed.", ed.TargetID, e.g.UpdateAttachment(ed.TargetID, func(p *node.AttachmentPayload) { p.TaskRef = ed.SourceID }))
		}
	}

	for _, grp := range e.g.NodesOfKind(node.KindGroup) {
		owner := nodeid.None
		label := lifecycle.PlaceholderLabel
		for _, ed := range e.g.EdgesTouching(grp.ID) {
			if ed.Kind != node.EdgeGroup || ed.TargetID != grp.ID {
				continue
			}
			if task, ok := e.g.Node(ed.SourceID); ok {
				owner, label = task.ID, lifecycle.GroupLabel(task)
			}
		}
		warn("Updating group owner failed.", grp.ID, e.g.UpdateGroup(grp.ID, func(p *node.GroupPayload) {
			p.TaskID = owner
			p.Label = label
		}))
		members := e.g.MembersOf(grp.ID)
		for _, m := range members {
			warn("Setting member owner failed.", m.ID, e.g.UpdateAttachment(m.ID, func(p *node.AttachmentPayload) { p.TaskRef = owner }))
		}
		if !all && grp.Group.MemberCount == len(members) {
			continue
		}
		if err := e.life.Reflow(ctx, grp.ID); err != nil {
			logger.Warn("Reflowing group failed.", "group", grp.ID, "error", err)
		}
	}
}
