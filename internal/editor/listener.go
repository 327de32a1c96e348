package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/flowcanvas/internal/actions"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/outbox"
)

// listener applies the outbox's results to the session.
type listener struct {
	e *Editor
}

var _ outbox.Listener = listener{}

// Resolved rekeys the live graph to the id the store assigned.
func (l listener) Resolved(oldID, newID nodeid.ID) {
	e := l.e
	e.mu.Lock()
	e.alias[oldID] = newID
	err := e.g.Rekey(oldID, newID)
	e.drag.Rekey(oldID, newID)
	e.actions.Rekey(oldID, newID)
	logger := e.logger
	snap := e.snapshotLocked()
	e.mu.Unlock()

	switch {
	case errors.Is(err, graph.ErrReferenceMissing):
		// Removed locally before the store answered.
		logger.Debug("Resolved id no longer in graph.", "old", oldID, "new", newID)
		return
	case err != nil:
		logger.Error("Rekeying graph failed.", "old", oldID, "new", newID, "error", err)
		return
	}
	logger.Debug("Resolved temporary id.", "old", oldID, "new", newID)
	l.e.notifier.Snapshot(snap)
}

// Failed reverts the whole command locally and tells the user. Later
// commands may already rest on what is reverted, so ownership and container
// layout are derived again and the store is told to drop what the revert
// could not restore.
func (l listener) Failed(cmd outbox.Command, perr *outbox.PersistenceError) {
	e := l.e
	e.mu.Lock()
	skipped := e.g.Revert(cmd.Ops, e.resolve)
	e.g.Drain()
	logger := e.logger
	discard := e.discardable(skipped)
	e.normalize(ctxlog.WithLogger(context.Background(), logger), false)
	derived := e.g.Drain()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.outbox.Repair(
		outbox.Command{Input: inputRepair, Ops: discard},
		outbox.Command{Input: inputRepair, Ops: derived},
	)
	logger.Warn("Reverted unsaved command.", "seq", cmd.Seq, "input", cmd.Input, "ops", len(cmd.Ops), "skipped", len(skipped), "discarded", len(discard), "error", perr)
	e.notifier.Toast(Toast{
		Level:   ToastError,
		Message: fmt.Sprintf("Your last change (%s) could not be saved and was undone.", humanize(cmd.Input)),
	})
	e.notifier.Snapshot(snap)
}

// discardable turns skipped restores into removals. A failed command left
// the entities it removed in the store; those the graph could not take back
// must go there too. Edges are removed before nodes.
func (e *Editor) discardable(skipped []graph.Op) []graph.Op {
	var edges, nodes []graph.Op
	for _, inv := range skipped {
		switch inv.Kind {
		case graph.OpAddEdge:
			if _, ok := e.g.Edge(inv.Edge.ID); !ok {
				edges = append(edges, graph.Op{Kind: graph.OpRemoveEdge, Edge: inv.Edge})
			}
		case graph.OpAddNode:
			if _, ok := e.g.Node(inv.Node.ID); !ok {
				nodes = append(nodes, graph.Op{Kind: graph.OpRemoveNode, Node: inv.Node})
			}
		}
	}
	return append(edges, nodes...)
}

// CatalogChanged asks the UI to reload the task list.
func (l listener) CatalogChanged(change actions.CatalogChange) {
	l.e.notifier.TasksChanged()
}

func humanize(input string) string {
	return strings.ReplaceAll(input, "_", " ")
}
