// Package editor is the session facade of one graph: it serializes user
// input, commits each input's mutations to the outbox as one command and
// publishes snapshots of the result.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/actions"
	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/metrics"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/outbox"
	"github.com/specialistvlad/flowcanvas/internal/proximity"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

// ErrAlreadyOpen is returned by Open on an editor that holds a graph.
var ErrAlreadyOpen = errors.New("editor: graph already open")

const (
	inputDragMove = "drag_move"
	// inputRepair names commands the editor issues itself after a failure.
	inputRepair = "repair"
)

// Config holds the session settings.
type Config struct {
	GraphID string
	Layout  layout.Config
	// Radius is the snapping radius of drops; zero means the default.
	Radius float64
	// NewID generates temporary ids; nil means nodeid.NewTemp.
	NewID nodeid.Generator
	// Clock stamps completion times; nil means time.Now.
	Clock func() time.Time
}

// Editor owns one graph session. All methods are safe for concurrent use:
// input is serialized on one mutex, the way a UI thread would run it.
type Editor struct {
	graphID  string
	store    graphstore.Store
	catalog  taskcatalog.Catalog
	notifier Notifier
	outbox   *outbox.Outbox

	mu      sync.Mutex
	g       *graph.Model
	life    *lifecycle.Manager
	drag    *dragdrop.Controller
	actions *actions.Dispatcher
	logger  *slog.Logger
	version uint64
	// pending holds drag moves not yet committed.
	pending []graph.Op
	// alias maps ids replaced by the store to their permanent ones.
	alias map[nodeid.ID]nodeid.ID
}

// New creates an editor persisting to store. catalog and notifier may be
// nil.
func New(cfg Config, store graphstore.Store, catalog taskcatalog.Catalog, notifier Notifier) *Editor {
	if cfg.Radius <= 0 {
		cfg.Radius = proximity.DefaultRadius
	}
	if cfg.NewID == nil {
		cfg.NewID = nodeid.NewTemp
	}
	if notifier == nil {
		notifier = Discard
	}

	g := graph.New(cfg.GraphID)
	life := lifecycle.New(g, cfg.Layout, cfg.NewID)
	drag := dragdrop.New(g, life, proximity.New(cfg.Radius, cfg.Layout), cfg.Layout, cfg.NewID)
	var opts []actions.Option
	if cfg.Clock != nil {
		opts = append(opts, actions.WithClock(cfg.Clock))
	}

	e := &Editor{
		graphID:  cfg.GraphID,
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		g:        g,
		life:     life,
		drag:     drag,
		actions:  actions.New(g, life, drag, cfg.Layout, cfg.NewID, opts...),
		logger:   slog.Default(),
		alias:    make(map[nodeid.ID]nodeid.ID),
	}
	e.outbox = outbox.New(cfg.GraphID, store, catalog, listener{e})
	return e
}

// GraphID returns the id of the edited graph.
func (e *Editor) GraphID() string { return e.graphID }

// Run works the persistence queue until ctx is cancelled or Close is
// called.
func (e *Editor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("graphID", e.graphID)
	e.mu.Lock()
	e.logger = logger
	e.mu.Unlock()
	return e.outbox.Run(ctxlog.WithLogger(ctx, logger))
}

// Wait blocks until every committed input has been persisted.
func (e *Editor) Wait() { e.outbox.Wait() }

// Close stops accepting input for persistence. Run returns once the queue
// is drained.
func (e *Editor) Close() { e.outbox.Close() }

// DropTask creates a task from a catalogue record dropped at p.
func (e *Editor) DropTask(ctx context.Context, task node.TaskPayload, p node.Point) (dragdrop.Result, error) {
	var res dragdrop.Result
	err := e.do(ctx, "drop_task", func(ctx context.Context) (*actions.CatalogChange, error) {
		var err error
		res, err = e.drag.DropTask(ctx, task, p)
		observe(res)
		return nil, err
	})
	return res, err
}

// DropAttachment creates an attachment dropped at p.
func (e *Editor) DropAttachment(ctx context.Context, spec dragdrop.AttachmentSpec, p node.Point) (dragdrop.Result, error) {
	var res dragdrop.Result
	err := e.do(ctx, "drop_attachment", func(ctx context.Context) (*actions.CatalogChange, error) {
		var err error
		res, err = e.drag.DropAttachment(ctx, spec, p)
		observe(res)
		return nil, err
	})
	return res, err
}

// BeginDrag starts dragging a node.
func (e *Editor) BeginDrag(ctx context.Context, id nodeid.ID) error {
	return e.do(ctx, "drag_start", func(ctx context.Context) (*actions.CatalogChange, error) {
		return nil, e.drag.Begin(e.resolve(id))
	})
}

// Drag moves a dragged node and returns the drop-target highlight. Moves
// are persisted with the end of the drag.
func (e *Editor) Drag(ctx context.Context, id nodeid.ID, p node.Point) (dragdrop.Hover, error) {
	var hover dragdrop.Hover
	err := e.do(ctx, inputDragMove, func(ctx context.Context) (*actions.CatalogChange, error) {
		var err error
		hover, err = e.drag.Move(ctx, e.resolve(id), p)
		return nil, err
	})
	return hover, err
}

// EndDrag drops a dragged node at p, snapping it to a nearby task.
func (e *Editor) EndDrag(ctx context.Context, id nodeid.ID, p node.Point) (dragdrop.Result, error) {
	var res dragdrop.Result
	err := e.do(ctx, "drag_end", func(ctx context.Context) (*actions.CatalogChange, error) {
		var err error
		res, err = e.drag.End(ctx, e.resolve(id), p)
		observe(res)
		return nil, err
	})
	return res, err
}

// Connect proposes an edge drawn between two ports.
func (e *Editor) Connect(ctx context.Context, p connection.Proposal) (dragdrop.Result, error) {
	var res dragdrop.Result
	err := e.do(ctx, "connect", func(ctx context.Context) (*actions.CatalogChange, error) {
		p.SourceID, p.TargetID = e.resolve(p.SourceID), e.resolve(p.TargetID)
		var err error
		res, err = e.drag.Connect(ctx, p)
		observe(res)
		return nil, err
	})
	return res, err
}

// Dispatch runs a context-menu action.
func (e *Editor) Dispatch(ctx context.Context, req actions.Request) (actions.Result, error) {
	var res actions.Result
	err := e.do(ctx, string(req.Action), func(ctx context.Context) (*actions.CatalogChange, error) {
		req.NodeID = e.resolve(req.NodeID)
		var err error
		res, err = e.actions.Dispatch(ctx, req)
		if res.Connection != nil {
			observe(*res.Connection)
		} else if res.Transition != lifecycle.TransitionNone {
			metrics.GroupTransitions.WithLabelValues(string(res.Transition)).Inc()
		}
		return res.Catalog, err
	})
	return res, err
}

// do runs one input under the session lock. The mutations fn records are
// committed as one outbox command; when fn fails they are rolled back.
// Inputs naming vanished entities are logged and ignored.
func (e *Editor) do(ctx context.Context, input string, fn func(ctx context.Context) (*actions.CatalogChange, error)) error {
	e.mu.Lock()
	ctx = ctxlog.With(ctx, "graphID", e.graphID, "input", input)
	logger := ctxlog.FromContext(ctx)

	change, err := fn(ctx)
	result := "ok"
	if err != nil {
		e.rollback(ctx)
		result = "error"
		if errors.Is(err, graph.ErrReferenceMissing) {
			logger.Warn("Ignoring input on missing reference.", "error", err)
			result, err = "ignored", nil
		}
	} else {
		e.commit(ctx, input, change)
	}
	metrics.Commands.WithLabelValues(input, result).Inc()

	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notifier.Snapshot(snap)
	return err
}

// commit hands the recorded mutations to the outbox. Drag moves wait for
// the next committed input.
func (e *Editor) commit(ctx context.Context, input string, change *actions.CatalogChange) {
	if input == inputDragMove {
		e.pending = append(e.pending, e.g.Drain()...)
		return
	}
	ops := coalesce(append(e.pending, e.g.Drain()...))
	e.pending = nil
	if _, err := e.outbox.Enqueue(outbox.Command{Input: input, Ops: ops, Catalog: change}); err != nil {
		ctxlog.FromContext(ctx).Warn("Dropping command, persistence is closed.", "ops", len(ops), "error", err)
	}
}

// rollback undoes the mutations of a failed input.
func (e *Editor) rollback(ctx context.Context) {
	ops := e.g.Drain()
	if len(ops) == 0 {
		return
	}
	if skipped := e.g.Revert(ops, nil); len(skipped) > 0 {
		ctxlog.FromContext(ctx).Warn("Rollback skipped ops.", "skipped", len(skipped))
	}
	e.g.Drain()
}

// resolve maps an id the UI may still hold to its current form.
func (e *Editor) resolve(id nodeid.ID) nodeid.ID {
	for range len(e.alias) + 1 {
		next, ok := e.alias[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

func observe(res dragdrop.Result) {
	if res.Attempted && !res.Decision.Accepted {
		metrics.ConnectionRejections.WithLabelValues(string(res.Decision.Reason)).Inc()
	}
	if res.Transition != lifecycle.TransitionNone {
		metrics.GroupTransitions.WithLabelValues(string(res.Transition)).Inc()
	}
}

// coalesce merges runs of position-only updates of the same node, which a
// drag produces on every pointer move.
func coalesce(ops []graph.Op) []graph.Op {
	out := make([]graph.Op, 0, len(ops))
	for _, op := range ops {
		if n := len(out); n > 0 && moveOnly(op) && moveOnly(out[n-1]) && out[n-1].Node.ID == op.Node.ID {
			out[n-1].Node = op.Node
			continue
		}
		out = append(out, op)
	}
	return out
}

func moveOnly(op graph.Op) bool {
	if op.Kind != graph.OpUpdateNode || op.Node.ParentID != op.Prev.ParentID {
		return false
	}
	prev := op.Prev
	prev.Position = op.Node.Position
	return prev == op.Node
}
