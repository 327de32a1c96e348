package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/actions"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/metrics"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("outbox: closed")

// Command is the persistence work produced by one user action.
type Command struct {
	// Seq is assigned by Enqueue.
	Seq uint64
	// Input names the user action, for logs and metrics.
	Input   string
	Ops     []graph.Op
	Catalog *actions.CatalogChange
}

// Empty reports whether the command carries no work.
func (c Command) Empty() bool {
	return len(c.Ops) == 0 && c.Catalog == nil
}

// PersistenceError reports the store call that failed a command.
type PersistenceError struct {
	Seq   uint64
	Input string
	Call  string
	ID    nodeid.ID
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.ID.IsZero() {
		return fmt.Sprintf("persist %s: %s: %v", e.Input, e.Call, e.Err)
	}
	return fmt.Sprintf("persist %s: %s %s: %v", e.Input, e.Call, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Listener receives the outcome of persisted commands. Calls are made from
// the worker goroutine, one at a time, in the order described below.
type Listener interface {
	// Resolved reports that the store assigned newID to the entity known
	// locally as oldID.
	Resolved(oldID, newID nodeid.ID)
	// Failed reports a command that could not be persisted. Resolutions
	// produced while compensating it are delivered after Failed returns.
	Failed(cmd Command, err *PersistenceError)
	// CatalogChanged reports a completion change accepted by the catalogue.
	CatalogChanged(change actions.CatalogChange)
}

// Outbox is a FIFO of commands worked by one goroutine (see Run).
type Outbox struct {
	graphID  string
	store    graphstore.Store
	catalog  taskcatalog.Catalog
	listener Listener

	mu     sync.Mutex
	idle   *sync.Cond
	queue  []Command
	busy   bool
	closed bool
	seq    uint64
	wake   chan struct{}

	// Owned by the worker.
	alias    map[nodeid.ID]nodeid.ID
	poisoned map[nodeid.ID]struct{}
}

// New creates an outbox persisting graphID. catalog may be nil, in which
// case completion changes are dropped.
func New(graphID string, store graphstore.Store, catalog taskcatalog.Catalog, listener Listener) *Outbox {
	o := &Outbox{
		graphID:  graphID,
		store:    store,
		catalog:  catalog,
		listener: listener,
		wake:     make(chan struct{}, 1),
		alias:    make(map[nodeid.ID]nodeid.ID),
		poisoned: make(map[nodeid.ID]struct{}),
	}
	o.idle = sync.NewCond(&o.mu)
	return o
}

// Enqueue appends a command and returns its sequence number. Empty
// commands are ignored and get 0.
func (o *Outbox) Enqueue(cmd Command) (uint64, error) {
	if cmd.Empty() {
		return 0, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}
	o.seq++
	cmd.Seq = o.seq
	o.queue = append(o.queue, cmd)
	metrics.OutboxDepth.Inc()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return cmd.Seq, nil
}

// Repair queues the commands a Listener produces while handling Failed:
// ahead runs before every waiting command, after behind them. Unlike
// Enqueue it accepts work after Close, since the worker calling Failed is
// still draining the queue. Empty commands are ignored.
func (o *Outbox) Repair(ahead, after Command) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !ahead.Empty() {
		o.seq++
		ahead.Seq = o.seq
		o.queue = append([]Command{ahead}, o.queue...)
		metrics.OutboxDepth.Inc()
	}
	if !after.Empty() {
		o.seq++
		after.Seq = o.seq
		o.queue = append(o.queue, after)
		metrics.OutboxDepth.Inc()
	}
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of commands not yet picked up by the worker.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Wait blocks until every enqueued command has been processed. It needs a
// running worker.
func (o *Outbox) Wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) > 0 || o.busy {
		o.idle.Wait()
	}
}

// Close stops accepting commands. Run returns once the queue is drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Run works the queue until Close is called or ctx is cancelled. Commands
// already queued are still persisted after cancellation.
func (o *Outbox) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("graphID", o.graphID)
	logger.Debug("Outbox worker started.")

	work := ctxlog.WithLogger(context.WithoutCancel(ctx), logger)
	for {
		cmd, ok, closed := o.next()
		if ok {
			o.process(work, cmd)
			o.finish()
			continue
		}
		if closed {
			logger.Debug("Outbox worker finished.")
			return nil
		}
		select {
		case <-o.wake:
		case <-ctx.Done():
			o.Close()
		}
	}
}

func (o *Outbox) next() (Command, bool, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Command{}, false, o.closed
	}
	cmd := o.queue[0]
	o.queue[0] = Command{}
	o.queue = o.queue[1:]
	o.busy = true
	return cmd, true, false
}

func (o *Outbox) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
	metrics.OutboxDepth.Dec()
	if len(o.queue) == 0 {
		o.idle.Broadcast()
	}
}

// process replays one command against the store.
func (o *Outbox) process(ctx context.Context, cmd Command) {
	defer metrics.ObserveSince(metrics.PersistenceDuration, time.Now())
	logger := ctxlog.FromContext(ctx).With("seq", cmd.Seq, "input", cmd.Input)

	var done []graph.Op
	for _, op := range cmd.Ops {
		out, err := o.persist(ctx, op)
		if out.touched {
			done = append(done, op)
		}
		if out.resolved != nil {
			o.listener.Resolved(out.resolved.from, out.resolved.to)
		}
		if err != nil {
			err.Seq, err.Input = cmd.Seq, cmd.Input
			o.fail(ctx, cmd, done, err)
			return
		}
	}

	if c := cmd.Catalog; c != nil && o.catalog != nil {
		if err := o.catalog.SetDone(ctx, c.TaskRef, c.Done, c.At); err != nil {
			o.fail(ctx, cmd, done, &PersistenceError{Seq: cmd.Seq, Input: cmd.Input, Call: "SetDone", Err: err})
			return
		}
		o.listener.CatalogChanged(*c)
	}
	logger.Debug("Command persisted.", "ops", len(cmd.Ops), "calls", len(done))
}

// fail compensates the calls that reached the store, poisons the entities
// the command created and reports the failure.
func (o *Outbox) fail(ctx context.Context, cmd Command, done []graph.Op, perr *PersistenceError) {
	logger := ctxlog.FromContext(ctx).With("seq", cmd.Seq, "input", cmd.Input)
	logger.Error("Persisting command failed.", "call", perr.Call, "id", perr.ID, "error", perr.Err)
	metrics.PersistenceFailures.WithLabelValues(perr.Call).Inc()

	var resolved []resolution
	for i := len(done) - 1; i >= 0; i-- {
		out, err := o.persist(ctx, done[i].Inverse())
		if out.resolved != nil {
			resolved = append(resolved, *out.resolved)
		}
		if err != nil {
			logger.Error("Compensating call failed.", "call", err.Call, "id", err.ID, "error", err.Err)
			metrics.PersistenceFailures.WithLabelValues(err.Call).Inc()
		}
	}

	for _, op := range cmd.Ops {
		if op.Kind == graph.OpAddNode || op.Kind == graph.OpAddEdge {
			o.poison(op.Subject())
		}
	}

	o.listener.Failed(cmd, perr)
	for _, r := range resolved {
		o.listener.Resolved(r.from, r.to)
	}
}

func (o *Outbox) poison(id nodeid.ID) {
	o.poisoned[id] = struct{}{}
	if stored := o.resolve(id); stored != id {
		o.poisoned[stored] = struct{}{}
	}
}

// resolve follows the alias chain of id.
func (o *Outbox) resolve(id nodeid.ID) nodeid.ID {
	for range len(o.alias) + 1 {
		next, ok := o.alias[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}
