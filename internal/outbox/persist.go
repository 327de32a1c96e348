package outbox

import (
	"context"

	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

type resolution struct {
	from, to nodeid.ID
}

// outcome describes what persisting one op did to the store.
type outcome struct {
	// touched is set once any store call for the op succeeded.
	touched  bool
	resolved *resolution
}

// persist translates one op into store calls. Ops referring to poisoned or
// never persisted entities are dropped without error.
func (o *Outbox) persist(ctx context.Context, op graph.Op) (outcome, *PersistenceError) {
	var out outcome
	if o.dropped(op) {
		ctxlog.FromContext(ctx).Debug("Dropping op on unpersisted entity.", "op", op.Kind, "id", op.Subject())
		if op.Kind == graph.OpAddNode || op.Kind == graph.OpAddEdge {
			o.poison(op.Subject())
		}
		return out, nil
	}
	r := op.Resolve(o.resolve)

	switch op.Kind {
	case graph.OpAddNode:
		created, err := o.store.CreateNode(ctx, o.graphID, r.Node)
		if err != nil {
			return out, &PersistenceError{Call: "CreateNode", ID: op.Node.ID, Err: err}
		}
		out.touched = true
		out.resolved = o.record(r.Node.ID, created.ID)

	case graph.OpRemoveNode:
		if err := o.store.DeleteNode(ctx, r.Node.ID); err != nil {
			return out, &PersistenceError{Call: "DeleteNode", ID: r.Node.ID, Err: err}
		}
		out.touched = true

	case graph.OpUpdateNode:
		id := r.Node.ID
		if r.Node.Position != r.Prev.Position {
			if err := o.store.UpdateNodePosition(ctx, id, r.Node.Position); err != nil {
				return out, &PersistenceError{Call: "UpdateNodePosition", ID: id, Err: err}
			}
			out.touched = true
		}
		if r.Node.ParentID != r.Prev.ParentID {
			if err := o.store.UpdateNodeParent(ctx, id, r.Node.ParentID); err != nil {
				return out, &PersistenceError{Call: "UpdateNodeParent", ID: id, Err: err}
			}
			out.touched = true
		}
		if r.Node.IsTask() && r.Node.Task.IsFinished != r.Prev.Task.IsFinished {
			if err := o.store.UpdateNodeFinished(ctx, id, r.Node.Task.IsFinished); err != nil {
				return out, &PersistenceError{Call: "UpdateNodeFinished", ID: id, Err: err}
			}
			out.touched = true
		}

	case graph.OpAddEdge:
		created, err := o.store.CreateEdge(ctx, o.graphID, r.Edge)
		if err != nil {
			return out, &PersistenceError{Call: "CreateEdge", ID: op.Edge.ID, Err: err}
		}
		out.touched = true
		out.resolved = o.record(r.Edge.ID, created.ID)

	case graph.OpRemoveEdge:
		if err := o.store.DeleteEdge(ctx, o.graphID, r.Edge.SourceID, r.Edge.TargetID); err != nil {
			return out, &PersistenceError{Call: "DeleteEdge", ID: r.Edge.ID, Err: err}
		}
		out.touched = true

	case graph.OpUpdateEdge:
		// Animation is derived from the endpoints and not stored.
	}
	return out, nil
}

// record aliases a locally known id to the one the store returned.
func (o *Outbox) record(local, stored nodeid.ID) *resolution {
	if stored.IsZero() || stored == local {
		return nil
	}
	o.alias[local] = stored
	return &resolution{from: local, to: stored}
}

// dropped reports whether op touches an entity the store never got.
func (o *Outbox) dropped(op graph.Op) bool {
	refs := []nodeid.ID{op.Subject()}
	if op.IsNodeOp() {
		refs = append(refs, op.Node.ParentID)
	} else {
		refs = append(refs, op.Edge.SourceID, op.Edge.TargetID)
	}
	creates := op.Kind == graph.OpAddNode || op.Kind == graph.OpAddEdge

	for i, id := range refs {
		if id.IsZero() {
			continue
		}
		if _, bad := o.poisoned[id]; bad {
			return true
		}
		stored := o.resolve(id)
		if _, bad := o.poisoned[stored]; bad {
			return true
		}
		// Only a create may name a temporary id the store hasn't resolved.
		if stored.IsTemp() && !(creates && i == 0) {
			return true
		}
	}
	return false
}
