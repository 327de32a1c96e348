package graph

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Model is the in-memory graph of one canvas.
type Model struct {
	graphID string

	nodes map[nodeid.ID]*node.Node
	edges map[nodeid.ID]*node.Edge

	nodeOrder []nodeid.ID
	edgeOrder []nodeid.ID
	// members maps a group id to its member ids in slot order.
	members map[nodeid.ID][]nodeid.ID

	journal []Op
}

// New creates an empty model for the given graph.
func New(graphID string) *Model {
	return &Model{
		graphID: graphID,
		nodes:   make(map[nodeid.ID]*node.Node),
		edges:   make(map[nodeid.ID]*node.Edge),
		members: make(map[nodeid.ID][]nodeid.ID),
	}
}

// GraphID returns the identifier of the graph this model represents.
func (m *Model) GraphID() string {
	return m.graphID
}

// Len returns the number of nodes and edges.
func (m *Model) Len() (nodes, edges int) {
	return len(m.nodes), len(m.edges)
}

// --- Queries ---

func (m *Model) Node(id nodeid.ID) (node.Node, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return node.Node{}, false
	}
	return *n, true
}

func (m *Model) Edge(id nodeid.ID) (node.Edge, bool) {
	e, ok := m.edges[id]
	if !ok {
		return node.Edge{}, false
	}
	return *e, true
}

func (m *Model) Nodes() []node.Node {
	out := make([]node.Node, 0, len(m.nodeOrder))
	for _, id := range m.nodeOrder {
		out = append(out, *m.nodes[id])
	}
	return out
}

func (m *Model) NodesOfKind(kind node.Kind) []node.Node {
	var out []node.Node
	for _, id := range m.nodeOrder {
		if n := m.nodes[id]; n.Kind == kind {
			out = append(out, *n)
		}
	}
	return out
}

func (m *Model) Edges() []node.Edge {
	out := make([]node.Edge, 0, len(m.edgeOrder))
	for _, id := range m.edgeOrder {
		out = append(out, *m.edges[id])
	}
	return out
}

func (m *Model) EdgesTouching(id nodeid.ID) []node.Edge {
	var out []node.Edge
	for _, eid := range m.edgeOrder {
		if e := m.edges[eid]; e.Touches(id) {
			out = append(out, *e)
		}
	}
	return out
}

func (m *Model) OutgoingEdges(id nodeid.ID, kind node.EdgeKind) []node.Edge {
	var out []node.Edge
	for _, eid := range m.edgeOrder {
		if e := m.edges[eid]; e.SourceID == id && e.Kind == kind {
			out = append(out, *e)
		}
	}
	return out
}

func (m *Model) EdgeBetween(a, b nodeid.ID, kind node.EdgeKind) (node.Edge, bool) {
	for _, eid := range m.edgeOrder {
		e := m.edges[eid]
		if e.Kind != kind {
			continue
		}
		if (e.SourceID == a && e.TargetID == b) || (e.SourceID == b && e.TargetID == a) {
			return *e, true
		}
	}
	return node.Edge{}, false
}

func (m *Model) MembersOf(groupID nodeid.ID) []node.Node {
	ids := m.members[groupID]
	out := make([]node.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.nodes[id])
	}
	return out
}

func (m *Model) GroupOwnedBy(taskID nodeid.ID) (node.Node, bool) {
	if taskID.IsZero() {
		return node.Node{}, false
	}
	for _, id := range m.nodeOrder {
		if n := m.nodes[id]; n.Kind == node.KindGroup && n.Group.TaskID == taskID {
			return *n, true
		}
	}
	return node.Node{}, false
}

// Absolute returns the canvas position of a node, resolving a parent-relative
// position through its group.
func (m *Model) Absolute(id nodeid.ID) (node.Point, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return node.Point{}, false
	}
	if !n.HasParent() {
		return n.Position, true
	}
	parent, ok := m.nodes[n.ParentID]
	if !ok {
		return n.Position, true
	}
	return parent.Position.Add(n.Position), true
}

// --- Mutations ---

// AddNode inserts a new node.
func (m *Model) AddNode(n node.Node) error {
	if n.ID.IsZero() {
		return fmt.Errorf("%w: node without id", ErrReferenceMissing)
	}
	if _, exists := m.nodes[n.ID]; exists {
		return fmt.Errorf("%w: node %s", ErrDuplicateID, n.ID)
	}
	if err := m.checkParent(n, n.ParentID); err != nil {
		return err
	}
	return m.apply(Op{Kind: OpAddNode, Node: n, Order: -1, ToIndex: -1})
}

// RemoveNode deletes a node together with every edge touching it. Groups
// must be emptied first.
func (m *Model) RemoveNode(id nodeid.ID) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node %s", ErrReferenceMissing, id)
	}
	if n.Kind == node.KindGroup && len(m.members[id]) > 0 {
		return fmt.Errorf("%w: %s has %d members", ErrGroupNotEmpty, id, len(m.members[id]))
	}
	for _, e := range m.EdgesTouching(id) {
		if err := m.RemoveEdge(e.ID); err != nil {
			return err
		}
	}
	return m.apply(Op{Kind: OpRemoveNode, Node: *n})
}

// MoveNode sets a node's position, keeping its parent.
func (m *Model) MoveNode(id nodeid.ID, pos node.Point) error {
	return m.update(id, func(n *node.Node) { n.Position = pos })
}

// Reparent moves an attachment into a group (appended as last member) or,
// with an empty parentID, out of its group. pos is interpreted relative to
// the new parent.
func (m *Model) Reparent(id, parentID nodeid.ID, pos node.Point) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node %s", ErrReferenceMissing, id)
	}
	if err := m.checkParent(*n, parentID); err != nil {
		return err
	}
	return m.update(id, func(n *node.Node) {
		n.ParentID = parentID
		n.Position = pos
	})
}

// UpdateTask edits the payload of a task node.
func (m *Model) UpdateTask(id nodeid.ID, fn func(*node.TaskPayload)) error {
	return m.updateKind(id, node.KindTask, func(n *node.Node) { fn(&n.Task) })
}

// UpdateAttachment edits the payload of an attachment node.
func (m *Model) UpdateAttachment(id nodeid.ID, fn func(*node.AttachmentPayload)) error {
	return m.updateKind(id, node.KindAttachment, func(n *node.Node) { fn(&n.Attachment) })
}

// UpdateGroup edits the payload of a group node.
func (m *Model) UpdateGroup(id nodeid.ID, fn func(*node.GroupPayload)) error {
	return m.updateKind(id, node.KindGroup, func(n *node.Node) { fn(&n.Group) })
}

// AddEdge inserts a new edge. Flow edges must join two tasks and must not
// leave a finished task.
func (m *Model) AddEdge(e node.Edge) error {
	if e.ID.IsZero() {
		return fmt.Errorf("%w: edge without id", ErrReferenceMissing)
	}
	if _, exists := m.edges[e.ID]; exists {
		return fmt.Errorf("%w: edge %s", ErrDuplicateID, e.ID)
	}
	src, ok := m.nodes[e.SourceID]
	if !ok {
		return fmt.Errorf("%w: edge source %s", ErrReferenceMissing, e.SourceID)
	}
	dst, ok := m.nodes[e.TargetID]
	if !ok {
		return fmt.Errorf("%w: edge target %s", ErrReferenceMissing, e.TargetID)
	}
	if err := checkEdge(e, src, dst); err != nil {
		return err
	}
	return m.apply(Op{Kind: OpAddEdge, Edge: e, Order: -1})
}

// RemoveEdge deletes an edge.
func (m *Model) RemoveEdge(id nodeid.ID) error {
	e, ok := m.edges[id]
	if !ok {
		return fmt.Errorf("%w: edge %s", ErrReferenceMissing, id)
	}
	return m.apply(Op{Kind: OpRemoveEdge, Edge: *e})
}

// SetEdgeAnimated updates an edge's animation flag.
func (m *Model) SetEdgeAnimated(id nodeid.ID, animated bool) error {
	e, ok := m.edges[id]
	if !ok {
		return fmt.Errorf("%w: edge %s", ErrReferenceMissing, id)
	}
	if e.Animated == animated {
		return nil
	}
	next := *e
	next.Animated = animated
	return m.apply(Op{Kind: OpUpdateEdge, Edge: next, PrevEdge: *e})
}

// Rekey replaces the identifier of a node or edge, rewriting every
// reference to it. It is not recorded in the journal: it reflects a store
// assignment, not a user mutation.
func (m *Model) Rekey(oldID, newID nodeid.ID) error {
	if oldID == newID {
		return nil
	}
	if _, taken := m.nodes[newID]; taken {
		return fmt.Errorf("%w: node %s", ErrDuplicateID, newID)
	}
	if _, taken := m.edges[newID]; taken {
		return fmt.Errorf("%w: edge %s", ErrDuplicateID, newID)
	}

	if e, ok := m.edges[oldID]; ok {
		delete(m.edges, oldID)
		e.ID = newID
		m.edges[newID] = e
		replaceID(m.edgeOrder, oldID, newID)
		return nil
	}

	n, ok := m.nodes[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrReferenceMissing, oldID)
	}
	delete(m.nodes, oldID)
	n.ID = newID
	m.nodes[newID] = n
	replaceID(m.nodeOrder, oldID, newID)

	if ids, ok := m.members[oldID]; ok {
		delete(m.members, oldID)
		m.members[newID] = ids
	}
	for gid, ids := range m.members {
		m.members[gid] = replaceID(ids, oldID, newID)
	}
	for _, other := range m.nodes {
		if other.ParentID == oldID {
			other.ParentID = newID
		}
		if other.Group.TaskID == oldID {
			other.Group.TaskID = newID
		}
		if other.Attachment.TaskRef == oldID {
			other.Attachment.TaskRef = newID
		}
	}
	for _, e := range m.edges {
		if e.SourceID == oldID {
			e.SourceID = newID
		}
		if e.TargetID == oldID {
			e.TargetID = newID
		}
	}
	return nil
}

// Drain returns the ops recorded since the previous call and clears the journal.
func (m *Model) Drain() []Op {
	ops := m.journal
	m.journal = nil
	return ops
}

// Revert undoes ops by applying their inverses in reverse order. resolve,
// if non-nil, maps ids that were replaced since the ops were recorded.
//
// The ops may be older than later mutations, so an inverse is skipped when
// its references vanished, when the entity it updates changed since, or
// when the edge it restores breaks the edge rules. Undoing the creation of
// a node that later mutations used releases it first: touching edges are
// removed, members move out of it and pointers to it are cleared.
// The skipped inverses are returned. The applied ones, releases included,
// are recorded in the journal like any mutation.
func (m *Model) Revert(ops []Op, resolve func(nodeid.ID) nodeid.ID) (skipped []Op) {
	for i := len(ops) - 1; i >= 0; i-- {
		inv := ops[i].Resolve(resolve).Inverse()
		if err := m.revert(inv); err != nil {
			skipped = append(skipped, inv)
		}
	}
	return skipped
}

func (m *Model) revert(inv Op) error {
	switch inv.Kind {
	case OpRemoveNode:
		if err := m.release(inv.Node.ID); err != nil {
			return err
		}

	case OpUpdateNode:
		cur, ok := m.nodes[inv.Node.ID]
		if !ok {
			return fmt.Errorf("%w: node %s", ErrReferenceMissing, inv.Node.ID)
		}
		if *cur != inv.Prev {
			return fmt.Errorf("%w: node %s", ErrStale, inv.Node.ID)
		}

	case OpAddEdge:
		e := inv.Edge
		src, ok := m.nodes[e.SourceID]
		if !ok {
			return fmt.Errorf("%w: edge source %s", ErrReferenceMissing, e.SourceID)
		}
		dst, ok := m.nodes[e.TargetID]
		if !ok {
			return fmt.Errorf("%w: edge target %s", ErrReferenceMissing, e.TargetID)
		}
		if err := checkEdge(e, src, dst); err != nil {
			return err
		}
		if err := m.checkRestoredEdge(e); err != nil {
			return err
		}

	case OpUpdateEdge:
		cur, ok := m.edges[inv.Edge.ID]
		if !ok {
			return fmt.Errorf("%w: edge %s", ErrReferenceMissing, inv.Edge.ID)
		}
		if *cur != inv.PrevEdge {
			return fmt.Errorf("%w: edge %s", ErrStale, inv.Edge.ID)
		}
	}
	return m.apply(inv)
}

// release drops every reference to id ahead of its removal.
func (m *Model) release(id nodeid.ID) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node %s", ErrReferenceMissing, id)
	}
	origin := n.Position

	for _, e := range m.EdgesTouching(id) {
		if err := m.apply(Op{Kind: OpRemoveEdge, Edge: e}); err != nil {
			return err
		}
	}
	for _, member := range m.MembersOf(id) {
		next := member
		next.ParentID = nodeid.None
		next.Position = origin.Add(member.Position)
		next.Attachment.TaskRef = nodeid.None
		if err := m.apply(Op{Kind: OpUpdateNode, Node: next, Prev: member, FromIndex: -1, ToIndex: -1}); err != nil {
			return err
		}
	}
	for _, other := range m.Nodes() {
		next := other
		if next.Group.TaskID == id {
			next.Group.TaskID = nodeid.None
		}
		if next.Attachment.TaskRef == id {
			next.Attachment.TaskRef = nodeid.None
		}
		if next == other {
			continue
		}
		if err := m.apply(Op{Kind: OpUpdateNode, Node: next, Prev: other, FromIndex: -1, ToIndex: -1}); err != nil {
			return err
		}
	}
	return nil
}

// checkRestoredEdge rejects an edge that later mutations made redundant:
// the pair is joined again, or the attachable it targets was attached
// elsewhere.
func (m *Model) checkRestoredEdge(e node.Edge) error {
	if e.Kind == node.EdgeFlow {
		for _, other := range m.OutgoingEdges(e.SourceID, node.EdgeFlow) {
			if other.TargetID == e.TargetID {
				return fmt.Errorf("%w: flow edge %s -> %s already exists", ErrInvalidEdge, e.SourceID, e.TargetID)
			}
		}
		return nil
	}
	for _, other := range m.EdgesTouching(e.TargetID) {
		if other.Kind == e.Kind && other.TargetID == e.TargetID {
			return fmt.Errorf("%w: %s is already attached to %s", ErrInvalidEdge, e.TargetID, other.SourceID)
		}
	}
	if e.Kind == node.EdgeGroup && len(m.OutgoingEdges(e.SourceID, node.EdgeGroup)) > 0 {
		return fmt.Errorf("%w: %s already owns a group", ErrInvalidEdge, e.SourceID)
	}
	return nil
}

// --- internals ---

// checkEdge enforces the edge rules that hold after every mutation.
func checkEdge(e node.Edge, src, dst *node.Node) error {
	if e.SourceID == e.TargetID {
		return fmt.Errorf("%w: self-referential edge on %s", ErrInvalidEdge, e.SourceID)
	}
	if e.Kind == node.EdgeFlow {
		if src.Kind != node.KindTask || dst.Kind != node.KindTask {
			return fmt.Errorf("%w: flow edge between %s and %s", ErrInvalidEdge, src.Kind, dst.Kind)
		}
		if src.Task.IsFinished {
			return fmt.Errorf("%w: flow edge from finished task %s", ErrInvalidEdge, src.ID)
		}
	}
	return nil
}

func (m *Model) checkParent(n node.Node, parentID nodeid.ID) error {
	if parentID.IsZero() {
		return nil
	}
	if n.Kind != node.KindAttachment {
		return fmt.Errorf("%w: %s node %s cannot be contained", ErrInvalidParent, n.Kind, n.ID)
	}
	parent, ok := m.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrReferenceMissing, parentID)
	}
	if parent.Kind != node.KindGroup {
		return fmt.Errorf("%w: %s is a %s, not a group", ErrInvalidParent, parentID, parent.Kind)
	}
	return nil
}

func (m *Model) updateKind(id nodeid.ID, kind node.Kind, fn func(*node.Node)) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node %s", ErrReferenceMissing, id)
	}
	if n.Kind != kind {
		return fmt.Errorf("%w: node %s is a %s, not a %s", ErrReferenceMissing, id, n.Kind, kind)
	}
	return m.update(id, fn)
}

func (m *Model) update(id nodeid.ID, fn func(*node.Node)) error {
	cur, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node %s", ErrReferenceMissing, id)
	}
	next := *cur
	fn(&next)
	next.ID = cur.ID
	next.Kind = cur.Kind
	if next == *cur {
		return nil
	}
	return m.apply(Op{Kind: OpUpdateNode, Node: next, Prev: *cur, FromIndex: -1, ToIndex: -1})
}

// apply executes an op against the maps and records it. It checks only
// referential integrity, which is what Revert needs.
func (m *Model) apply(op Op) error {
	switch op.Kind {
	case OpAddNode:
		n := op.Node
		if _, exists := m.nodes[n.ID]; exists {
			return fmt.Errorf("%w: node %s", ErrDuplicateID, n.ID)
		}
		if n.HasParent() {
			if _, ok := m.nodes[n.ParentID]; !ok {
				return fmt.Errorf("%w: parent %s", ErrReferenceMissing, n.ParentID)
			}
		}
		m.nodes[n.ID] = &n
		op.Order = insertAt(&m.nodeOrder, n.ID, op.Order)
		if n.HasParent() {
			op.ToIndex = m.addMember(n.ParentID, n.ID, op.ToIndex)
		}

	case OpRemoveNode:
		n, ok := m.nodes[op.Node.ID]
		if !ok {
			return fmt.Errorf("%w: node %s", ErrReferenceMissing, op.Node.ID)
		}
		op.Node = *n
		if n.HasParent() {
			op.ToIndex = m.removeMember(n.ParentID, n.ID)
		}
		op.Order = removeID(&m.nodeOrder, n.ID)
		delete(m.nodes, n.ID)
		delete(m.members, n.ID)

	case OpUpdateNode:
		cur, ok := m.nodes[op.Node.ID]
		if !ok {
			return fmt.Errorf("%w: node %s", ErrReferenceMissing, op.Node.ID)
		}
		next := op.Node
		if next.HasParent() {
			if _, ok := m.nodes[next.ParentID]; !ok {
				return fmt.Errorf("%w: parent %s", ErrReferenceMissing, next.ParentID)
			}
		}
		op.Prev = *cur
		if cur.ParentID != next.ParentID {
			op.FromIndex = -1
			if cur.HasParent() {
				op.FromIndex = m.removeMember(cur.ParentID, cur.ID)
			}
			if next.HasParent() {
				op.ToIndex = m.addMember(next.ParentID, next.ID, op.ToIndex)
			} else {
				op.ToIndex = -1
			}
		}
		*cur = next

	case OpAddEdge:
		e := op.Edge
		if _, exists := m.edges[e.ID]; exists {
			return fmt.Errorf("%w: edge %s", ErrDuplicateID, e.ID)
		}
		if _, ok := m.nodes[e.SourceID]; !ok {
			return fmt.Errorf("%w: edge source %s", ErrReferenceMissing, e.SourceID)
		}
		if _, ok := m.nodes[e.TargetID]; !ok {
			return fmt.Errorf("%w: edge target %s", ErrReferenceMissing, e.TargetID)
		}
		m.edges[e.ID] = &e
		op.Order = insertAt(&m.edgeOrder, e.ID, op.Order)

	case OpRemoveEdge:
		e, ok := m.edges[op.Edge.ID]
		if !ok {
			return fmt.Errorf("%w: edge %s", ErrReferenceMissing, op.Edge.ID)
		}
		op.Edge = *e
		op.Order = removeID(&m.edgeOrder, e.ID)
		delete(m.edges, e.ID)

	case OpUpdateEdge:
		cur, ok := m.edges[op.Edge.ID]
		if !ok {
			return fmt.Errorf("%w: edge %s", ErrReferenceMissing, op.Edge.ID)
		}
		op.PrevEdge = *cur
		*cur = op.Edge

	default:
		return fmt.Errorf("graph: unknown op kind %d", op.Kind)
	}

	m.journal = append(m.journal, op)
	return nil
}

func (m *Model) addMember(groupID, id nodeid.ID, index int) int {
	ids := m.members[groupID]
	idx := insertAt(&ids, id, index)
	m.members[groupID] = ids
	return idx
}

func (m *Model) removeMember(groupID, id nodeid.ID) int {
	ids := m.members[groupID]
	idx := removeID(&ids, id)
	if len(ids) == 0 {
		delete(m.members, groupID)
	} else {
		m.members[groupID] = ids
	}
	return idx
}

// insertAt inserts id at index (or appends when index is out of range) and
// returns the index used.
func insertAt(s *[]nodeid.ID, id nodeid.ID, index int) int {
	if index < 0 || index > len(*s) {
		*s = append(*s, id)
		return len(*s) - 1
	}
	*s = slices.Insert(*s, index, id)
	return index
}

// removeID deletes id from the slice and returns its former index, or -1.
func removeID(s *[]nodeid.ID, id nodeid.ID) int {
	idx := slices.Index(*s, id)
	if idx >= 0 {
		*s = slices.Delete(*s, idx, idx+1)
	}
	return idx
}

func replaceID(s []nodeid.ID, oldID, newID nodeid.ID) []nodeid.ID {
	for i, id := range s {
		if id == oldID {
			s[i] = newID
		}
	}
	return s
}
