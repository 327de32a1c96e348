package inmemorystore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Store implements graphstore.Store using maps and a mutex for thread-safe
// concurrent access. Identifiers are assigned from a sequence.
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*graphData
	owner  map[nodeid.ID]string // Key: node or edge ID, Value: graph ID
	newID  nodeid.Generator
}

type graphData struct {
	nodes     map[nodeid.ID]node.Node
	edges     map[nodeid.ID]node.Edge
	nodeOrder []nodeid.ID
	edgeOrder []nodeid.ID
}

// New creates a new, empty in-memory graph store.
func New() *Store {
	return NewWithIDs(nodeid.Sequence("mem"))
}

// NewWithIDs creates a store that assigns identifiers from newID.
func NewWithIDs(newID nodeid.Generator) *Store {
	return &Store{
		graphs: make(map[string]*graphData),
		owner:  make(map[nodeid.ID]string),
		newID:  newID,
	}
}

var _ graphstore.Store = (*Store)(nil)

// ListNodes returns the nodes of a graph in creation order.
func (s *Store) ListNodes(ctx context.Context, graphID string) ([]node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[graphID]
	if !ok {
		return []node.Node{}, nil
	}
	out := make([]node.Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out, nil
}

// ListEdges returns the edges of a graph in creation order.
func (s *Store) ListEdges(ctx context.Context, graphID string) ([]node.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[graphID]
	if !ok {
		return []node.Edge{}, nil
	}
	out := make([]node.Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out, nil
}

// CreateNode stores n under a freshly assigned id.
func (s *Store) CreateNode(ctx context.Context, graphID string, n node.Node) (node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.graph(graphID)
	if n.HasParent() {
		if _, ok := g.nodes[n.ParentID]; !ok {
			return node.Node{}, fmt.Errorf("%w: parent '%s' of new node", graphstore.ErrNotFound, n.ParentID)
		}
	}
	n.ID = s.newID()
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	s.owner[n.ID] = graphID
	return n, nil
}

// UpdateNodePosition stores a node's new position.
func (s *Store) UpdateNodePosition(ctx context.Context, id nodeid.ID, pos node.Point) error {
	return s.updateNode(id, func(n *node.Node) error {
		n.Position = pos
		return nil
	})
}

// UpdateNodeParent stores a node's new container.
func (s *Store) UpdateNodeParent(ctx context.Context, id, parentID nodeid.ID) error {
	return s.updateNode(id, func(n *node.Node) error {
		if !parentID.IsZero() && s.owner[parentID] != s.owner[id] {
			return fmt.Errorf("%w: parent '%s'", graphstore.ErrNotFound, parentID)
		}
		n.ParentID = parentID
		return nil
	})
}

// UpdateNodeFinished stores a task's finished flag.
func (s *Store) UpdateNodeFinished(ctx context.Context, id nodeid.ID, finished bool) error {
	return s.updateNode(id, func(n *node.Node) error {
		n.Task.IsFinished = finished
		return nil
	})
}

// DeleteNode removes a node.
func (s *Store) DeleteNode(ctx context.Context, id nodeid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphOf(id)
	if !ok {
		return fmt.Errorf("%w: node '%s'", graphstore.ErrNotFound, id)
	}
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: node '%s'", graphstore.ErrNotFound, id)
	}
	delete(g.nodes, id)
	delete(s.owner, id)
	g.nodeOrder = slices.DeleteFunc(g.nodeOrder, func(x nodeid.ID) bool { return x == id })
	return nil
}

// CreateEdge stores e under a freshly assigned id.
func (s *Store) CreateEdge(ctx context.Context, graphID string, e node.Edge) (node.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.graph(graphID)
	if _, ok := g.nodes[e.SourceID]; !ok {
		return node.Edge{}, fmt.Errorf("%w: edge source '%s'", graphstore.ErrNotFound, e.SourceID)
	}
	if _, ok := g.nodes[e.TargetID]; !ok {
		return node.Edge{}, fmt.Errorf("%w: edge target '%s'", graphstore.ErrNotFound, e.TargetID)
	}
	e.ID = s.newID()
	g.edges[e.ID] = e
	g.edgeOrder = append(g.edgeOrder, e.ID)
	s.owner[e.ID] = graphID
	return e, nil
}

// DeleteEdge removes the edge joining source and target.
func (s *Store) DeleteEdge(ctx context.Context, graphID string, sourceID, targetID nodeid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[graphID]
	if !ok {
		return fmt.Errorf("%w: graph '%s'", graphstore.ErrNotFound, graphID)
	}
	for _, id := range g.edgeOrder {
		e := g.edges[id]
		if e.SourceID == sourceID && e.TargetID == targetID {
			delete(g.edges, id)
			delete(s.owner, id)
			g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(x nodeid.ID) bool { return x == id })
			return nil
		}
	}
	return fmt.Errorf("%w: edge '%s' -> '%s'", graphstore.ErrNotFound, sourceID, targetID)
}

func (s *Store) updateNode(id nodeid.ID, fn func(*node.Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphOf(id)
	if !ok {
		return fmt.Errorf("%w: node '%s'", graphstore.ErrNotFound, id)
	}
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node '%s'", graphstore.ErrNotFound, id)
	}
	if err := fn(&n); err != nil {
		return err
	}
	g.nodes[id] = n
	return nil
}

// graph returns the data of a graph, creating it on first use. Callers hold
// the write lock.
func (s *Store) graph(graphID string) *graphData {
	g, ok := s.graphs[graphID]
	if !ok {
		g = &graphData{
			nodes: make(map[nodeid.ID]node.Node),
			edges: make(map[nodeid.ID]node.Edge),
		}
		s.graphs[graphID] = g
	}
	return g
}

func (s *Store) graphOf(id nodeid.ID) (*graphData, bool) {
	graphID, ok := s.owner[id]
	if !ok {
		return nil, false
	}
	g, ok := s.graphs[graphID]
	return g, ok
}
