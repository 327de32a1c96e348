// Package graphstore defines the persistence adapter contract for task-flow
// graphs.
//
// # Why Graph Store Exists
//
// The editor mutates its in-memory graph.Model synchronously and persists
// every mutation afterwards. The graph store is the only place where a
// graph outlives an editor session, and it is also the authority on
// identifiers: nodes and edges created in the editor carry temporary ids
// until the store assigns permanent ones.
//
// Keeping the contract narrow allows different backends to be swapped:
//   - **inmemorystore:** maps guarded by a RWMutex, for tests and demos
//   - **badgerstore:** an embedded key-value database on local disk
//   - **socketstore:** a remote backend reached over socket.io
//
// # Lifecycle and Usage
//
// The store is:
//  1. **Read** once when a session opens (ListNodes, ListEdges)
//  2. **Written** by the outbox worker, one call per recorded mutation, in
//     the order the mutations happened
//
// Calls never carry temporary ids: the outbox resolves them to the ids
// returned by CreateNode and CreateEdge before calling any other method.
package graphstore

import (
	"context"
	"errors"

	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

var (
	// ErrNotFound is returned when an update or delete names an entity the
	// store doesn't have.
	ErrNotFound = errors.New("graphstore: not found")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("graphstore: backend unavailable")
)

// Store is the interface for persisting the nodes and edges of graphs.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. The outbox worker writes
// from its own goroutine while HTTP handlers may list graphs.
//
// # Typical Implementation
//
// See internal/inmemorystore for the reference in-memory implementation.
type Store interface {
	// ListNodes returns every node of a graph in creation order.
	//
	// An unknown graph is not an error: it is simply empty.
	ListNodes(ctx context.Context, graphID string) ([]node.Node, error)

	// ListEdges returns every edge of a graph in creation order.
	ListEdges(ctx context.Context, graphID string) ([]node.Edge, error)

	// CreateNode persists a new node and returns it with its permanent id.
	//
	// The id on n is a temporary one and must not be reused. The store keeps
	// the kind, position, parent and payload of n.
	CreateNode(ctx context.Context, graphID string, n node.Node) (node.Node, error)

	// UpdateNodePosition stores a node's new position.
	UpdateNodePosition(ctx context.Context, id nodeid.ID, pos node.Point) error

	// UpdateNodeParent stores a node's new container. An empty parentID
	// makes the node freestanding.
	UpdateNodeParent(ctx context.Context, id, parentID nodeid.ID) error

	// UpdateNodeFinished stores a task node's finished flag.
	UpdateNodeFinished(ctx context.Context, id nodeid.ID, finished bool) error

	// DeleteNode removes a node. Edges touching it are removed by the
	// caller beforehand.
	DeleteNode(ctx context.Context, id nodeid.ID) error

	// CreateEdge persists a new edge and returns it with its permanent id.
	// Source and target must already carry permanent ids.
	CreateEdge(ctx context.Context, graphID string, e node.Edge) (node.Edge, error)

	// DeleteEdge removes the edge joining source and target. At most one
	// edge joins any pair of nodes.
	DeleteEdge(ctx context.Context, graphID string, sourceID, targetID nodeid.ID) error
}
