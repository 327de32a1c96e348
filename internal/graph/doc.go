// Package graph holds the in-memory model of a task-flow canvas: the set of
// nodes and edges, the containment of attachments in groups, and the
// mutation operations that keep the model's invariants.
//
// # Ownership
//
// The Model is the sole owner of every node and edge. Queries return copies,
// so no other component can hold state that diverges from the model.
//
// # Reversible operations
//
// Every successful mutation is recorded as an Op. The editor drains the
// recorded ops after each user action and hands them to the persistence
// outbox as one command. When persisting a command fails, the same ops are
// passed back to Revert, which applies their inverses in reverse order:
//
//	m.AddNode(task)          // records OpAddNode
//	m.AddEdge(flow)          // records OpAddEdge
//	ops := m.Drain()         // [AddNode, AddEdge]
//	m.Revert(ops, nil)       // RemoveEdge, then RemoveNode
//
// A late rollback runs after later actions changed the graph. Inverses
// that reference vanished entities, that would overwrite a later change or
// that would restore an edge the rules no longer allow are skipped and
// returned. Removing a node that later actions used first detaches
// everything that refers to it.
//
// # Ordering
//
// Nodes and edges are iterated in insertion order. Proximity search relies
// on this for its first-found tie-breaking, and group members keep the order
// in which they joined, which is their slot order.
//
// # Thread-Safety
//
// A Model is not safe for concurrent use. The editor serializes all access.
package graph
