// Package outbox persists the editor's mutations asynchronously.
//
// # Why Outbox Exists
//
// The editor applies every user action to its in-memory graph at once and
// hands the recorded ops to the outbox as one Command. A single worker
// goroutine replays commands in order against a graphstore.Store, so the
// UI never waits on the backend.
//
// # Identifier Resolution
//
// Entities created in the editor carry temporary ids. When CreateNode or
// CreateEdge returns, the outbox records an alias from the temporary id to
// the permanent one and tells the Listener, which rekeys the live graph.
// Commands still queued keep their temporary ids and are resolved through
// the alias table. An entity whose create failed is poisoned: later ops
// touching it are dropped.
//
// # Failure Handling
//
// When a store call fails the rest of the command is abandoned. The calls
// that already reached the store are compensated in reverse order, the
// Listener receives a *PersistenceError and the editor reverts the whole
// command locally. Nothing is retried.
package outbox
