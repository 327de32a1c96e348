// Package server exposes an editing session to browsers.
//
// The HTTP surface is a gin router:
//
//	GET  /health               liveness probe
//	GET  /metrics              Prometheus metrics
//	GET  /api/graph            current snapshot
//	GET  /api/tasks/completed  completed catalogue tasks, the drag source
//	POST /api/actions          run a context action
//
// The live channel is socket.io on the default namespace. Clients send
// input events (drop_task, drop_attachment, drag_start, drag_move,
// drag_end, connect_nodes, action) and receive a result event for each of
// their inputs, plus broadcast snapshot, toast and tasks_changed events.
// When enabled, the /store namespace answers graph store requests so that
// another instance can use this one as its socketio storage backend.
package server
