// Package app assembles the flowcanvas server: it loads configuration,
// opens the graph store and task catalogue it names, and runs the editing
// session next to the HTTP server until the context is cancelled.
package app
