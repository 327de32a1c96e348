package editor

import (
	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Snapshot is the full renderable state of a session.
type Snapshot struct {
	GraphID string `json:"graphId"`
	// Version increases with every published snapshot; receivers drop
	// snapshots older than the last one they rendered.
	Version      uint64         `json:"version"`
	Nodes        []node.Node    `json:"nodes"`
	Edges        []node.Edge    `json:"edges"`
	Highlight    dragdrop.Hover `json:"highlight"`
	PendingGroup nodeid.ID      `json:"pendingGroup,omitempty"`
	// Unsaved is the number of commands waiting to be persisted.
	Unsaved int `json:"unsaved"`
}

// ToastLevel classifies a toast.
type ToastLevel string

const (
	ToastInfo  ToastLevel = "info"
	ToastError ToastLevel = "error"
)

// Toast is a transient user notification.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
}

// Notifier receives what the UI has to show. Methods are called without
// the session lock held and may come from the input goroutine or the
// persistence worker.
type Notifier interface {
	Snapshot(s Snapshot)
	Toast(t Toast)
	// TasksChanged asks the UI to reload the task list.
	TasksChanged()
}

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Snapshot(Snapshot) {}
func (discard) Toast(Toast)       {}
func (discard) TasksChanged()     {}

// Snapshot returns the current state.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Editor) snapshotLocked() Snapshot {
	e.version++
	return Snapshot{
		GraphID:      e.graphID,
		Version:      e.version,
		Nodes:        e.g.Nodes(),
		Edges:        e.g.Edges(),
		Highlight:    e.drag.Highlight(),
		PendingGroup: e.actions.PendingGroup(),
		Unsaved:      e.outbox.Len(),
	}
}
