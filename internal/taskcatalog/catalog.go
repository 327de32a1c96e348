// Package taskcatalog defines the external task catalogue the editor reads
// completed tasks from.
//
// # Why Task Catalogue Exists
//
// Tasks live in a kanban system outside the editor. The editor only needs
// two things from it:
//   - **Seeding:** completed tasks can be dragged onto the canvas, and
//     opening a graph refreshes the title and badges of the tasks on it
//   - **Completion:** "mark done" and "mark undone" are forwarded verbatim
//
// The catalogue is never written to otherwise.
package taskcatalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for a task reference the catalogue doesn't know.
var ErrNotFound = errors.New("taskcatalog: task not found")

// Task is a catalogue record.
type Task struct {
	Ref         string    `json:"ref"`
	Title       string    `json:"title"`
	Group       string    `json:"group,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Done        bool      `json:"done"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// Catalog is the interface to the external task catalogue.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use: the outbox worker writes
// completion changes while HTTP handlers and sessions read.
type Catalog interface {
	// ListCompleted returns the tasks marked done, most recently completed
	// first.
	ListCompleted(ctx context.Context) ([]Task, error)

	// Get returns one task by reference.
	Get(ctx context.Context, ref string) (Task, error)

	// SetDone updates a task's completion status. at is ignored when done
	// is false.
	SetDone(ctx context.Context, ref string, done bool, at time.Time) error
}
