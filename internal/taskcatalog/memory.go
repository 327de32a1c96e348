package taskcatalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory is an in-memory Catalog using sync.Map for fine-grained
// concurrent access. It is seeded from the configuration file.
type Memory struct {
	tasks sync.Map // Key: task ref, Value: Task
}

// NewMemory creates a catalogue holding the given tasks.
func NewMemory(seed ...Task) *Memory {
	m := &Memory{}
	for _, t := range seed {
		m.tasks.Store(t.Ref, t)
	}
	return m
}

var _ Catalog = (*Memory)(nil)

// ListCompleted returns done tasks, most recently completed first.
func (m *Memory) ListCompleted(ctx context.Context) ([]Task, error) {
	var out []Task
	m.tasks.Range(func(_, v any) bool {
		if t := v.(Task); t.Done {
			out = append(out, t)
		}
		return true
	})
	SortCompleted(out)
	return out, nil
}

// Get returns one task.
func (m *Memory) Get(ctx context.Context, ref string) (Task, error) {
	v, ok := m.tasks.Load(ref)
	if !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return v.(Task), nil
}

// SetDone updates a task's completion status.
func (m *Memory) SetDone(ctx context.Context, ref string, done bool, at time.Time) error {
	v, ok := m.tasks.Load(ref)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	m.tasks.Store(ref, Apply(v.(Task), done, at))
	return nil
}

// Apply returns t with its completion status changed.
func Apply(t Task, done bool, at time.Time) Task {
	t.Done = done
	if done {
		t.CompletedAt = at.UTC()
	} else {
		t.CompletedAt = time.Time{}
	}
	return t
}

// SortCompleted orders tasks most recently completed first, then by ref.
func SortCompleted(tasks []Task) {
	slices.SortFunc(tasks, func(a, b Task) int {
		if c := b.CompletedAt.Compare(a.CompletedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref, b.Ref)
	})
}
