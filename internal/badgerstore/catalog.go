package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

var _ taskcatalog.Catalog = (*Store)(nil)

var taskPrefix = []byte("t/")

func taskKey(ref string) []byte { return append(append([]byte(nil), taskPrefix...), ref...) }

// SeedTasks writes catalogue records that don't exist yet. Existing
// records keep their completion state.
func (s *Store) SeedTasks(ctx context.Context, tasks ...taskcatalog.Task) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, t := range tasks {
			_, err := txn.Get(taskKey(t.Ref))
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := putTask(txn, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListCompleted returns done tasks, most recently completed first.
func (s *Store) ListCompleted(ctx context.Context) ([]taskcatalog.Task, error) {
	var out []taskcatalog.Task
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, taskPrefix, func(val []byte) error {
			var t taskcatalog.Task
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("decode task record: %w", err)
			}
			if t.Done {
				out = append(out, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	taskcatalog.SortCompleted(out)
	return out, nil
}

// Get returns one task.
func (s *Store) Get(ctx context.Context, ref string) (taskcatalog.Task, error) {
	var t taskcatalog.Task
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		t, err = getTask(txn, ref)
		return err
	})
	return t, err
}

// SetDone updates a task's completion status.
func (s *Store) SetDone(ctx context.Context, ref string, done bool, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		t, err := getTask(txn, ref)
		if err != nil {
			return err
		}
		return putTask(txn, taskcatalog.Apply(t, done, at))
	})
}

func getTask(txn *badger.Txn, ref string) (taskcatalog.Task, error) {
	var t taskcatalog.Task
	item, err := txn.Get(taskKey(ref))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return t, fmt.Errorf("%w: %q", taskcatalog.ErrNotFound, ref)
	}
	if err != nil {
		return t, err
	}
	err = item.Value(func(val []byte) error { return json.Unmarshal(val, &t) })
	return t, err
}

func putTask(txn *badger.Txn, t taskcatalog.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %q: %w", t.Ref, err)
	}
	return txn.Set(taskKey(t.Ref), data)
}
