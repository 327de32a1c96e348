package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

var _ graphstore.Store = (*Store)(nil)

func nodePrefix(graphID string) []byte { return []byte("g/" + graphID + "/n/") }
func edgePrefix(graphID string) []byte { return []byte("g/" + graphID + "/e/") }
func indexKey(id nodeid.ID) []byte     { return []byte("i/" + id.String()) }

func recordKey(prefix []byte, seq uint64) []byte {
	return fmt.Appendf(append([]byte(nil), prefix...), "%016d", seq)
}

// ListNodes returns the nodes of a graph in creation order.
func (s *Store) ListNodes(ctx context.Context, graphID string) ([]node.Node, error) {
	out := []node.Node{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, nodePrefix(graphID), func(val []byte) error {
			var n node.Node
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("decode node record: %w", err)
			}
			out = append(out, n)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list nodes of %q: %w", graphID, err)
	}
	return out, nil
}

// ListEdges returns the edges of a graph in creation order.
func (s *Store) ListEdges(ctx context.Context, graphID string) ([]node.Edge, error) {
	out := []node.Edge{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, edgePrefix(graphID), func(val []byte) error {
			var e node.Edge
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode edge record: %w", err)
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list edges of %q: %w", graphID, err)
	}
	return out, nil
}

// CreateNode stores n under a new id.
func (s *Store) CreateNode(ctx context.Context, graphID string, n node.Node) (node.Node, error) {
	seq, err := s.seq.Next()
	if err != nil {
		return node.Node{}, fmt.Errorf("next id: %w", err)
	}
	n.ID = nodeid.ID(fmt.Sprintf("n%d", seq))
	key := recordKey(nodePrefix(graphID), seq)

	err = s.db.Update(func(txn *badger.Txn) error {
		if n.HasParent() {
			if _, err := txn.Get(indexKey(n.ParentID)); err != nil {
				return notFound(err, "parent", n.ParentID)
			}
		}
		return putRecord(txn, n.ID, key, n)
	})
	if err != nil {
		return node.Node{}, err
	}
	return n, nil
}

// UpdateNodePosition stores a node's new position.
func (s *Store) UpdateNodePosition(ctx context.Context, id nodeid.ID, pos node.Point) error {
	return s.updateNode(id, func(n *node.Node) { n.Position = pos })
}

// UpdateNodeParent stores a node's new container.
func (s *Store) UpdateNodeParent(ctx context.Context, id, parentID nodeid.ID) error {
	return s.updateNode(id, func(n *node.Node) { n.ParentID = parentID })
}

// UpdateNodeFinished stores a task's finished flag.
func (s *Store) UpdateNodeFinished(ctx context.Context, id nodeid.ID, finished bool) error {
	return s.updateNode(id, func(n *node.Node) { n.Task.IsFinished = finished })
}

// DeleteNode removes a node record and its index entry.
func (s *Store) DeleteNode(ctx context.Context, id nodeid.ID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key, err := lookup(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
}

// CreateEdge stores e under a new id.
func (s *Store) CreateEdge(ctx context.Context, graphID string, e node.Edge) (node.Edge, error) {
	seq, err := s.seq.Next()
	if err != nil {
		return node.Edge{}, fmt.Errorf("next id: %w", err)
	}
	e.ID = nodeid.ID(fmt.Sprintf("e%d", seq))
	key := recordKey(edgePrefix(graphID), seq)

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, end := range []nodeid.ID{e.SourceID, e.TargetID} {
			if _, err := txn.Get(indexKey(end)); err != nil {
				return notFound(err, "edge endpoint", end)
			}
		}
		return putRecord(txn, e.ID, key, e)
	})
	if err != nil {
		return node.Edge{}, err
	}
	return e, nil
}

// DeleteEdge removes the edge joining source and target.
func (s *Store) DeleteEdge(ctx context.Context, graphID string, sourceID, targetID nodeid.ID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var found *node.Edge
		var foundKey []byte
		err := scanKeys(txn, edgePrefix(graphID), func(key, val []byte) error {
			var e node.Edge
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode edge record: %w", err)
			}
			if e.SourceID == sourceID && e.TargetID == targetID {
				found, foundKey = &e, key
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			return err
		}
		if found == nil {
			return fmt.Errorf("%w: edge '%s' -> '%s'", graphstore.ErrNotFound, sourceID, targetID)
		}
		if err := txn.Delete(foundKey); err != nil {
			return err
		}
		return txn.Delete(indexKey(found.ID))
	})
}

func (s *Store) updateNode(id nodeid.ID, fn func(*node.Node)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key, err := lookup(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return notFound(err, "node", id)
		}
		var n node.Node
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
			return fmt.Errorf("decode node record: %w", err)
		}
		fn(&n)
		return putRecord(txn, id, key, n)
	})
}

var errStop = errors.New("stop iteration")

func putRecord(txn *badger.Txn, id nodeid.ID, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	if err := txn.Set(key, data); err != nil {
		return err
	}
	return txn.Set(indexKey(id), key)
}

// lookup resolves an id to the primary key of its record.
func lookup(txn *badger.Txn, id nodeid.ID) ([]byte, error) {
	item, err := txn.Get(indexKey(id))
	if err != nil {
		return nil, notFound(err, "node", id)
	}
	return item.ValueCopy(nil)
}

func notFound(err error, what string, id nodeid.ID) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s '%s'", graphstore.ErrNotFound, what, id)
	}
	return err
}

func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	return scanKeys(txn, prefix, func(_, val []byte) error { return fn(val) })
}

func scanKeys(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error { return fn(key, val) }); err != nil {
			return err
		}
	}
	return nil
}
