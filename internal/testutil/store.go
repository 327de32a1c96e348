package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Call is one recorded store call. ID is the primary id argument (the
// local id for creates, the source for DeleteEdge) and Other the second
// one (the assigned id for creates, the parent or target otherwise).
type Call struct {
	Method string
	ID     nodeid.ID
	Other  nodeid.ID
}

func (c Call) String() string {
	if c.Other.IsZero() {
		return fmt.Sprintf("%s(%s)", c.Method, c.ID)
	}
	return fmt.Sprintf("%s(%s, %s)", c.Method, c.ID, c.Other)
}

// RecordingStore wraps a graphstore.Store, records every write and can be
// told to fail upcoming calls.
type RecordingStore struct {
	inner graphstore.Store

	mu    sync.Mutex
	calls []Call
	fail  map[string][]error
	holds map[string][]chan struct{}
}

var _ graphstore.Store = (*RecordingStore)(nil)

// NewRecordingStore wraps inner.
func NewRecordingStore(inner graphstore.Store) *RecordingStore {
	return &RecordingStore{
		inner: inner,
		fail:  make(map[string][]error),
		holds: make(map[string][]chan struct{}),
	}
}

// FailNext makes the next call to method return err. Calls queue up.
func (s *RecordingStore) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = append(s.fail[method], err)
}

// HoldNext makes the next call to method wait until the returned release
// function is called. It lets a test queue more input while the store is
// busy. Holds are consumed before FailNext errors.
func (s *RecordingStore) HoldNext(method string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.holds[method] = append(s.holds[method], gate)
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns the recorded writes, failed ones included.
func (s *RecordingStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Methods returns the method names of the recorded writes.
func (s *RecordingStore) Methods() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Reset forgets the recorded calls.
func (s *RecordingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *RecordingStore) record(method string, id, other nodeid.ID) error {
	s.mu.Lock()
	var gate chan struct{}
	if queued := s.holds[method]; len(queued) > 0 {
		gate = queued[0]
		s.holds[method] = queued[1:]
	}
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, ID: id, Other: other})
	if queued := s.fail[method]; len(queued) > 0 {
		s.fail[method] = queued[1:]
		return queued[0]
	}
	return nil
}

func (s *RecordingStore) ListNodes(ctx context.Context, graphID string) ([]node.Node, error) {
	return s.inner.ListNodes(ctx, graphID)
}

func (s *RecordingStore) ListEdges(ctx context.Context, graphID string) ([]node.Edge, error) {
	return s.inner.ListEdges(ctx, graphID)
}

func (s *RecordingStore) CreateNode(ctx context.Context, graphID string, n node.Node) (node.Node, error) {
	if err := s.record("CreateNode", n.ID, ""); err != nil {
		return node.Node{}, err
	}
	created, err := s.inner.CreateNode(ctx, graphID, n)
	if err == nil {
		s.mu.Lock()
		s.calls[len(s.calls)-1].Other = created.ID
		s.mu.Unlock()
	}
	return created, err
}

func (s *RecordingStore) UpdateNodePosition(ctx context.Context, id nodeid.ID, pos node.Point) error {
	if err := s.record("UpdateNodePosition", id, ""); err != nil {
		return err
	}
	return s.inner.UpdateNodePosition(ctx, id, pos)
}

func (s *RecordingStore) UpdateNodeParent(ctx context.Context, id, parentID nodeid.ID) error {
	if err := s.record("UpdateNodeParent", id, parentID); err != nil {
		return err
	}
	return s.inner.UpdateNodeParent(ctx, id, parentID)
}

func (s *RecordingStore) UpdateNodeFinished(ctx context.Context, id nodeid.ID, finished bool) error {
	if err := s.record("UpdateNodeFinished", id, ""); err != nil {
		return err
	}
	return s.inner.UpdateNodeFinished(ctx, id, finished)
}

func (s *RecordingStore) DeleteNode(ctx context.Context, id nodeid.ID) error {
	if err := s.record("DeleteNode", id, ""); err != nil {
		return err
	}
	return s.inner.DeleteNode(ctx, id)
}

func (s *RecordingStore) CreateEdge(ctx context.Context, graphID string, e node.Edge) (node.Edge, error) {
	if err := s.record("CreateEdge", e.ID, ""); err != nil {
		return node.Edge{}, err
	}
	created, err := s.inner.CreateEdge(ctx, graphID, e)
	if err == nil {
		s.mu.Lock()
		s.calls[len(s.calls)-1].Other = created.ID
		s.mu.Unlock()
	}
	return created, err
}

func (s *RecordingStore) DeleteEdge(ctx context.Context, graphID string, sourceID, targetID nodeid.ID) error {
	if err := s.record("DeleteEdge", sourceID, targetID); err != nil {
		return err
	}
	return s.inner.DeleteEdge(ctx, graphID, sourceID, targetID)
}
