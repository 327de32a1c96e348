package socketstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Config describes the remote store connection.
type Config struct {
	URL                string        `hcl:"url" validate:"required,url"`
	Namespace          string        `hcl:"namespace,optional"`
	InsecureSkipVerify bool          `hcl:"insecure_skip_verify,optional"`
	Timeout            time.Duration `hcl:"-"`
}

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// connectTimeout bounds the initial connection.
const connectTimeout = 15 * time.Second

// Store implements graphstore.Store over a socket.io connection.
type Store struct {
	io      *socket.Socket
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan reply
}

var _ graphstore.Store = (*Store)(nil)

// Dial connects to the remote store and waits for the connection.
func Dial(ctx context.Context, cfg Config) (*Store, error) {
	logger := ctxlog.FromContext(ctx).With("store", "socketio", "url", cfg.URL)
	logger.Info("Connecting to remote graph store...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	s := &Store{io: io, timeout: cfg.Timeout, pending: make(map[string]chan reply)}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	io.On(types.EventName(EventReply), s.onReply)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to remote graph store", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("%w: socket.io connection failed: %w", graphstore.ErrUnavailable, err)
		}
		return s, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("%w: timed out after %v waiting for socket.io connection", graphstore.ErrUnavailable, connectTimeout)
	}
}

// Close disconnects from the remote store.
func (s *Store) Close() error {
	s.io.Disconnect()
	return nil
}

func (s *Store) onReply(data ...any) {
	var r reply
	if err := decode(data, &r); err != nil || r.ID == "" {
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[r.ID]
	delete(s.pending, r.ID)
	s.mu.Unlock()
	if ok {
		ch <- r
	}
}

// call emits a request and waits for its reply.
func (s *Store) call(ctx context.Context, event string, req request) (reply, error) {
	if !s.io.Connected() {
		return reply{}, fmt.Errorf("%w: not connected", graphstore.ErrUnavailable)
	}
	req.ID = uuid.NewString()
	done := make(chan reply, 1)
	s.mu.Lock()
	s.pending[req.ID] = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
	}()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctxlog.FromContext(ctx).Debug("Emitting store request", "event", event, "request_id", req.ID)
	s.io.Emit(event, req)

	select {
	case <-opCtx.Done():
		return reply{}, fmt.Errorf("%w: timed out after %v waiting for reply to '%s'", graphstore.ErrUnavailable, s.timeout, event)
	case r := <-done:
		return r, r.err()
	}
}

func (s *Store) ListNodes(ctx context.Context, graphID string) ([]node.Node, error) {
	r, err := s.call(ctx, EventListNodes, request{GraphID: graphID})
	if err != nil {
		return nil, err
	}
	if r.Nodes == nil {
		return []node.Node{}, nil
	}
	return r.Nodes, nil
}

func (s *Store) ListEdges(ctx context.Context, graphID string) ([]node.Edge, error) {
	r, err := s.call(ctx, EventListEdges, request{GraphID: graphID})
	if err != nil {
		return nil, err
	}
	if r.Edges == nil {
		return []node.Edge{}, nil
	}
	return r.Edges, nil
}

func (s *Store) CreateNode(ctx context.Context, graphID string, n node.Node) (node.Node, error) {
	r, err := s.call(ctx, EventCreateNode, request{GraphID: graphID, Node: &n})
	if err != nil {
		return node.Node{}, err
	}
	if r.Node == nil {
		return node.Node{}, fmt.Errorf("remote store: create node reply without node")
	}
	return *r.Node, nil
}

func (s *Store) UpdateNodePosition(ctx context.Context, id nodeid.ID, pos node.Point) error {
	_, err := s.call(ctx, EventUpdateNodePosition, request{NodeID: id, Position: &pos})
	return err
}

func (s *Store) UpdateNodeParent(ctx context.Context, id, parentID nodeid.ID) error {
	_, err := s.call(ctx, EventUpdateNodeParent, request{NodeID: id, ParentID: parentID})
	return err
}

func (s *Store) UpdateNodeFinished(ctx context.Context, id nodeid.ID, finished bool) error {
	_, err := s.call(ctx, EventUpdateNodeFinished, request{NodeID: id, Finished: &finished})
	return err
}

func (s *Store) DeleteNode(ctx context.Context, id nodeid.ID) error {
	_, err := s.call(ctx, EventDeleteNode, request{NodeID: id})
	return err
}

func (s *Store) CreateEdge(ctx context.Context, graphID string, e node.Edge) (node.Edge, error) {
	r, err := s.call(ctx, EventCreateEdge, request{GraphID: graphID, Edge: &e})
	if err != nil {
		return node.Edge{}, err
	}
	if r.Edge == nil {
		return node.Edge{}, fmt.Errorf("remote store: create edge reply without edge")
	}
	return *r.Edge, nil
}

func (s *Store) DeleteEdge(ctx context.Context, graphID string, sourceID, targetID nodeid.ID) error {
	_, err := s.call(ctx, EventDeleteEdge, request{GraphID: graphID, SourceID: sourceID, TargetID: targetID})
	return err
}
