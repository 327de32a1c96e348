// Package socketstore reaches a remote graph store over socket.io.
//
// Every Store method is one request event answered by a reply event on the
// same connection. Requests carry an id that the reply echoes, so several
// requests may be in flight at once. Serve implements the answering side on
// top of any graphstore.Store.
package socketstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Event names. They are untyped so they convert to both the client's and
// the server's event name types.
const (
	EventListNodes          = "graph:list_nodes"
	EventListEdges          = "graph:list_edges"
	EventCreateNode         = "graph:create_node"
	EventUpdateNodePosition = "graph:update_node_position"
	EventUpdateNodeParent   = "graph:update_node_parent"
	EventUpdateNodeFinished = "graph:update_node_finished"
	EventDeleteNode         = "graph:delete_node"
	EventCreateEdge         = "graph:create_edge"
	EventDeleteEdge         = "graph:delete_edge"
	EventReply              = "graph:reply"
)

// Error codes carried by replies.
const (
	codeNotFound = "not_found"
	codeInternal = "internal"
)

type request struct {
	ID       string      `json:"id"`
	GraphID  string      `json:"graphId,omitempty"`
	NodeID   nodeid.ID   `json:"nodeId,omitempty"`
	ParentID nodeid.ID   `json:"parentId,omitempty"`
	SourceID nodeid.ID   `json:"sourceId,omitempty"`
	TargetID nodeid.ID   `json:"targetId,omitempty"`
	Position *node.Point `json:"position,omitempty"`
	Finished *bool       `json:"finished,omitempty"`
	Node     *node.Node  `json:"node,omitempty"`
	Edge     *node.Edge  `json:"edge,omitempty"`
}

type reply struct {
	ID    string      `json:"id"`
	Code  string      `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
	Nodes []node.Node `json:"nodes,omitempty"`
	Edges []node.Edge `json:"edges,omitempty"`
	Node  *node.Node  `json:"node,omitempty"`
	Edge  *node.Edge  `json:"edge,omitempty"`
}

// err converts a reply's error fields back into an error.
func (r reply) err() error {
	switch r.Code {
	case "":
		return nil
	case codeNotFound:
		return fmt.Errorf("%w: %s", graphstore.ErrNotFound, r.Error)
	default:
		return fmt.Errorf("remote store: %s", r.Error)
	}
}

func replyError(id string, err error) reply {
	code := codeInternal
	if errors.Is(err, graphstore.ErrNotFound) {
		code = codeNotFound
	}
	return reply{ID: id, Code: code, Error: err.Error()}
}

// decode converts an event argument (already decoded into generic maps by
// the socket.io parser) into a typed value.
func decode(data []any, out any) error {
	if len(data) == 0 {
		return errors.New("empty event payload")
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
