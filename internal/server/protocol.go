package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/flowcanvas/internal/actions"
	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// Input events.
const (
	EventDropTask       = "drop_task"
	EventDropAttachment = "drop_attachment"
	EventDragStart      = "drag_start"
	EventDragMove       = "drag_move"
	EventDragEnd        = "drag_end"
	EventConnectNodes   = "connect_nodes"
	EventAction         = "action"
)

// Output events.
const (
	EventResult       = "result"
	EventSnapshot     = "snapshot"
	EventToast        = "toast"
	EventTasksChanged = "tasks_changed"
)

// StoreNamespace serves the graph store when exposed.
const StoreNamespace = "/store"

var v *validator.Validate

func init() {
	v = validator.New()
}

type dropTaskMsg struct {
	TaskRef  string     `json:"taskRef" validate:"required"`
	Position node.Point `json:"position"`
}

type dropAttachmentMsg struct {
	Name     string     `json:"name" validate:"required"`
	FileType string     `json:"fileType"`
	Position node.Point `json:"position"`
}

type dragMsg struct {
	NodeID   nodeid.ID  `json:"nodeId" validate:"required"`
	Position node.Point `json:"position"`
}

type connectMsg struct {
	SourceID   nodeid.ID `json:"source" validate:"required"`
	TargetID   nodeid.ID `json:"target" validate:"required"`
	SourcePort node.Port `json:"sourcePort"`
	TargetPort node.Port `json:"targetPort"`
}

func (m connectMsg) proposal() connection.Proposal {
	return connection.Proposal{SourceID: m.SourceID, TargetID: m.TargetID, SourcePort: m.SourcePort, TargetPort: m.TargetPort}
}

// resultMsg answers one input to the client that sent it.
type resultMsg struct {
	Input                string               `json:"input"`
	NodeID               nodeid.ID            `json:"nodeId,omitempty"`
	AnchorID             nodeid.ID            `json:"anchorId,omitempty"`
	CreatedID            nodeid.ID            `json:"createdId,omitempty"`
	Connected            bool                 `json:"connected"`
	Reason               connection.Reason    `json:"reason,omitempty"`
	Transition           lifecycle.Transition `json:"transition,omitempty"`
	Highlight            *dragdrop.Hover      `json:"highlight,omitempty"`
	AwaitingConfirmation bool                 `json:"awaitingConfirmation,omitempty"`
	Error                string               `json:"error,omitempty"`
}

func dropResult(input string, res dragdrop.Result) resultMsg {
	return resultMsg{
		Input:      input,
		NodeID:     res.NodeID,
		AnchorID:   res.AnchorID,
		Connected:  res.Connected(),
		Reason:     res.Decision.Reason,
		Transition: res.Transition,
	}
}

func actionResult(res actions.Result) resultMsg {
	msg := resultMsg{
		Input:                string(res.Action),
		NodeID:               res.NodeID,
		CreatedID:            res.CreatedID,
		Transition:           res.Transition,
		AwaitingConfirmation: res.AwaitingConfirmation,
	}
	if res.Connection != nil {
		msg.AnchorID = res.Connection.AnchorID
		msg.Connected = res.Connection.Connected()
		msg.Reason = res.Connection.Decision.Reason
		if res.Connection.Transition != lifecycle.TransitionNone {
			msg.Transition = res.Connection.Transition
		}
	}
	return msg
}

// decode converts a socket.io payload into out and validates it.
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
	if err := v.Struct(out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
