package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/flowcanvas/internal/actions"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/metrics"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/socketstore"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
	sio "github.com/zishang520/socket.io/v2/socket"
)

func (s *Server) mountSocket(store graphstore.Store) {
	logger := ctxlog.FromContext(s.ctx)

	s.hub.io.On("connection", func(clients ...any) {
		conn := clients[0].(*sio.Socket)
		s.serveClient(conn, logger.With("sid", conn.Id()))
	})

	if store == nil {
		return
	}
	logger.Info("Exposing graph store", "namespace", StoreNamespace)
	s.hub.io.Of(StoreNamespace, nil).On("connection", func(clients ...any) {
		conn := clients[0].(*sio.Socket)
		socketstore.Serve(s.ctx, conn, store, logger.With("namespace", StoreNamespace))
	})
}

// serveClient wires the input events of one UI connection.
func (s *Server) serveClient(conn *sio.Socket, logger *slog.Logger) {
	metrics.Sessions.Inc()
	logger.Info("Client connected.")
	conn.On("disconnect", func(reason ...any) {
		metrics.Sessions.Dec()
		logger.Info("Client disconnected.", "reason", fmt.Sprint(reason...))
	})

	ctx := ctxlog.WithLogger(s.ctx, logger)
	c := &client{conn: conn, logger: logger}

	conn.On(EventDropTask, c.handle(EventDropTask, func(data []any) (resultMsg, error) {
		var msg dropTaskMsg
		if err := decode(data, &msg); err != nil {
			return resultMsg{}, err
		}
		task, err := s.lookupTask(ctx, msg.TaskRef)
		if err != nil {
			return resultMsg{}, err
		}
		res, err := s.session.DropTask(ctx, task, msg.Position)
		return dropResult(EventDropTask, res), err
	}))

	conn.On(EventDropAttachment, c.handle(EventDropAttachment, func(data []any) (resultMsg, error) {
		var msg dropAttachmentMsg
		if err := decode(data, &msg); err != nil {
			return resultMsg{}, err
		}
		spec := dragdrop.AttachmentSpec{Name: msg.Name, FileType: msg.FileType}
		res, err := s.session.DropAttachment(ctx, spec, msg.Position)
		return dropResult(EventDropAttachment, res), err
	}))

	conn.On(EventDragStart, c.handle(EventDragStart, func(data []any) (resultMsg, error) {
		var msg dragMsg
		if err := decode(data, &msg); err != nil {
			return resultMsg{}, err
		}
		return resultMsg{Input: EventDragStart, NodeID: msg.NodeID}, s.session.BeginDrag(ctx, msg.NodeID)
	}))

	// Moves are answered through the snapshot highlight only.
	conn.On(EventDragMove, func(data ...any) {
		var msg dragMsg
		if err := decode(data, &msg); err != nil {
			logger.Warn("Dropping malformed input", "event", EventDragMove, "error", err)
			return
		}
		if _, err := s.session.Drag(ctx, msg.NodeID, msg.Position); err != nil {
			logger.Debug("Drag move rejected", "node", msg.NodeID, "error", err)
		}
	})

	conn.On(EventDragEnd, c.handle(EventDragEnd, func(data []any) (resultMsg, error) {
		var msg dragMsg
		if err := decode(data, &msg); err != nil {
			return resultMsg{}, err
		}
		res, err := s.session.EndDrag(ctx, msg.NodeID, msg.Position)
		return dropResult(EventDragEnd, res), err
	}))

	conn.On(EventConnectNodes, c.handle(EventConnectNodes, func(data []any) (resultMsg, error) {
		var msg connectMsg
		if err := decode(data, &msg); err != nil {
			return resultMsg{}, err
		}
		res, err := s.session.Connect(ctx, msg.proposal())
		return dropResult(EventConnectNodes, res), err
	}))

	conn.On(EventAction, c.handle(EventAction, func(data []any) (resultMsg, error) {
		var req actions.Request
		if err := decode(data, &req); err != nil {
			return resultMsg{}, err
		}
		res, err := s.session.Dispatch(ctx, req)
		return actionResult(res), err
	}))

	conn.Emit(EventSnapshot, s.session.Snapshot())
}

// lookupTask builds the payload of a dropped catalogue task.
func (s *Server) lookupTask(ctx context.Context, ref string) (node.TaskPayload, error) {
	if s.catalog == nil {
		return node.TaskPayload{}, fmt.Errorf("%w: %s", ErrUnknownTask, ref)
	}
	rec, err := s.catalog.Get(ctx, ref)
	if errors.Is(err, taskcatalog.ErrNotFound) {
		return node.TaskPayload{}, fmt.Errorf("%w: %s", ErrUnknownTask, ref)
	}
	if err != nil {
		return node.TaskPayload{}, fmt.Errorf("looking up task '%s': %w", ref, err)
	}
	return node.TaskPayload{
		TaskRef:       rec.Ref,
		Label:         rec.Title,
		Done:          rec.Done,
		CompletedAt:   rec.CompletedAt,
		GroupBadge:    rec.Group,
		PriorityBadge: rec.Priority,
	}, nil
}

type client struct {
	conn   *sio.Socket
	logger *slog.Logger
}

// handle runs fn for an input event and answers the sender with a result
// event.
func (c *client) handle(event string, fn func(data []any) (resultMsg, error)) func(...any) {
	return func(data ...any) {
		res, err := fn(data)
		if res.Input == "" {
			res.Input = event
		}
		if err != nil {
			c.logger.Debug("Input failed", "event", event, "error", err)
			res.Error = err.Error()
		}
		c.conn.Emit(EventResult, res)
	}
}
