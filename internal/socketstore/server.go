package socketstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	sio "github.com/zishang520/socket.io/v2/socket"
)

// Serve answers store requests arriving on one server-side connection.
func Serve(ctx context.Context, conn *sio.Socket, store graphstore.Store, logger *slog.Logger) {
	h := &handler{ctx: ctx, conn: conn, store: store, logger: logger.With("sid", conn.Id())}

	conn.On(EventListNodes, h.wrap(func(ctx context.Context, req request) (reply, error) {
		nodes, err := store.ListNodes(ctx, req.GraphID)
		return reply{Nodes: nodes}, err
	}))
	conn.On(EventListEdges, h.wrap(func(ctx context.Context, req request) (reply, error) {
		edges, err := store.ListEdges(ctx, req.GraphID)
		return reply{Edges: edges}, err
	}))
	conn.On(EventCreateNode, h.wrap(func(ctx context.Context, req request) (reply, error) {
		if req.Node == nil {
			return reply{}, errors.New("missing node")
		}
		n, err := store.CreateNode(ctx, req.GraphID, *req.Node)
		return reply{Node: &n}, err
	}))
	conn.On(EventUpdateNodePosition, h.wrap(func(ctx context.Context, req request) (reply, error) {
		if req.Position == nil {
			return reply{}, errors.New("missing position")
		}
		return reply{}, store.UpdateNodePosition(ctx, req.NodeID, *req.Position)
	}))
	conn.On(EventUpdateNodeParent, h.wrap(func(ctx context.Context, req request) (reply, error) {
		return reply{}, store.UpdateNodeParent(ctx, req.NodeID, req.ParentID)
	}))
	conn.On(EventUpdateNodeFinished, h.wrap(func(ctx context.Context, req request) (reply, error) {
		if req.Finished == nil {
			return reply{}, errors.New("missing finished flag")
		}
		return reply{}, store.UpdateNodeFinished(ctx, req.NodeID, *req.Finished)
	}))
	conn.On(EventDeleteNode, h.wrap(func(ctx context.Context, req request) (reply, error) {
		return reply{}, store.DeleteNode(ctx, req.NodeID)
	}))
	conn.On(EventCreateEdge, h.wrap(func(ctx context.Context, req request) (reply, error) {
		if req.Edge == nil {
			return reply{}, errors.New("missing edge")
		}
		e, err := store.CreateEdge(ctx, req.GraphID, *req.Edge)
		return reply{Edge: &e}, err
	}))
	conn.On(EventDeleteEdge, h.wrap(func(ctx context.Context, req request) (reply, error) {
		return reply{}, store.DeleteEdge(ctx, req.GraphID, req.SourceID, req.TargetID)
	}))
}

type handler struct {
	ctx    context.Context
	conn   *sio.Socket
	store  graphstore.Store
	logger *slog.Logger
}

// wrap decodes a request, runs fn and emits the reply.
func (h *handler) wrap(fn func(context.Context, request) (reply, error)) func(...any) {
	return func(data ...any) {
		var req request
		if err := decode(data, &req); err != nil {
			h.logger.Warn("Dropping malformed store request", "error", err)
			return
		}
		res, err := fn(h.ctx, req)
		if err != nil {
			h.logger.Debug("Store request failed", "request_id", req.ID, "error", err)
			res = replyError(req.ID, err)
		}
		res.ID = req.ID
		h.conn.Emit(EventReply, res)
	}
}
