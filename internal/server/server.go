package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/flowcanvas/internal/actions"
	"github.com/specialistvlad/flowcanvas/internal/connection"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/dragdrop"
	"github.com/specialistvlad/flowcanvas/internal/editor"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

// Session is the editing session driven by clients. *editor.Editor
// implements it.
type Session interface {
	GraphID() string
	Snapshot() editor.Snapshot
	DropTask(ctx context.Context, task node.TaskPayload, p node.Point) (dragdrop.Result, error)
	DropAttachment(ctx context.Context, spec dragdrop.AttachmentSpec, p node.Point) (dragdrop.Result, error)
	BeginDrag(ctx context.Context, id nodeid.ID) error
	Drag(ctx context.Context, id nodeid.ID, p node.Point) (dragdrop.Hover, error)
	EndDrag(ctx context.Context, id nodeid.ID, p node.Point) (dragdrop.Result, error)
	Connect(ctx context.Context, p connection.Proposal) (dragdrop.Result, error)
	Dispatch(ctx context.Context, req actions.Request) (actions.Result, error)
}

var _ Session = (*editor.Editor)(nil)

// Options configures a Server.
type Options struct {
	Session Session
	Catalog taskcatalog.Catalog
	// Store, when set, is served on StoreNamespace.
	Store graphstore.Store
}

// Server routes HTTP and socket.io traffic to a session.
type Server struct {
	ctx     context.Context
	session Session
	catalog taskcatalog.Catalog
	hub     *Broadcaster
	router  *gin.Engine
}

// ErrUnknownTask is returned for a dropped task the catalogue doesn't know.
var ErrUnknownTask = errors.New("server: unknown task")

// New builds the router. ctx carries the logger and bounds the work
// started by socket events.
func New(ctx context.Context, hub *Broadcaster, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		ctx:     ctx,
		session: opts.Session,
		catalog: opts.Catalog,
		hub:     hub,
		router:  gin.New(),
	}

	s.router.Use(gin.Recovery(), requestLogger(ctxlog.FromContext(ctx)))
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/graph", s.handleGraph)
		api.GET("/tasks/completed", s.handleCompletedTasks)
		api.POST("/actions", s.handleAction)
	}

	s.mountSocket(opts.Store)
	s.router.Any("/socket.io/*any", gin.WrapH(hub.io.ServeHandler(nil)))
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	logger.Debug("HTTP server shut down gracefully.")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK\n")
}

func (s *Server) handleGraph(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleCompletedTasks(c *gin.Context) {
	if s.catalog == nil {
		c.JSON(http.StatusOK, []taskcatalog.Task{})
		return
	}
	tasks, err := s.catalog.ListCompleted(c.Request.Context())
	if err != nil {
		ctxlog.FromContext(s.ctx).Error("Listing completed tasks failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "task catalogue unavailable"})
		return
	}
	if tasks == nil {
		tasks = []taskcatalog.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleAction(c *gin.Context) {
	var req actions.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := v.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.session.Dispatch(s.requestContext(c), req)
	switch {
	case errors.Is(err, actions.ErrUnknownAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, actionResult(res))
	}
}

// requestContext detaches the session call from the request so a client
// disconnecting mid-command can't cancel it.
func (s *Server) requestContext(c *gin.Context) context.Context {
	return ctxlog.WithLogger(context.WithoutCancel(c.Request.Context()), ctxlog.FromContext(s.ctx))
}

// requestLogger logs every request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request served.",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote_addr", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
