package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Run opens the graph and serves it until ctx is cancelled. Commands
// still queued for the store are flushed before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.editor.Open(ctx); err != nil {
		return fmt.Errorf("failed to open graph '%s': %w", a.config.Server.GraphID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.editor.Run(gctx)
	})
	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.config.Server.Addr)
	})

	a.logger.Info("flowcanvas is serving.", "graph", a.config.Server.GraphID, "address", a.config.Server.Addr)
	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("flowcanvas stopped.")
	return nil
}
