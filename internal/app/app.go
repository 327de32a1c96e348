package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/editor"
	"github.com/specialistvlad/flowcanvas/internal/server"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *config.Model
	backend *backend
	editor  *editor.Editor
	server  *server.Server
}

// NewApp loads and validates the configuration, opens the storage backend
// and builds the session and its server. The caller must Close the App.
func NewApp(ctx context.Context, outW io.Writer, appConfig *Config, loader config.Loader) (*App, error) {
	cfgModel, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfgModel.Override(appConfig.Overrides)
	if err := config.Validate(cfgModel); err != nil {
		return nil, err
	}

	logger := newLogger(cfgModel.Log, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Configuration loaded.", "graph", cfgModel.Server.GraphID, "storage", cfgModel.Storage.Kind, "tasks", len(cfgModel.Tasks))

	b, err := openBackend(ctx, cfgModel, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	hub := server.NewBroadcaster()
	ed := editor.New(editor.Config{
		GraphID: cfgModel.Server.GraphID,
		Layout:  cfgModel.Layout,
		Radius:  cfgModel.Proximity.Radius,
	}, b.store, b.catalog, hub)

	opts := server.Options{Session: ed, Catalog: b.catalog}
	if cfgModel.Server.ExposeStore {
		opts.Store = b.store
	}

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfgModel,
		backend: b,
		editor:  ed,
		server:  server.New(ctx, hub, opts),
	}, nil
}

// Config returns the effective configuration.
func (a *App) Config() *config.Model {
	return a.config
}

// Editor returns the editing session. This is primarily for testing.
func (a *App) Editor() *editor.Editor {
	return a.editor
}

// Close releases the storage backend.
func (a *App) Close() {
	closeBackend(a.logger, a.backend)
}
