package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/badgerstore"
	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graphstore"
	"github.com/specialistvlad/flowcanvas/internal/inmemorystore"
	"github.com/specialistvlad/flowcanvas/internal/socketstore"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

// backend is an opened graph store with the catalogue that goes with it.
type backend struct {
	store   graphstore.Store
	catalog taskcatalog.Catalog
	close   func() error
}

// openBackend opens the configured store. Badger keeps the catalogue in
// the same database; the other kinds use an in-memory catalogue. Either
// way the configured tasks are seeded into it.
func openBackend(ctx context.Context, cfg *config.Model, now time.Time) (*backend, error) {
	logger := ctxlog.FromContext(ctx).With("storage", cfg.Storage.Kind)

	seed := make([]taskcatalog.Task, 0, len(cfg.Tasks))
	for _, t := range cfg.Tasks {
		seed = append(seed, t.CatalogTask(now))
	}
	noop := func() error { return nil }

	switch cfg.Storage.Kind {
	case config.StorageMemory:
		logger.Info("Using in-memory graph store; nothing survives a restart.")
		return &backend{store: inmemorystore.New(), catalog: taskcatalog.NewMemory(seed...), close: noop}, nil

	case config.StorageBadger:
		bcfg := badgerstore.DefaultConfig(cfg.Storage.Path)
		bcfg.InMemory = cfg.Storage.InMemory
		bcfg.SyncWrites = cfg.Storage.SyncWrites
		if cfg.Log.Level == "debug" {
			bcfg.Logger = logger.With("component", "badger")
		}
		db, err := badgerstore.Open(bcfg)
		if err != nil {
			return nil, err
		}
		if err := db.SeedTasks(ctx, seed...); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seeding task catalogue: %w", err)
		}
		logger.Info("Opened badger graph store.", "path", cfg.Storage.Path, "in_memory", cfg.Storage.InMemory, "tasks_seeded", len(seed))
		return &backend{store: db, catalog: db, close: db.Close}, nil

	case config.StorageSocketIO:
		remote, err := socketstore.Dial(ctx, cfg.Storage.Remote())
		if err != nil {
			return nil, err
		}
		return &backend{store: remote, catalog: taskcatalog.NewMemory(seed...), close: remote.Close}, nil
	}
	return nil, fmt.Errorf("unknown storage kind '%s'", cfg.Storage.Kind)
}

func closeBackend(logger *slog.Logger, b *backend) {
	if err := b.close(); err != nil {
		logger.Error("Closing graph store failed.", "error", err)
	}
}
