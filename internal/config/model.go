package config

import (
	"time"

	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/proximity"
	"github.com/specialistvlad/flowcanvas/internal/socketstore"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
)

// Storage kinds.
const (
	StorageMemory   = "memory"
	StorageBadger   = "badger"
	StorageSocketIO = "socketio"
)

// Model is the whole server configuration.
type Model struct {
	Log       Log
	Server    Server
	Layout    layout.Config
	Proximity Proximity
	Storage   Storage
	Tasks     []Task `validate:"dive"`
}

// Log selects the log handler.
type Log struct {
	Level  string `hcl:"level,optional" validate:"oneof=debug info warn error"`
	Format string `hcl:"format,optional" validate:"oneof=text json"`
}

// Server configures the HTTP and socket.io surface.
type Server struct {
	Addr    string `hcl:"addr,optional" validate:"required"`
	GraphID string `hcl:"graph,optional" validate:"required,graphid"`
	// ExposeStore serves the graph store itself on the /store namespace so
	// other instances can use it as a socketio storage backend.
	ExposeStore bool `hcl:"expose_store,optional"`
}

// Proximity configures drop snapping.
type Proximity struct {
	Radius float64 `hcl:"radius,optional" validate:"gt=0"`
}

// Storage selects and configures the graph store.
type Storage struct {
	Kind string `validate:"oneof=memory badger socketio"`

	// badger
	Path       string `hcl:"path,optional" validate:"required_if=Kind badger InMemory false"`
	InMemory   bool   `hcl:"in_memory,optional"`
	SyncWrites bool   `hcl:"sync_writes,optional"`

	// socketio
	URL                string `hcl:"url,optional" validate:"required_if=Kind socketio,omitempty,url"`
	Namespace          string `hcl:"namespace,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
	Timeout            string `hcl:"timeout,optional" validate:"omitempty,posduration"`
}

// RequestTimeout returns the parsed Timeout, or the store default.
func (s Storage) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return socketstore.DefaultTimeout
	}
	return d
}

// Remote returns the socketio store connection settings.
func (s Storage) Remote() socketstore.Config {
	return socketstore.Config{
		URL:                s.URL,
		Namespace:          s.Namespace,
		InsecureSkipVerify: s.InsecureSkipVerify,
		Timeout:            s.RequestTimeout(),
	}
}

// Task seeds the in-memory task catalogue.
type Task struct {
	Ref         string `validate:"required"`
	Title       string `hcl:"title" validate:"required"`
	Group       string `hcl:"group,optional"`
	Priority    string `hcl:"priority,optional"`
	Done        bool   `hcl:"done,optional"`
	CompletedAt string `hcl:"completed_at,optional" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// CatalogTask converts t to a catalogue record. A done task without a
// completion time is stamped with now.
func (t Task) CatalogTask(now time.Time) taskcatalog.Task {
	rec := taskcatalog.Task{
		Ref:      t.Ref,
		Title:    t.Title,
		Group:    t.Group,
		Priority: t.Priority,
		Done:     t.Done,
	}
	if !t.Done {
		return rec
	}
	rec.CompletedAt = now.UTC()
	if at, err := time.Parse(time.RFC3339, t.CompletedAt); err == nil {
		rec.CompletedAt = at.UTC()
	}
	return rec
}

// Default returns the configuration used when no file is given.
func Default() *Model {
	return &Model{
		Log:       Log{Level: "info", Format: "text"},
		Server:    Server{Addr: ":8080", GraphID: "main"},
		Layout:    layout.DefaultConfig(),
		Proximity: Proximity{Radius: proximity.DefaultRadius},
		Storage:   Storage{Kind: StorageMemory, Namespace: "/"},
	}
}

// Overrides are command line values; empty fields leave the model alone.
type Overrides struct {
	GraphID   string
	Addr      string
	LogLevel  string
	LogFormat string
}

// Override applies o on top of m.
func (m *Model) Override(o Overrides) {
	if o.GraphID != "" {
		m.Server.GraphID = o.GraphID
	}
	if o.Addr != "" {
		m.Server.Addr = o.Addr
	}
	if o.LogLevel != "" {
		m.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		m.Log.Format = o.LogFormat
	}
}
