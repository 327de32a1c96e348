package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/hcl_adapter"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log {
  level = "debug"
}

storage "badger" {
  in_memory = true
}

task "T-1" {
  title        = "Write docs"
  done         = true
  completed_at = "2026-05-01T12:00:00Z"
}
`

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func newTestApp(t *testing.T, hcl string, overrides config.Overrides) (*App, *testutil.SafeBuffer) {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{"flowcanvas.hcl": hcl})
	out := &testutil.SafeBuffer{}
	a, err := NewApp(context.Background(), out, &Config{ConfigPaths: []string{dir}, Overrides: overrides}, hcl_adapter.NewLoader())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, out
}

func TestNewApp_SeedsCatalogue(t *testing.T) {
	a, _ := newTestApp(t, testConfig, config.Overrides{GraphID: "sprint-12"})

	assert.Equal(t, "sprint-12", a.Config().Server.GraphID)
	rec, err := a.backend.catalog.Get(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, "Write docs", rec.Title)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), rec.CompletedAt)
}

func TestNewApp_InvalidConfig(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"flowcanvas.hcl": `storage "badger" {}`})
	_, err := NewApp(context.Background(), &bytes.Buffer{}, &Config{ConfigPaths: []string{dir}}, hcl_adapter.NewLoader())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Storage.Path")

	_, err = NewApp(context.Background(), &bytes.Buffer{}, &Config{Overrides: config.Overrides{LogLevel: "loud"}}, hcl_adapter.NewLoader())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Log.Level")
}

func TestRun_ServesAndFlushesOnShutdown(t *testing.T) {
	addr := freeAddr(t)
	a, logs := newTestApp(t, testConfig, config.Overrides{Addr: addr})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	_, err := a.Editor().DropTask(ctx, node.TaskPayload{TaskRef: "T-1", Label: "Write docs"}, node.Point{})
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/api/graph")
	require.NoError(t, err)
	var snap struct {
		Nodes []json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Len(t, snap.Nodes, 1)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	nodes, err := a.backend.store.ListNodes(context.Background(), a.Config().Server.GraphID)
	require.NoError(t, err)
	assert.Len(t, nodes, 1, "the queued drop is persisted before Run returns")
	assert.Contains(t, logs.String(), "flowcanvas stopped.")
}

func TestRun_AddressInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	a, _ := newTestApp(t, testConfig, config.Overrides{Addr: l.Addr().String()})
	err = a.Run(context.Background())
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Log{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])

	assert.Equal(t, "INFO", parseLevel("bogus").String())
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
}
