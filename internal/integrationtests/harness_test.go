package integrationtests

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/app"
	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/editor"
	"github.com/specialistvlad/flowcanvas/internal/hcl_adapter"
	"github.com/specialistvlad/flowcanvas/internal/testutil"
	"github.com/stretchr/testify/require"
)

// instance is a running App.
type instance struct {
	app    *app.App
	url    string
	logs   *testutil.SafeBuffer
	cancel context.CancelFunc
	done   chan error
}

// startApp runs an App configured from the HCL in files on a free
// loopback port and waits until it answers health checks.
func startApp(t *testing.T, files map[string]string) *instance {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	dir := testutil.WriteFiles(t, files)
	logs := &testutil.SafeBuffer{}
	a, err := app.NewApp(context.Background(), logs, &app.Config{
		ConfigPaths: []string{dir},
		Overrides:   config.Overrides{Addr: addr, LogLevel: "debug"},
	}, hcl_adapter.NewLoader())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	inst := &instance{app: a, url: "http://" + addr, logs: logs, cancel: cancel, done: make(chan error, 1)}
	go func() { inst.done <- a.Run(ctx) }()
	t.Cleanup(func() { inst.stop(t) })

	require.Eventually(t, func() bool {
		resp, err := http.Get(inst.url + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond, "server never became healthy")
	return inst
}

// stop cancels Run, waits for the queue to flush and closes the store.
// It is safe to call more than once.
func (i *instance) stop(t *testing.T) {
	t.Helper()
	if i.done == nil {
		return
	}
	i.cancel()
	select {
	case err := <-i.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	i.done = nil
	i.app.Close()
	if t.Failed() {
		t.Logf("server logs:\n%s", i.logs.String())
	}
}

func (i *instance) snapshot(t *testing.T) editor.Snapshot {
	t.Helper()
	resp, err := http.Get(i.url + "/api/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap editor.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}
