package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/specialistvlad/flowcanvas/internal/editor"
	"github.com/specialistvlad/flowcanvas/internal/inmemorystore"
	"github.com/specialistvlad/flowcanvas/internal/lifecycle"
	"github.com/specialistvlad/flowcanvas/internal/metrics"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
	"github.com/specialistvlad/flowcanvas/internal/socketstore"
	"github.com/specialistvlad/flowcanvas/internal/taskcatalog"
	tu "github.com/specialistvlad/flowcanvas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var completedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv     *Server
	ed      *editor.Editor
	store   *inmemorystore.Store
	catalog *taskcatalog.Memory
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, _ := tu.LogContext(t)

	catalog := taskcatalog.NewMemory(
		taskcatalog.Task{Ref: "T-1", Title: "Write docs", Group: "Docs", Done: true, CompletedAt: completedAt},
		taskcatalog.Task{Ref: "T-2", Title: "Review"},
	)
	store := inmemorystore.NewWithIDs(nodeid.Sequence("srv"))
	hub := NewBroadcaster()
	ed := editor.New(editor.Config{GraphID: "g", NewID: nodeid.Sequence("tmp")}, store, catalog, hub)
	require.NoError(t, ed.Open(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- ed.Run(runCtx) }()

	srv := New(ctx, hub, Options{Session: ed, Catalog: catalog, Store: store})
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		hub.Close()
	})
	return &fixture{srv: srv, ed: ed, store: store, catalog: catalog, ctx: ctx}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHTTP_Health(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestHTTP_Metrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHTTP_Graph(t *testing.T) {
	f := newFixture(t)
	_, err := f.ed.DropTask(f.ctx, node.TaskPayload{TaskRef: "T-1", Label: "Write docs"}, node.Point{X: 10, Y: 20})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap editor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "g", snap.GraphID)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "Write docs", snap.Nodes[0].Task.Label)
}

func TestHTTP_CompletedTasks(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/tasks/completed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []taskcatalog.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "T-1", tasks[0].Ref)
}

func TestHTTP_Actions(t *testing.T) {
	f := newFixture(t)
	res, err := f.ed.DropTask(f.ctx, node.TaskPayload{TaskRef: "T-1", Label: "Write docs"}, node.Point{})
	require.NoError(t, err)
	taskID := string(res.NodeID)

	t.Run("add attachment", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/actions", `{"action":"add_attachment","nodeId":"`+taskID+`","name":"spec.pdf","fileType":"pdf"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var msg resultMsg
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
		assert.Equal(t, "add_attachment", msg.Input)
		assert.NotEmpty(t, msg.CreatedID)
		assert.True(t, msg.Connected)
		assert.Equal(t, lifecycle.TransitionDirect, msg.Transition)
	})

	testCases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"action":`, http.StatusBadRequest},
		{"missing action", `{"nodeId":"` + taskID + `"}`, http.StatusBadRequest},
		{"unknown action", `{"action":"explode","nodeId":"` + taskID + `"}`, http.StatusBadRequest},
		{"unsupported target", `{"action":"delete_group","nodeId":"` + taskID + `"}`, http.StatusUnprocessableEntity},
		{"vanished node is ignored", `{"action":"delete","nodeId":"tmp-404"}`, http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/actions", tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestSocket_Inputs(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	c := tu.DialSocket(t, ts.URL, "/", EventResult, EventSnapshot)

	var snap editor.Snapshot
	c.Next(t, EventSnapshot, &snap)
	assert.Equal(t, "g", snap.GraphID)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.Sessions) >= 1 }, 5*time.Second, 10*time.Millisecond)

	var dropped resultMsg
	c.Request(t, EventDropTask, map[string]any{"taskRef": "T-1", "position": map[string]any{"x": 0, "y": 0}}, EventResult, &dropped)
	require.Empty(t, dropped.Error)
	assert.Equal(t, EventDropTask, dropped.Input)
	require.NotEmpty(t, dropped.NodeID)

	var unknown resultMsg
	c.Request(t, EventDropTask, map[string]any{"taskRef": "T-404"}, EventResult, &unknown)
	assert.Contains(t, unknown.Error, "unknown task")

	var invalid resultMsg
	c.Request(t, EventDropAttachment, map[string]any{"fileType": "pdf"}, EventResult, &invalid)
	assert.Equal(t, EventDropAttachment, invalid.Input)
	assert.Contains(t, invalid.Error, "invalid payload")

	var added resultMsg
	c.Request(t, EventAction, map[string]any{"action": "add_attachment", "nodeId": string(dropped.NodeID), "name": "notes.md"}, EventResult, &added)
	require.Empty(t, added.Error)
	assert.Equal(t, "add_attachment", added.Input)
	assert.True(t, added.Connected)

	var self resultMsg
	c.Request(t, EventConnectNodes, map[string]any{"source": string(added.CreatedID), "target": string(added.CreatedID)}, EventResult, &self)
	assert.False(t, self.Connected)
	assert.NotEmpty(t, self.Reason)

	f.ed.Wait()
	nodes, err := f.store.ListNodes(context.Background(), "g")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestSocket_StoreNamespace(t *testing.T) {
	f := newFixture(t)
	_, err := f.ed.DropTask(f.ctx, node.TaskPayload{TaskRef: "T-1", Label: "Write docs"}, node.Point{})
	require.NoError(t, err)
	f.ed.Wait()

	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	remote, err := socketstore.Dial(ctx, socketstore.Config{URL: ts.URL + "/socket.io/", Namespace: StoreNamespace, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })

	nodes, err := remote.ListNodes(ctx, "g")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "T-1", nodes[0].Task.TaskRef)
}
