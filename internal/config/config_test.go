package config_test

import (
	"testing"
	"time"

	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/socketstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Validate(config.Default()))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(m *config.Model)
		wantErr string
	}{
		{
			name:    "unknown log level",
			mutate:  func(m *config.Model) { m.Log.Level = "trace" },
			wantErr: "Log.Level fails 'oneof=debug info warn error'",
		},
		{
			name:    "graph id with a slash",
			mutate:  func(m *config.Model) { m.Server.GraphID = "a/b" },
			wantErr: "Server.GraphID fails 'graphid'",
		},
		{
			name:    "zero radius",
			mutate:  func(m *config.Model) { m.Proximity.Radius = 0 },
			wantErr: "Proximity.Radius",
		},
		{
			name:    "badger without path",
			mutate:  func(m *config.Model) { m.Storage.Kind = config.StorageBadger },
			wantErr: "Storage.Path",
		},
		{
			name: "in-memory badger needs no path",
			mutate: func(m *config.Model) {
				m.Storage.Kind = config.StorageBadger
				m.Storage.InMemory = true
			},
		},
		{
			name:    "socketio without url",
			mutate:  func(m *config.Model) { m.Storage.Kind = config.StorageSocketIO },
			wantErr: "Storage.URL",
		},
		{
			name: "bad timeout",
			mutate: func(m *config.Model) {
				m.Storage.Kind = config.StorageSocketIO
				m.Storage.URL = "http://localhost:9000/socket.io/"
				m.Storage.Timeout = "soon"
			},
			wantErr: "Storage.Timeout fails 'posduration'",
		},
		{
			name:    "zero item width",
			mutate:  func(m *config.Model) { m.Layout.ItemWidth = 0 },
			wantErr: "Layout.ItemWidth",
		},
		{
			name: "task without title",
			mutate: func(m *config.Model) {
				m.Tasks = []config.Task{{Ref: "T-1"}}
			},
			wantErr: "Tasks[0].Title",
		},
		{
			name: "duplicate task",
			mutate: func(m *config.Model) {
				m.Tasks = []config.Task{{Ref: "T-1", Title: "a"}, {Ref: "T-1", Title: "b"}}
			},
			wantErr: "task 'T-1' is declared more than once",
		},
		{
			name: "bad completion time",
			mutate: func(m *config.Model) {
				m.Tasks = []config.Task{{Ref: "T-1", Title: "a", Done: true, CompletedAt: "yesterday"}}
			},
			wantErr: "Tasks[0].CompletedAt",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := config.Default()
			tc.mutate(m)
			err := config.Validate(m)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOverride(t *testing.T) {
	m := config.Default()
	m.Override(config.Overrides{GraphID: "sprint-12", LogLevel: "debug"})

	assert.Equal(t, "sprint-12", m.Server.GraphID)
	assert.Equal(t, "debug", m.Log.Level)
	assert.Equal(t, ":8080", m.Server.Addr, "empty overrides keep file values")
	assert.Equal(t, "text", m.Log.Format)
}

func TestStorageRemote(t *testing.T) {
	s := config.Storage{URL: "http://store:9000/socket.io/", Namespace: "/store"}
	assert.Equal(t, socketstore.DefaultTimeout, s.Remote().Timeout)

	s.Timeout = "3s"
	remote := s.Remote()
	assert.Equal(t, 3*time.Second, remote.Timeout)
	assert.Equal(t, "/store", remote.Namespace)
}

func TestTaskCatalogTask(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

	open := config.Task{Ref: "T-1", Title: "Write docs", CompletedAt: "2026-01-02T15:04:05Z"}
	assert.True(t, open.CatalogTask(now).CompletedAt.IsZero(), "open tasks carry no completion time")

	stamped := config.Task{Ref: "T-2", Title: "Ship", Done: true}
	assert.Equal(t, now, stamped.CatalogTask(now).CompletedAt)

	dated := config.Task{Ref: "T-3", Title: "Review", Done: true, CompletedAt: "2026-01-02T16:04:05+01:00"}
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), dated.CatalogTask(now).CompletedAt)
}
