package server

import (
	"github.com/specialistvlad/flowcanvas/internal/editor"
	sio "github.com/zishang520/socket.io/v2/socket"
)

// Broadcaster owns the socket.io server and fans session notifications out
// to every connected client. It is created before the session so it can be
// passed to editor.New as its Notifier.
type Broadcaster struct {
	io *sio.Server
}

var _ editor.Notifier = (*Broadcaster)(nil)

// NewBroadcaster creates the socket.io server.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{io: sio.NewServer(nil, nil)}
}

// Snapshot implements editor.Notifier.
func (b *Broadcaster) Snapshot(s editor.Snapshot) {
	b.io.Emit(EventSnapshot, s)
}

// Toast implements editor.Notifier.
func (b *Broadcaster) Toast(t editor.Toast) {
	b.io.Emit(EventToast, t)
}

// TasksChanged implements editor.Notifier.
func (b *Broadcaster) TasksChanged() {
	b.io.Emit(EventTasksChanged)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.io.Close(nil)
}
