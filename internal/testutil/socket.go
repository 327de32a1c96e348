package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketClient is a socket.io test client that queues the payloads of the
// events it subscribed to.
type SocketClient struct {
	io *socket.Socket

	mu     sync.Mutex
	queues map[string]chan json.RawMessage
}

// DialSocket connects to the socket.io server at baseURL and subscribes to
// events before connecting, so nothing sent on connect is missed.
func DialSocket(t *testing.T, baseURL, namespace string, events ...string) *SocketClient {
	t.Helper()
	opts := socket.DefaultOptions()
	opts.SetPath("/socket.io/")
	opts.SetTransports(types.NewSet(transports.WebSocket))
	io := socket.NewManager(baseURL, opts).Socket(namespace, opts)

	c := &SocketClient{io: io, queues: make(map[string]chan json.RawMessage)}
	for _, ev := range events {
		q := c.queue(ev)
		io.On(types.EventName(ev), func(data ...any) {
			var raw json.RawMessage
			if len(data) > 0 {
				b, err := json.Marshal(data[0])
				if err != nil {
					return
				}
				raw = b
			}
			select {
			case q <- raw:
			default:
				// Full queue; tests only look at the first payloads.
			}
		})
	}

	connected := make(chan struct{})
	io.Once(types.EventName("connect"), func(...any) { close(connected) })
	io.Connect()
	t.Cleanup(func() { io.Disconnect() })

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out connecting to %s%s", baseURL, namespace)
	}
	return c
}

func (c *SocketClient) queue(event string) chan json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[event]
	if !ok {
		q = make(chan json.RawMessage, 256)
		c.queues[event] = q
	}
	return q
}

// Emit sends an event.
func (c *SocketClient) Emit(event string, payload any) {
	c.io.Emit(event, payload)
}

// Next waits for the next payload of event and decodes it into out, which
// may be nil.
func (c *SocketClient) Next(t *testing.T, event string, out any) {
	t.Helper()
	select {
	case raw := <-c.queue(event):
		if out != nil {
			require.NoError(t, json.Unmarshal(raw, out))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", event)
	}
}

// Request emits event and waits for the next payload of reply.
func (c *SocketClient) Request(t *testing.T, event string, payload any, reply string, out any) {
	t.Helper()
	c.Emit(event, payload)
	c.Next(t, reply, out)
}
