package sink

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	server "github.com/zishang520/socket.io/v2/socket"
)

// uiServer hosts a socket.io server that records bioflow events and client
// disconnects.
func uiServer(t *testing.T) (string, <-chan map[string]any, <-chan string) {
	t.Helper()
	events := make(chan map[string]any, 16)
	disconnects := make(chan string, 1)

	io := server.NewServer(nil, nil)
	ts := httptest.NewServer(io.ServeHandler(nil))
	t.Cleanup(func() {
		io.Close(nil)
		ts.Close()
	})

	io.On("connection", func(clients ...any) {
		client := clients[0].(*server.Socket)
		client.On(EventName, func(args ...any) {
			if len(args) == 0 {
				return
			}
			if p, ok := args[0].(map[string]any); ok {
				events <- p
			}
		})
		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				reason, _ = args[0].(string)
			}
			select {
			case disconnects <- reason:
			default:
			}
		})
	})
	return ts.URL, events, disconnects
}

func TestSocketIOSink_HandleAndClose(t *testing.T) {
	url, events, disconnects := uiServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := DialSocketIO(ctx, url, SocketIOOptions{})
	require.NoError(t, err)

	s.Handle(scheduler.Event{Kind: scheduler.EventPlanned, RunID: "r1", Plan: []string{"a", "b"}})
	s.Handle(scheduler.Event{Kind: scheduler.EventLog, RunID: "r1", TaskID: "a", Line: "hello"})

	var got []map[string]any
	for len(got) < 2 {
		select {
		case p := <-events:
			got = append(got, p)
		case <-ctx.Done():
			t.Fatalf("received %d of 2 events", len(got))
		}
	}
	assert.Equal(t, "planned", got[0]["kind"])
	assert.Equal(t, "r1", got[0]["run_id"])
	assert.Equal(t, []any{"a", "b"}, got[0]["plan"])
	assert.Equal(t, "log", got[1]["kind"])
	assert.Equal(t, "a", got[1]["task"])
	assert.Equal(t, "hello", got[1]["line"])

	require.NoError(t, s.Close())
	select {
	case reason := <-disconnects:
		assert.Equal(t, "client namespace disconnect", reason)
	case <-ctx.Done():
		t.Fatal("server never saw the disconnect")
	}

	// Dropped after Close.
	s.Handle(scheduler.Event{Kind: scheduler.EventDone, RunID: "r1"})
	select {
	case p := <-events:
		t.Fatalf("unexpected event after close: %v", p)
	case <-time.After(200 * time.Millisecond):
	}
}
