package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event carrying run events.
const EventName = "bioflow:event"

const connectTimeout = 15 * time.Second

// SocketIOOptions configure DialSocketIO.
type SocketIOOptions struct {
	Namespace          string
	InsecureSkipVerify bool
}

// SocketIOSink forwards events to a UI process hosting a socket.io server.
type SocketIOSink struct {
	io *socket.Socket
}

// DialSocketIO connects to the socket.io server at rawURL over websocket.
func DialSocketIO(ctx context.Context, rawURL string, opts SocketIOOptions) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse UI URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("UI URL %q must be absolute", rawURL)
	}

	sopts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		sopts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	io := manager.Socket(opts.Namespace, sopts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		select {
		case connected <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connected <- err:
		default:
		}
	})

	logger.Debug("Connecting to UI.")
	io.Connect()

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		logger.Info("Connected to UI.", "sid", io.Id())
		return &SocketIOSink{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}
}

// Handle emits ev as a Payload. Events are dropped while disconnected.
func (s *SocketIOSink) Handle(ev scheduler.Event) {
	if !s.io.Connected() {
		return
	}
	s.io.Emit(EventName, Payload(ev))
}

// Close disconnects from the UI.
func (s *SocketIOSink) Close() error {
	s.io.Disconnect()
	return nil
}

// Payload is the JSON-shaped form of an event sent to the UI.
func Payload(ev scheduler.Event) map[string]any {
	p := map[string]any{
		"kind":   ev.Kind.String(),
		"run_id": ev.RunID,
	}
	if ev.TaskID != "" {
		p["task"] = ev.TaskID
	}
	switch ev.Kind {
	case scheduler.EventPlanned:
		p["plan"] = ev.Plan
	case scheduler.EventTaskStarted, scheduler.EventTaskFinished, scheduler.EventProgress, scheduler.EventDone:
		p["progress"] = ev.Progress.Fraction()
	case scheduler.EventLog:
		p["line"] = ev.Line
	case scheduler.EventFailed, scheduler.EventCanceled:
		if ev.Err != nil {
			p["error"] = ev.Err.Error()
		}
		var taskErr *scheduler.TaskError
		if errors.As(ev.Err, &taskErr) {
			p["traceback"] = taskErr.Traceback
		}
	}
	return p
}
