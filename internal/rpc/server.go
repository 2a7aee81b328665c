package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
)

// Dispatcher resolves and invokes module.function inside the environment.
type Dispatcher interface {
	Dispatch(ctx context.Context, module, function string, args []any) (any, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, module, function string, args []any) (any, error)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, module, function string, args []any) (any, error) {
	return f(ctx, module, function, args)
}

// Tracebacker is implemented by errors that carry their own traceback, such
// as the captured output of a failed command.
type Tracebacker interface {
	Traceback() string
}

// Server is the environment side of a channel.
type Server struct {
	dispatcher Dispatcher
	listener   net.Listener
	closeOnce  sync.Once
}

// NewServer creates a server that routes execute requests to d.
func NewServer(d Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Listen binds an ephemeral loopback port.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to bind loopback listener: %w", err)
	}
	s.listener = l
	return nil
}

// Port returns the bound port, or 0 before Listen.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Handshake writes the handshake line announcing the port.
func (s *Server) Handshake(w io.Writer) error {
	if s.listener == nil {
		return errors.New("rpc: handshake before listen")
	}
	_, err := io.WriteString(w, HandshakeLine(s.Port()))
	return err
}

// Serve accepts exactly one connection and handles requests until an exit
// request arrives, the controller disconnects or ctx is cancelled. A
// controller that disconnects is not an error.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("rpc: serve before listen")
	}
	logger := ctxlog.FromContext(ctx)

	stopListener := context.AfterFunc(ctx, s.closeListener)
	conn, err := s.listener.Accept()
	stopListener()
	s.closeListener()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to accept controller connection: %w", err)
	}
	defer conn.Close()
	logger.Debug("Controller connected.", "remote_addr", conn.RemoteAddr().String())

	stopConn := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopConn()

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isDisconnect(err) {
				logger.Info("Controller disconnected.")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		switch msg.Action {
		case ActionExecute:
			reply := s.execute(ctx, msg)
			if err := WriteMessage(conn, reply); err != nil {
				if isDisconnect(err) {
					logger.Info("Controller disconnected before reply.")
					return nil
				}
				return fmt.Errorf("failed to write reply: %w", err)
			}
		case ActionExit:
			logger.Debug("Exit requested.")
			if err := WriteMessage(conn, &Message{Action: ActionExited}); err != nil && !isDisconnect(err) {
				return fmt.Errorf("failed to acknowledge exit: %w", err)
			}
			return nil
		default:
			reply := &Message{Action: ActionError, Exception: fmt.Sprintf("unexpected action %q", msg.Action), Traceback: "(protocol)"}
			if err := WriteMessage(conn, reply); err != nil {
				return nil
			}
		}
	}
}

func (s *Server) closeListener() {
	s.closeOnce.Do(func() { s.listener.Close() })
}

// execute runs one request and converts errors and panics into error replies.
func (s *Server) execute(ctx context.Context, msg *Message) (reply *Message) {
	logger := ctxlog.FromContext(ctx).With("module", msg.Module, "function", msg.Function)
	logger.Debug("Executing request.", "args", len(msg.Args))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Function panicked.", "panic", r)
			reply = &Message{
				Action:    ActionError,
				Exception: fmt.Sprintf("panic: %v", r),
				Traceback: string(debug.Stack()),
			}
		}
	}()

	result, err := s.dispatcher.Dispatch(ctx, msg.Module, msg.Function, msg.Args)
	if err != nil {
		logger.Warn("Function failed.", "error", err)
		exception := err.Error()
		if exception == "" {
			exception = fmt.Sprintf("%T", err)
		}
		return &Message{
			Action:    ActionError,
			Exception: exception,
			Traceback: traceback(err),
		}
	}
	return &Message{Action: ActionExecutionFinished, Result: result}
}

// traceback renders the error chain, followed by the error's own traceback
// when it has one, or by the current stack otherwise.
func traceback(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %s\n", e, e.Error())
	}

	var tb Tracebacker
	if errors.As(err, &tb) && tb.Traceback() != "" {
		b.WriteString("\n")
		b.WriteString(tb.Traceback())
		return b.String()
	}
	b.WriteString("\n")
	b.Write(debug.Stack())
	return b.String()
}
