package rpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

// Client is the controller side of a channel. Calls are serialized: a second
// caller blocks until the first call has its reply.
type Client struct {
	conn   net.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Dial connects to an environment listening on the loopback port.
func Dial(ctx context.Context, port int) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to environment on port %d: %w", port, err)
	}
	return NewClient(conn), nil
}

// Execute calls module.function(args) in the environment and blocks for the
// reply. It returns an *ExecutionError when the function failed remotely and
// ErrDisconnected when the environment went away. Cancelling ctx closes the
// connection, which unblocks the pending read.
func (c *Client) Execute(ctx context.Context, module, function string, args []any) (any, error) {
	reply, err := c.roundTrip(ctx, &Message{
		Action:   ActionExecute,
		Module:   module,
		Function: function,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}

	switch reply.Action {
	case ActionExecutionFinished:
		return reply.Result, nil
	case ActionError:
		return nil, &ExecutionError{
			Module:    module,
			Function:  function,
			Exception: reply.Exception,
			Trace:     reply.Traceback,
		}
	default:
		return nil, fmt.Errorf("rpc: unexpected %q reply to execute", reply.Action)
	}
}

// Exit asks the environment to stop. A peer that is already gone is not an
// error. When another call is in flight the request is skipped, since the
// channel carries one request at a time; the caller is expected to Close.
func (c *Client) Exit(ctx context.Context) error {
	if !c.mu.TryLock() {
		return nil
	}
	defer c.mu.Unlock()

	reply, err := c.roundTripLocked(ctx, &Message{Action: ActionExit})
	if err != nil {
		if err == ErrDisconnected {
			return nil
		}
		return err
	}
	if reply.Action != ActionExited {
		return fmt.Errorf("rpc: unexpected %q reply to exit", reply.Action)
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// Closed reports whether the connection was closed locally or found dead.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

func (c *Client) roundTrip(ctx context.Context, msg *Message) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundTripLocked(ctx, msg)
}

func (c *Client) roundTripLocked(ctx context.Context, msg *Message) (*Message, error) {
	if c.closed.Load() {
		return nil, ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	if err := WriteMessage(c.conn, msg); err != nil {
		return nil, c.fail(ctx, err)
	}
	reply, err := ReadMessage(c.conn)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	return reply, nil
}

// fail classifies a transport error. Disconnects close the client so later
// calls fail fast.
func (c *Client) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.Close()
		return ctxErr
	}
	if isDisconnect(err) {
		c.Close()
		return ErrDisconnected
	}
	return fmt.Errorf("rpc: %w", err)
}
