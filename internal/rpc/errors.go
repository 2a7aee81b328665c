package rpc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrDisconnected reports that the peer went away before replying. Callers
// treat it as "no result" and may relaunch the environment.
var ErrDisconnected = errors.New("rpc: peer disconnected")

// ExecutionError carries an application error raised inside the environment.
type ExecutionError struct {
	Module    string
	Function  string
	Exception string
	Trace     string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s.%s failed: %s", e.Module, e.Function, e.Exception)
}

// Traceback returns the remote traceback.
func (e *ExecutionError) Traceback() string {
	return e.Trace
}

// isDisconnect reports whether err means the connection is gone.
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
