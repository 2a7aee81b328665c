package environment

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/bioflow/internal/launcher"
	"github.com/specialistvlad/bioflow/internal/rpc"
)

// Kind tells how calls reach an environment.
type Kind int

const (
	// Direct environments run tools in the controller process.
	Direct Kind = iota
	// Client environments run tools in a child process over rpc.
	Client
)

func (k Kind) String() string {
	if k == Direct {
		return "direct"
	}
	return "client"
}

// ErrExited is returned by Execute after the environment was exited.
var ErrExited = errors.New("environment has exited")

const (
	exitRequestTimeout = 5 * time.Second
	exitReapTimeout    = 10 * time.Second
)

// Environment is a launched environment. It is owned by the Registry.
type Environment struct {
	Name string
	Kind Kind

	child   *launcher.Child
	client  *rpc.Client
	direct  rpc.Dispatcher
	stopped atomic.Bool
}

// Execute calls module.function(args) in the environment. For Client
// environments a vanished child yields rpc.ErrDisconnected.
func (e *Environment) Execute(ctx context.Context, module, function string, args []any) (any, error) {
	if e.stopped.Load() {
		return nil, ErrExited
	}
	if e.Kind == Direct {
		return e.direct.Dispatch(ctx, module, function, args)
	}
	return e.client.Execute(ctx, module, function, args)
}

// Stopped reports whether exit has been requested.
func (e *Environment) Stopped() bool {
	return e.stopped.Load()
}

// dead reports whether the channel or the child went away without an exit
// request.
func (e *Environment) dead() bool {
	if e.client != nil && e.client.Closed() {
		return true
	}
	if e.child != nil {
		select {
		case <-e.child.Done():
			return true
		default:
		}
	}
	return false
}

// Pid returns the child's process id, or 0 for Direct environments.
func (e *Environment) Pid() int {
	if e.child == nil {
		return 0
	}
	return e.child.Pid()
}

// exit asks the child to stop, closes the channel and kills the process
// tree. Every step is best-effort.
func (e *Environment) exit(ctx context.Context) error {
	if e.stopped.Swap(true) {
		return nil
	}
	var errs []error
	if e.client != nil {
		exitCtx, cancel := context.WithTimeout(ctx, exitRequestTimeout)
		if err := e.client.Exit(exitCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
		e.client.Close()
	}
	if e.child != nil {
		if err := e.child.Kill(); err != nil {
			errs = append(errs, err)
		}
		select {
		case <-e.child.Done():
		case <-time.After(exitReapTimeout):
			errs = append(errs, errors.New("child process did not exit"))
		}
	}
	return errors.Join(errs...)
}
