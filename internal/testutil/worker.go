package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/bioflow/internal/launcher"
	"github.com/specialistvlad/bioflow/internal/rpc"
)

// InProcessLauncher starts an rpc.Server in the test process instead of a
// child and connects to it. It counts launches.
type InProcessLauncher struct {
	t          *testing.T
	dispatcher rpc.Dispatcher
	launches   atomic.Int32

	mu       sync.Mutex
	commands []string
	env      []string
}

// NewInProcessLauncher serves calls with d.
func NewInProcessLauncher(t *testing.T, d rpc.Dispatcher) *InProcessLauncher {
	return &InProcessLauncher{t: t, dispatcher: d}
}

// Launch has the signature of launcher.Launch. The returned child is nil.
func (l *InProcessLauncher) Launch(ctx context.Context, commands []string, env []string) (*launcher.Child, *rpc.Client, error) {
	l.launches.Add(1)
	l.mu.Lock()
	l.commands, l.env = commands, env
	l.mu.Unlock()

	srv := rpc.NewServer(l.dispatcher)
	if err := srv.Listen(); err != nil {
		return nil, nil, err
	}
	serveCtx, cancel := context.WithCancel(context.Background())
	l.t.Cleanup(cancel)
	go srv.Serve(serveCtx)

	client, err := rpc.Dial(ctx, srv.Port())
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return nil, client, nil
}

// Launches returns how many times Launch was called.
func (l *InProcessLauncher) Launches() int {
	return int(l.launches.Load())
}

// Last returns the commands and environment of the last launch.
func (l *InProcessLauncher) Last() (commands, env []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commands, l.env
}
