package launcher

import (
	"context"
	"fmt"
)

// CommandRunner runs a command sequence to completion and returns its output.
type CommandRunner interface {
	Run(ctx context.Context, commands []string, env []string) (string, error)
}

// RunnerFunc adapts a function to the CommandRunner interface.
type RunnerFunc func(ctx context.Context, commands []string, env []string) (string, error)

// Run implements CommandRunner.
func (f RunnerFunc) Run(ctx context.Context, commands []string, env []string) (string, error) {
	return f(ctx, commands, env)
}

// Shell is the CommandRunner backed by real child processes.
var Shell CommandRunner = RunnerFunc(Run)

// Run spawns commands, logs their output at debug level and waits for them.
// Cancelling ctx kills the process tree.
func Run(ctx context.Context, commands []string, env []string) (string, error) {
	child, err := Spawn(ctx, commands, env)
	if err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() { child.Kill() })
	defer stop()

	drain(ctx, child, "Command output.")
	err = child.Wait()
	if ctx.Err() != nil {
		return child.Output(), fmt.Errorf("command cancelled: %w", ctx.Err())
	}
	return child.Output(), err
}
