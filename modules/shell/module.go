// Package shell runs commands inside the environment hosting the worker.
package shell

import (
	"context"
	"fmt"

	"github.com/specialistvlad/bioflow/internal/launcher"
	"github.com/specialistvlad/bioflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Runner executes the commands. Defaults to launcher.Shell.
	Runner launcher.CommandRunner
}

// Run executes every string argument as one step of a script and returns the
// combined output. A failing step aborts the rest.
func (m *Module) Run(ctx context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("shell.run needs at least one command")
	}
	commands := make([]string, len(args))
	for i := range args {
		c, err := registry.String(args, i)
		if err != nil {
			return nil, err
		}
		commands[i] = c
	}

	runner := m.Runner
	if runner == nil {
		runner = launcher.Shell
	}
	return runner.Run(ctx, commands, nil)
}

// Register registers the module's functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("shell", "run", m.Run)
}
