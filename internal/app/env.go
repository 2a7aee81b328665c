package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/environment"
)

// CreateEnvironment creates the environment name as declared by the
// pipeline. It reports whether a dedicated environment is used; false means
// the main environment already provides the dependencies.
func (a *App) CreateEnvironment(ctx context.Context, name string) (bool, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	p, err := a.load(ctx)
	if err != nil {
		return false, err
	}
	def, ok := p.Environment(name)
	if !ok {
		return false, fmt.Errorf("environment '%s' is not declared in the pipeline", name)
	}
	return a.envs.Create(ctx, name, def.Spec, environment.CreateOptions{ExtraInstall: def.Install})
}

// EnvironmentExists reports whether the environment is present on disk.
func (a *App) EnvironmentExists(name string) bool {
	return a.envs.Exists(name)
}

// CallEnvironment launches an existing environment and calls
// module.function(args) in it.
func (a *App) CallEnvironment(ctx context.Context, name, module, function string, args []any) (any, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	env, err := a.envs.Launch(ctx, name, environment.LaunchOptions{})
	if err != nil {
		return nil, err
	}
	return env.Execute(ctx, module, function, args)
}

// RemoveEnvironment deletes an environment from disk.
func (a *App) RemoveEnvironment(ctx context.Context, name string) error {
	return a.envs.Remove(ctxlog.WithLogger(ctx, a.logger), name)
}

// ExitEnvironments stops every environment launched by this process and
// returns their names.
func (a *App) ExitEnvironments(ctx context.Context) ([]string, error) {
	names := a.envs.List()
	return names, a.envs.ExitAll(ctxlog.WithLogger(ctx, a.logger))
}
