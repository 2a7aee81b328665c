package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/dag"
	"github.com/specialistvlad/bioflow/internal/deps"
	"github.com/specialistvlad/bioflow/internal/environment"
	"github.com/specialistvlad/bioflow/internal/node"
	"github.com/specialistvlad/bioflow/internal/pipeline"
	"github.com/specialistvlad/bioflow/internal/rpc"
)

// ErrEnvironmentDisconnected is returned when the environment of a task went
// away during the call. The task is not retried.
var ErrEnvironmentDisconnected = errors.New("environment disconnected")

// Environments creates and launches named environments.
type Environments interface {
	CreateAndLaunch(ctx context.Context, name string, spec *deps.Spec, copts environment.CreateOptions, lopts environment.LaunchOptions) (*environment.Environment, error)
}

// Executor runs pipeline tasks and keeps their results.
type Executor struct {
	envs   Environments
	direct rpc.Dispatcher

	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	results  map[string]any
}

// New creates an executor for p. Tasks without an environment are
// dispatched to direct.
func New(p *pipeline.Pipeline, envs Environments, direct rpc.Dispatcher) *Executor {
	return &Executor{
		envs:     envs,
		direct:   direct,
		pipeline: p,
		results:  make(map[string]any),
	}
}

// Pipeline returns the current definitions.
func (e *Executor) Pipeline() *pipeline.Pipeline {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pipeline
}

// Update replaces the definitions used by the next task runs. Results of
// tasks that are no longer defined are dropped.
func (e *Executor) Update(p *pipeline.Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = p
	for id := range e.results {
		if _, ok := p.Task(id); !ok {
			delete(e.results, id)
		}
	}
}

// Graph builds the task graph of the current definitions.
func (e *Executor) Graph() (*dag.Graph, error) {
	return e.Pipeline().Graph(e.Bind)
}

// Bind implements pipeline.Binder. The action looks the task up by id when
// it runs, so definitions changed by Update take effect without rebuilding
// the graph.
func (e *Executor) Bind(t *pipeline.Task) node.Action {
	id := t.ID
	return func(ctx context.Context, r node.Reporter) error {
		return e.run(ctx, id, r)
	}
}

// Result returns the result of the last successful run of task id.
func (e *Executor) Result(id string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.results[id]
	return v, ok
}

// Results returns a copy of every stored result.
func (e *Executor) Results() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.results)
}

func (e *Executor) run(ctx context.Context, id string, r node.Reporter) error {
	p := e.Pipeline()
	t, ok := p.Task(id)
	if !ok {
		return fmt.Errorf("task '%s' is no longer defined", id)
	}
	ctx, logger := ctxlog.With(ctx, "module", t.Module, "function", t.Function)

	args, err := t.ResolveArgs(e.Results())
	if err != nil {
		return err
	}

	r.Steps(0, 1)
	var result any
	if t.Environment == "" {
		if e.direct == nil {
			return fmt.Errorf("task '%s' has no environment and no in-process dispatcher is configured", id)
		}
		logger.Debug("Calling function in-process.")
		result, err = e.direct.Dispatch(ctx, t.Module, t.Function, args)
	} else {
		result, err = e.runInEnvironment(ctx, p, t, args)
	}
	if err != nil {
		return err
	}
	r.Steps(1, 1)

	e.mu.Lock()
	e.results[id] = result
	e.mu.Unlock()

	if result != nil {
		r.Log("result: " + formatResult(result))
	}
	return nil
}

func (e *Executor) runInEnvironment(ctx context.Context, p *pipeline.Pipeline, t *pipeline.Task, args []any) (any, error) {
	def, ok := p.Environment(t.Environment)
	if !ok {
		return nil, fmt.Errorf("task '%s' uses unknown environment '%s'", t.ID, t.Environment)
	}
	env, err := e.envs.CreateAndLaunch(ctx, def.Name, def.Spec,
		environment.CreateOptions{ExtraInstall: def.Install},
		environment.LaunchOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare environment %s: %w", def.Name, err)
	}

	ctxlog.FromContext(ctx).Debug("Calling function.", "env", env.Name, "kind", env.Kind.String())
	result, err := env.Execute(ctx, t.Module, t.Function, args)
	if errors.Is(err, rpc.ErrDisconnected) {
		return nil, fmt.Errorf("%w (%s): %w", ErrEnvironmentDisconnected, env.Name, err)
	}
	return result, err
}

func formatResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
