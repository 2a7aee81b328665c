package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/dag"
	"github.com/specialistvlad/bioflow/internal/executor"
	"github.com/specialistvlad/bioflow/internal/pipeline"
	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/specialistvlad/bioflow/internal/sink"
)

// Report summarizes one run.
type Report struct {
	RunID string
	Plan  []string
	// Results holds the result of every task that has run so far, including
	// earlier runs of the same session.
	Results map[string]any
}

// session is a loaded pipeline with its graph. The executed state of the
// graph carries over between runs of one session.
type session struct {
	exec  *executor.Executor
	graph *dag.Graph
}

func (a *App) load(ctx context.Context) (*pipeline.Pipeline, error) {
	if err := a.config.requirePipeline(); err != nil {
		return nil, err
	}
	p, err := pipeline.Load(ctx, a.config.PipelinePaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	return p, nil
}

func (a *App) newSession(ctx context.Context) (*session, error) {
	p, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	exec := executor.New(p, a.envs, a.tools)
	g, err := exec.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to build task graph: %w", err)
	}
	return &session{exec: exec, graph: g}, nil
}

// Plan loads the pipeline and returns the execution order of its
// participating tasks.
func (a *App) Plan(ctx context.Context) ([]string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	s, err := a.newSession(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := scheduler.Plan(s.graph.Tasks())
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(plan))
	for i, t := range plan {
		ids[i] = t.ID()
	}
	return ids, nil
}

// Run loads the pipeline and executes it once. Cancelling ctx stops the run
// cooperatively.
func (a *App) Run(ctx context.Context) (*Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	s, err := a.newSession(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("🚀 Starting pipeline run...")
	return a.execute(ctx, s)
}

func (a *App) execute(ctx context.Context, s *session) (*Report, error) {
	run := a.newScheduler().Start(ctx, s.graph.Tasks())
	report := &Report{RunID: run.ID}
	err := sink.Drain(run, sink.Multi{a.sinks, sink.Func(func(ev scheduler.Event) {
		if ev.Kind == scheduler.EventPlanned {
			report.Plan = ev.Plan
		}
	})})
	report.Results = s.exec.Results()
	if err != nil {
		return report, err
	}
	a.logger.Info("🏁 Pipeline run finished.", "run_id", run.ID, "tasks", len(report.Plan))
	return report, nil
}
