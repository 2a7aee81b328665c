package app

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/specialistvlad/bioflow/internal/watcher"
)

// Watch runs the pipeline, then re-runs the tasks affected by every edit of
// a pipeline file until ctx is done. Failed runs are logged and do not stop
// watching.
func (a *App) Watch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	a.runLogged(ctx, s)

	w, err := watcher.New(watcher.Options{Dirs: watchDirs(a.config.PipelinePaths)}, func(ctx context.Context, files []string) {
		if a.applyChanges(ctx, s, files) {
			a.runLogged(ctx, s)
		}
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (a *App) runLogged(ctx context.Context, s *session) {
	if _, err := a.execute(ctx, s); err != nil && !scheduler.IsCanceled(err) {
		a.logger.Error("Pipeline run failed; waiting for changes.", "error", err)
	}
}

// applyChanges reloads the pipeline after files changed and invalidates the
// affected tasks. It reports whether anything needs to run. An unloadable
// pipeline keeps the previous definitions.
func (a *App) applyChanges(ctx context.Context, s *session, files []string) bool {
	logger := ctxlog.FromContext(ctx)
	logger.Info("📝 Pipeline files changed.", "files", files)

	p, err := a.load(ctx)
	if err != nil {
		logger.Error("Keeping previous pipeline.", "error", err)
		return false
	}
	old := s.exec.Pipeline()

	// Environments whose dependencies changed are updated in place and
	// relaunched by their next task.
	for name, env := range p.Environments {
		prev, ok := old.Environment(name)
		if !ok || reflect.DeepEqual(prev.Spec, env.Spec) || !a.envs.Exists(name) {
			continue
		}
		logger.Info("Updating environment dependencies.", "env", name)
		if err := a.envs.Exit(ctx, name); err != nil {
			logger.Warn("Failed to exit environment.", "env", name, "error", err)
		}
		if err := a.envs.Install(ctx, name, env.Spec); err != nil {
			logger.Error("Failed to update environment.", "env", name, "error", err)
			return false
		}
	}

	s.exec.Update(p)
	if p.Shape() != old.Shape() {
		g, err := s.exec.Graph()
		if err != nil {
			logger.Error("Keeping previous task graph.", "error", err)
			return false
		}
		logger.Info("Pipeline structure changed; rebuilding task graph.")
		s.graph = g
		return true
	}

	for _, t := range p.Tasks {
		if n, ok := s.graph.Task(t.ID); ok && n.Participates() != t.Participate {
			if ps, ok := n.(interface{ SetParticipates(bool) }); ok {
				ps.SetParticipates(t.Participate)
			}
		}
	}

	var dirty []string
	for _, f := range files {
		dirty = append(dirty, p.TasksInFile(f)...)
		dirty = append(dirty, old.TasksInFile(f)...)
		for name, env := range p.Environments {
			if env.File == f {
				dirty = append(dirty, p.TasksUsingEnvironment(name)...)
			}
		}
	}
	slices.Sort(dirty)
	dirty = slices.Compact(dirty)

	for _, id := range dirty {
		if _, err := s.graph.MarkDirty(id); err != nil {
			logger.Debug("Skipping unknown task.", "task", id)
		}
	}
	logger.Info("Tasks invalidated.", "tasks", dirty)
	return true
}

// watchDirs returns the directories holding the pipeline paths.
func watchDirs(paths []string) []string {
	var dirs []string
	for _, p := range paths {
		dir := p
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			dir, _ = doublestar.SplitPattern(filepath.ToSlash(p))
			dir = filepath.FromSlash(dir)
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
