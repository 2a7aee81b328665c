package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/bioflow/internal/rpc"
	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/specialistvlad/bioflow/internal/sink"
	"github.com/specialistvlad/bioflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diamondHCL = `
environment "analysis" {
  pip = ["scikit-image"]
}

task "load" {
  module   = "record"
  function = "call"
  args     = ["load"]
}

task "left" {
  environment = "analysis"
  module      = "record"
  function    = "call"
  args        = ["left"]
  depends_on  = ["load"]
}

task "right" {
  module     = "mathx"
  function   = "add"
  args       = [1, 2]
  depends_on = ["load"]
}

task "join" {
  environment = "analysis"
  module      = "mathx"
  function    = "sum"
  args        = [task.right.result, 10]
  depends_on  = ["left"]
}

task "preview" {
  module      = "record"
  function    = "call"
  args        = ["preview"]
  depends_on  = ["join"]
  participate = false
}
`

func TestApp_Plan(t *testing.T) {
	f := setupApp(t, diamondHCL)

	plan, err := f.app.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "left", "right", "join"}, plan)
	assert.Empty(t, f.recorder.Order(), "planning runs nothing")
}

func TestApp_PlanCycle(t *testing.T) {
	f := setupApp(t, `
task "a" {
  module     = "record"
  function   = "call"
  args       = ["a"]
  depends_on = ["b"]
}
task "b" {
  module     = "record"
  function   = "call"
  args       = ["b"]
  depends_on = ["a"]
}
`)
	_, err := f.app.Plan(context.Background())
	require.ErrorIs(t, err, scheduler.ErrCycleDetected)

	_, err = f.app.Run(context.Background())
	require.ErrorIs(t, err, scheduler.ErrCycleDetected)
	assert.Empty(t, f.recorder.Order())
}

func TestApp_Run(t *testing.T) {
	f := setupApp(t, diamondHCL)

	report, err := f.app.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"load", "left", "right", "join"}, report.Plan)
	assert.Equal(t, map[string]any{
		"load":  "load",
		"left":  "left",
		"right": 3.0,
		"join":  13.0,
	}, report.Results)
	assert.Equal(t, []string{"load", "left"}, f.recorder.Order())
	assert.Equal(t, 1, f.launcher.Launches(), "tasks share their environment")

	logs := f.logs.String()
	for _, id := range report.Plan {
		testutil.AssertTaskRan(t, logs, id)
	}
	assert.Contains(t, logs, "result: 13")
}

func TestApp_RunFailure(t *testing.T) {
	f := setupApp(t, `
environment "analysis" {}

task "bad" {
  environment = "analysis"
  module      = "mathx"
  function    = "add"
  args        = ["x", 1]
}

task "after" {
  module     = "record"
  function   = "call"
  args       = ["after"]
  depends_on = ["bad"]
}
`)
	report, err := f.app.Run(context.Background())

	var taskErr *scheduler.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "bad", taskErr.TaskID)
	assert.NotEmpty(t, taskErr.Traceback)
	var execErr *rpc.ExecutionError
	assert.True(t, errors.As(err, &execErr))
	assert.Empty(t, f.recorder.Order(), "downstream tasks do not run")
	assert.Equal(t, []string{"bad", "after"}, report.Plan)
	assert.Contains(t, f.logs.String(), "Task traceback")
}

func TestApp_RunCancel(t *testing.T) {
	f := setupApp(t, `
task "first" {
  module   = "record"
  function = "call"
  args     = ["first"]
}
task "second" {
  module     = "record"
  function   = "call"
  args       = ["second"]
  depends_on = ["first"]
}
`)
	f.recorder.Sleep = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := f.app.Run(ctx)

	require.Error(t, err)
	assert.True(t, scheduler.IsCanceled(err), err)
	assert.Equal(t, []string{"first"}, f.recorder.Order())
	rec, ok := f.recorder.Record("first")
	require.True(t, ok)
	assert.GreaterOrEqual(t, rec.End.Sub(rec.Start), 200*time.Millisecond)
	_, ok = f.recorder.Record("second")
	assert.False(t, ok, "the canceled call is not recorded")
}

func TestApp_LoadErrors(t *testing.T) {
	f := setupApp(t, `task "a" {`)
	_, err := f.app.Run(context.Background())
	assert.ErrorContains(t, err, "failed to load pipeline")

	f.app.config.PipelinePaths = nil
	_, err = f.app.Plan(context.Background())
	assert.ErrorContains(t, err, "a pipeline path is required")
}

func TestApp_RunWithSinks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.hcl"), []byte(`
task "one" {
  module   = "mathx"
  function = "add"
  args     = [1, 1]
}
`), 0o644))
	cfg, err := NewConfig(Config{PipelinePaths: []string{dir}, Root: t.TempDir(), LogFormat: "text"})
	require.NoError(t, err)

	var kinds []scheduler.EventKind
	a, err := NewApp(context.Background(), &testutil.SafeBuffer{}, cfg,
		WithSinks(sink.Func(func(ev scheduler.Event) { kinds = append(kinds, ev.Kind) })),
	)
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Results["one"])
	require.NotEmpty(t, kinds)
	assert.Equal(t, scheduler.EventPlanned, kinds[0])
	assert.Equal(t, scheduler.EventDone, kinds[len(kinds)-1])
	assert.Contains(t, kinds, scheduler.EventTaskFinished)
}
