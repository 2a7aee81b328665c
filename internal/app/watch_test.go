package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainHCL = `
environment "analysis" {
  pip = ["numpy"]
}

task "a" {
  module   = "record"
  function = "call"
  args     = ["a"]
}

task "b" {
  environment = "analysis"
  module      = "record"
  function    = "call"
  args        = ["b"]
  depends_on  = ["a"]
}

task "c" {
  module     = "record"
  function   = "call"
  args       = ["c"]
  depends_on = ["b"]
}
`

func TestApplyChanges_ArgsEdit(t *testing.T) {
	f := setupApp(t, chainHCL)
	ctx := f.app.Context()
	s, err := f.app.newSession(ctx)
	require.NoError(t, err)
	_, err = f.app.execute(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, f.recorder.Order())

	f.rewrite(t, strings.Replace(chainHCL, `args     = ["a"]`, `args     = ["a2"]`, 1))
	require.True(t, f.app.applyChanges(ctx, s, []string{f.file}))

	report, err := f.app.execute(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, report.Plan, "every task of the edited file reruns")
	assert.Equal(t, []string{"a", "b", "c", "a2", "b", "c"}, f.recorder.Order())
}

func TestApplyChanges_OtherFileIsUntouched(t *testing.T) {
	f := setupApp(t, chainHCL)
	extra := filepath.Join(f.dir, "extra.hcl")
	require.NoError(t, os.WriteFile(extra, []byte(`
task "d" {
  module     = "record"
  function   = "call"
  args       = ["d"]
  depends_on = ["c"]
}
`), 0o644))

	ctx := f.app.Context()
	s, err := f.app.newSession(ctx)
	require.NoError(t, err)
	_, err = f.app.execute(ctx, s)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(extra, []byte(`
task "d" {
  module     = "record"
  function   = "call"
  args       = ["d2"]
  depends_on = ["c"]
}
`), 0o644))
	require.True(t, f.app.applyChanges(ctx, s, []string{extra}))

	report, err := f.app.execute(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, report.Plan)
	assert.Equal(t, []string{"a", "b", "c", "d", "d2"}, f.recorder.Order())
}

func TestApplyChanges_StructureChange(t *testing.T) {
	f := setupApp(t, chainHCL)
	ctx := f.app.Context()
	s, err := f.app.newSession(ctx)
	require.NoError(t, err)
	_, err = f.app.execute(ctx, s)
	require.NoError(t, err)
	before := s.graph

	f.rewrite(t, chainHCL+`
task "d" {
  module     = "record"
  function   = "call"
  args       = ["d"]
  depends_on = ["a"]
}
`)
	require.True(t, f.app.applyChanges(ctx, s, []string{f.file}))
	assert.NotSame(t, before, s.graph)

	report, err := f.app.execute(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, report.Plan)
}

func TestApplyChanges_InvalidEditKeepsPipeline(t *testing.T) {
	f := setupApp(t, chainHCL)
	ctx := f.app.Context()
	s, err := f.app.newSession(ctx)
	require.NoError(t, err)
	_, err = f.app.execute(ctx, s)
	require.NoError(t, err)
	before := s.exec.Pipeline()

	f.rewrite(t, `task "a" {`)
	assert.False(t, f.app.applyChanges(ctx, s, []string{f.file}))
	assert.Same(t, before, s.exec.Pipeline())
	assert.Contains(t, f.logs.String(), "Keeping previous pipeline.")
}

func TestApplyChanges_EnvironmentSpec(t *testing.T) {
	f := setupApp(t, chainHCL)
	ctx := f.app.Context()
	s, err := f.app.newSession(ctx)
	require.NoError(t, err)
	_, err = f.app.execute(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 1, f.launcher.Launches())

	f.rewrite(t, strings.Replace(chainHCL, `pip = ["numpy"]`, `pip = ["numpy", "pandas"]`, 1))
	require.True(t, f.app.applyChanges(ctx, s, []string{f.file}))
	assert.Equal(t, 1, f.runner.CallsMatching("pandas"), "new dependencies are installed")

	_, err = f.app.execute(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, f.launcher.Launches(), "the environment is relaunched")
}

func TestWatch_RerunsOnEdit(t *testing.T) {
	f := setupApp(t, chainHCL)

	ctx, cancel := context.WithCancel(f.app.Context())
	done := make(chan error, 1)
	go func() { done <- f.app.Watch(ctx) }()

	require.Eventually(t, func() bool { return len(f.recorder.Order()) == 3 }, 5*time.Second, 20*time.Millisecond)
	// Let the watcher register the directory.
	time.Sleep(200 * time.Millisecond)

	f.rewrite(t, strings.Replace(chainHCL, `args       = ["c"]`, `args       = ["c2"]`, 1))
	require.Eventually(t, func() bool {
		order := f.recorder.Order()
		return len(order) > 3 && order[len(order)-1] == "c2"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchDirs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "p.hcl")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Equal(t, []string{dir}, watchDirs([]string{dir, file, filepath.Join(dir, "**", "*.hcl")}))
}
