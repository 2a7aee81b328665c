package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/bioflow/internal/environment"
	"github.com/specialistvlad/bioflow/internal/registry"
	"github.com/specialistvlad/bioflow/internal/testutil"
	"github.com/specialistvlad/bioflow/modules/mathx"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app      *App
	dir      string
	file     string
	logs     *testutil.SafeBuffer
	recorder *testutil.RecorderModule
	runner   *testutil.FakeRunner
	launcher *testutil.InProcessLauncher
}

// setupApp writes content as the only pipeline file and creates an App
// whose environments run in-process.
func setupApp(t *testing.T, content string, extra ...registry.Module) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "micromamba"), nil, 0o755))

	dir := t.TempDir()
	file := filepath.Join(dir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	recorder := &testutil.RecorderModule{}
	modules := append([]registry.Module{&mathx.Module{}, recorder}, extra...)
	tools := registry.New(modules...)
	runner := testutil.NewFakeRunner(testutil.CreatesEnvironments())
	inproc := testutil.NewInProcessLauncher(t, tools)

	cfg, err := NewConfig(Config{
		PipelinePaths: []string{dir},
		Root:          root,
		LogFormat:     "text",
		LogLevel:      "debug",
	})
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	a, err := NewApp(context.Background(), logs, cfg,
		WithModules(modules...),
		WithEnvironmentOptions(environment.WithRunner(runner), environment.WithLauncher(inproc.Launch)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		if os.Getenv("BIOFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return &fixture{app: a, dir: dir, file: file, logs: logs, recorder: recorder, runner: runner, launcher: inproc}
}

func (f *fixture) rewrite(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.file, []byte(content), 0o644))
}
