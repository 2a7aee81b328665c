package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envHCL = `
environment "analysis" {
  python = "3.11"
  conda  = ["samtools"]
  pip    = ["numpy==1.26.4"]

  install "linux-64" {
    commands = ["echo ready"]
  }
}
`

func TestApp_CreateEnvironment(t *testing.T) {
	f := setupApp(t, envHCL)
	ctx := context.Background()

	assert.False(t, f.app.EnvironmentExists("analysis"))

	created, err := f.app.CreateEnvironment(ctx, "analysis")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, f.app.EnvironmentExists("analysis"))
	assert.Equal(t, 1, f.runner.CallsMatching("python=3.11"))
	assert.Equal(t, 1, f.runner.CallsMatching("numpy==1.26.4"))

	// A second create reuses the environment.
	calls := len(f.runner.Calls())
	created, err = f.app.CreateEnvironment(ctx, "analysis")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, f.runner.Calls(), calls)
}

func TestApp_CreateEnvironment_Undeclared(t *testing.T) {
	f := setupApp(t, envHCL)

	_, err := f.app.CreateEnvironment(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment 'missing' is not declared in the pipeline")
}

func TestApp_CallEnvironment(t *testing.T) {
	f := setupApp(t, envHCL)
	ctx := context.Background()

	_, err := f.app.CallEnvironment(ctx, "analysis", "mathx", "add", []any{1, 2})
	require.Error(t, err, "the environment has not been created")

	_, err = f.app.CreateEnvironment(ctx, "analysis")
	require.NoError(t, err)
	got, err := f.app.CallEnvironment(ctx, "analysis", "mathx", "add", []any{1, 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, got)
	assert.Equal(t, 1, f.launcher.Launches())

	names, err := f.app.ExitEnvironments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis"}, names)

	names, err = f.app.ExitEnvironments(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestApp_RemoveEnvironment(t *testing.T) {
	f := setupApp(t, envHCL)
	ctx := context.Background()

	_, err := f.app.CreateEnvironment(ctx, "analysis")
	require.NoError(t, err)
	_, err = f.app.CallEnvironment(ctx, "analysis", "mathx", "add", []any{1, 2})
	require.NoError(t, err)

	require.Error(t, f.app.RemoveEnvironment(ctx, "analysis"), "a launched environment cannot be removed")

	_, err = f.app.ExitEnvironments(ctx)
	require.NoError(t, err)
	require.NoError(t, f.app.RemoveEnvironment(ctx, "analysis"))
	assert.False(t, f.app.EnvironmentExists("analysis"))
	_, err = os.Stat(filepath.Join(f.app.Environments().Config().Root, "envs", "analysis"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, f.app.RemoveEnvironment(ctx, "analysis"), "removing twice is a no-op")
}
