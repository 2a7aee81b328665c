//go:build !windows

package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/specialistvlad/bioflow/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("success captures output", func(t *testing.T) {
		out, err := Run(ctx, []string{"echo hello", "echo world >&2"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello\nworld\n", out)
	})

	t.Run("extra environment is visible", func(t *testing.T) {
		out, err := Run(ctx, []string{`echo "$BIOFLOW_TEST_VAR"`}, []string{"BIOFLOW_TEST_VAR=42"})
		require.NoError(t, err)
		assert.Equal(t, "42\n", out)
	})

	t.Run("failing step aborts the script", func(t *testing.T) {
		out, err := Run(ctx, []string{"echo before", "sh -c 'exit 3'", "echo after"}, nil)
		var failure *CommandFailure
		require.True(t, errors.As(err, &failure), "got %v", err)
		assert.Equal(t, 3, failure.ExitCode)
		assert.Equal(t, "before\n", failure.Output)
		assert.Equal(t, "before\n", out)
	})

	t.Run("cancel kills the child", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		time.AfterFunc(100*time.Millisecond, cancel)

		start := time.Now()
		_, err := Run(ctx, []string{"sleep 30"}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("script file is removed", func(t *testing.T) {
		out, err := Run(ctx, []string{`echo "$0"`}, nil)
		require.NoError(t, err)
		_, statErr := os.Stat(lastLine(out))
		assert.True(t, os.IsNotExist(statErr), "script %q still exists", lastLine(out))
	})
}

func TestKillTree_TakesDownDescendants(t *testing.T) {
	child, err := Spawn(context.Background(), []string{"sleep 30 & sleep 30"}, nil)
	require.NoError(t, err)
	go func() {
		for range child.Lines() {
		}
	}()

	require.NoError(t, child.Kill())

	select {
	case <-child.Done():
		// Done only closes once the output pipe is closed by every holder,
		// so the background sleep is gone too.
	case <-time.After(10 * time.Second):
		t.Fatal("process tree still alive after KillTree")
	}
	var failure *CommandFailure
	assert.True(t, errors.As(child.Wait(), &failure))
}

func TestLaunch(t *testing.T) {
	t.Run("handshake connects a client", func(t *testing.T) {
		srv := rpc.NewServer(rpc.DispatcherFunc(func(_ context.Context, module, function string, args []any) (any, error) {
			return module + "." + function, nil
		}))
		require.NoError(t, srv.Listen())
		go srv.Serve(context.Background())

		commands := []string{
			"echo warming up",
			fmt.Sprintf("echo 'Listening port %d'", srv.Port()),
			"sleep 30",
		}
		child, client, err := Launch(context.Background(), commands, nil)
		require.NoError(t, err)
		defer child.Kill()
		defer client.Close()

		result, err := client.Execute(context.Background(), "tools", "ping", nil)
		require.NoError(t, err)
		assert.Equal(t, "tools.ping", result)
		assert.Contains(t, child.Output(), "warming up")
	})

	t.Run("exit before handshake reports output", func(t *testing.T) {
		_, _, err := Launch(context.Background(), []string{"echo missing module", "sh -c 'exit 2'"}, nil)
		var failure *CommandFailure
		require.True(t, errors.As(err, &failure), "got %v", err)
		assert.Equal(t, 2, failure.ExitCode)
		assert.Contains(t, failure.Output, "missing module")
	})

	t.Run("clean exit without handshake is a failure", func(t *testing.T) {
		_, _, err := Launch(context.Background(), []string{"echo done"}, nil)
		assert.ErrorContains(t, err, "exited before handshake")
	})

	t.Run("cancel while waiting for handshake", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, _, err := Launch(ctx, []string{"sleep 30"}, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
