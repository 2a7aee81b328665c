package main

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/specialistvlad/bioflow/internal/rpc"
	"github.com/specialistvlad/bioflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ServesUntilExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stdoutR, stdoutW := io.Pipe()
	stderr := &testutil.SafeBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, stdoutW, stderr, []string{"-log-level", "debug"})
		stdoutW.Close()
	}()

	line, err := bufio.NewReader(stdoutR).ReadString('\n')
	require.NoError(t, err)
	port, ok := rpc.ParseHandshake(line)
	require.True(t, ok, "unexpected handshake %q", line)

	client, err := rpc.Dial(ctx, port)
	require.NoError(t, err)
	defer client.Close()

	got, err := client.Execute(ctx, "mathx", "add", []any{2, 3})
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)

	_, err = client.Execute(ctx, "mathx", "nope", nil)
	require.Error(t, err)

	require.NoError(t, client.Exit(ctx))
	require.NoError(t, <-done)
	assert.Contains(t, stderr.String(), "Worker listening.")
	assert.NotContains(t, stderr.String(), "\x1b[", "stderr is not a terminal here")
}

func TestRun_InvalidLogLevel(t *testing.T) {
	err := run(context.Background(), io.Discard, io.Discard, []string{"-log-level", "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log-level "loud"`)
}
