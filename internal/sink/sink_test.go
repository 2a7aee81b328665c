package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/specialistvlad/bioflow/internal/node"
	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrain_MultiAndLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	a := node.New("a", func(_ context.Context, r node.Reporter) error {
		r.Log("hello from a")
		return nil
	})
	b := node.New("b", func(context.Context, node.Reporter) error {
		return errors.New("boom")
	}).DependsOn(a)

	var kinds []scheduler.EventKind
	run := scheduler.New(nil).Start(context.Background(), []node.Task{a, b})
	err := Drain(run, Multi{
		&LogSink{Logger: logger},
		Func(func(ev scheduler.Event) { kinds = append(kinds, ev.Kind) }),
	})

	var taskErr *scheduler.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "b", taskErr.TaskID)
	assert.Equal(t, scheduler.EventPlanned, kinds[0])
	assert.Equal(t, scheduler.EventFailed, kinds[len(kinds)-1])
	assert.Contains(t, kinds, scheduler.EventLog)

	out := buf.String()
	assert.Contains(t, out, "hello from a")
	assert.Contains(t, out, "task=a")
	assert.NotContains(t, out, "Run planned", "transitions are debug lines")
}

func TestPayload(t *testing.T) {
	testCases := []struct {
		name string
		ev   scheduler.Event
		want map[string]any
	}{
		{
			name: "planned",
			ev:   scheduler.Event{Kind: scheduler.EventPlanned, RunID: "r1", Plan: []string{"a", "b"}},
			want: map[string]any{"kind": "planned", "run_id": "r1", "plan": []string{"a", "b"}},
		},
		{
			name: "progress",
			ev: scheduler.Event{Kind: scheduler.EventProgress, RunID: "r1", TaskID: "a",
				Progress: scheduler.Progress{Task: 1, Tasks: 4}},
			want: map[string]any{"kind": "progress", "run_id": "r1", "task": "a", "progress": 0.25},
		},
		{
			name: "log",
			ev:   scheduler.Event{Kind: scheduler.EventLog, RunID: "r1", TaskID: "a", Line: "x"},
			want: map[string]any{"kind": "log", "run_id": "r1", "task": "a", "line": "x"},
		},
		{
			name: "failed",
			ev: scheduler.Event{Kind: scheduler.EventFailed, RunID: "r1", TaskID: "a",
				Err: &scheduler.TaskError{TaskID: "a", Message: "bad", Traceback: "tb"}},
			want: map[string]any{"kind": "failed", "run_id": "r1", "task": "a",
				"error": "task 'a' failed: bad", "traceback": "tb"},
		},
		{
			name: "canceled",
			ev:   scheduler.Event{Kind: scheduler.EventCanceled, RunID: "r1", Err: context.Canceled},
			want: map[string]any{"kind": "canceled", "run_id": "r1", "error": "context canceled"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Payload(tc.ev))
		})
	}
}

func TestDialSocketIO_Errors(t *testing.T) {
	_, err := DialSocketIO(context.Background(), "localhost:3000", SocketIOOptions{})
	assert.ErrorContains(t, err, "must be absolute")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = DialSocketIO(ctx, "http://127.0.0.1:1", SocketIOOptions{})
	assert.Error(t, err)
}
