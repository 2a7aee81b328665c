package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/bioflow/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence builds n chained tasks; action i is act(i).
func sequence(n int, act func(i int) node.Action) []*node.Node {
	nodes := make([]*node.Node, n)
	for i := range nodes {
		nodes[i] = node.New(fmt.Sprintf("task%d", i+1), act(i))
		if i > 0 {
			nodes[i].DependsOn(nodes[i-1])
		}
	}
	return nodes
}

func collect(r *Run) []Event {
	var events []Event
	for e := range r.Events() {
		events = append(events, e)
	}
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func executedCount(nodes []*node.Node) int {
	n := 0
	for _, t := range nodes {
		if t.Executed() {
			n++
		}
	}
	return n
}

func TestRun_Success(t *testing.T) {
	var order []string
	nodes := sequence(3, func(i int) node.Action {
		return func(ctx context.Context, r node.Reporter) error {
			order = append(order, fmt.Sprintf("task%d", i+1))
			r.Log("working")
			return nil
		}
	})

	run := New(nil).Start(context.Background(), tasksOf(nodes[2], nodes[0], nodes[1]))
	events := collect(run)
	require.NoError(t, run.Wait())
	assert.NotEmpty(t, run.ID)

	assert.Equal(t, []string{"task1", "task2", "task3"}, order)
	assert.Equal(t, 3, executedCount(nodes))
	for _, n := range nodes {
		assert.False(t, n.Dirty())
	}

	assert.Equal(t, EventPlanned, events[0].Kind)
	assert.Equal(t, []string{"task1", "task2", "task3"}, events[0].Plan)
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, 1.0, last.Progress.Fraction())
	for _, e := range events {
		assert.Equal(t, run.ID, e.RunID)
	}
}

func TestRun_CycleRunsNothing(t *testing.T) {
	ran := false
	a := node.New("a", func(context.Context, node.Reporter) error { ran = true; return nil })
	b := node.New("b", func(context.Context, node.Reporter) error { ran = true; return nil }).DependsOn(a)
	a.DependsOn(b)

	run := New(nil).Start(context.Background(), tasksOf(a, b))
	events := collect(run)

	assert.ErrorIs(t, run.Wait(), ErrCycleDetected)
	assert.False(t, ran)
	assert.Equal(t, []EventKind{EventFailed}, kinds(events))
	assert.False(t, a.Executed())
	assert.False(t, b.Executed())
}

func TestRun_CancelAfterSecondTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := 0
	nodes := sequence(5, func(i int) node.Action {
		return func(context.Context, node.Reporter) error {
			started++
			if i == 1 {
				cancel()
			}
			return nil
		}
	})

	run := New(nil).Start(ctx, tasksOf(nodes...))
	events := collect(run)

	assert.ErrorIs(t, run.Wait(), context.Canceled)
	assert.Equal(t, 2, started, "task3 must not begin")
	assert.Equal(t, 2, executedCount(nodes))
	assert.True(t, nodes[1].Executed())
	assert.False(t, nodes[2].Executed())
	assert.Equal(t, EventCanceled, events[len(events)-1].Kind)
}

func TestRun_FailureStopsRun(t *testing.T) {
	nodes := sequence(4, func(i int) node.Action {
		return func(context.Context, node.Reporter) error {
			if i == 2 {
				return tracedError{msg: "out of memory", trace: "line 12 in segment"}
			}
			return nil
		}
	})

	run := New(nil).Start(context.Background(), tasksOf(nodes...))
	events := collect(run)
	err := run.Wait()

	var te *TaskError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "task3", te.TaskID)
	assert.Equal(t, "out of memory", te.Message)
	assert.Equal(t, "line 12 in segment", te.Traceback)
	assert.EqualError(t, err, "task 'task3' failed: out of memory")

	assert.True(t, nodes[0].Executed(), "already executed tasks are left intact")
	assert.True(t, nodes[1].Executed())
	assert.False(t, nodes[2].Executed())
	assert.False(t, nodes[3].Executed())
	assert.Equal(t, EventFailed, events[len(events)-1].Kind)
}

func TestRun_PanicIsTaskError(t *testing.T) {
	n := node.New("boom", func(context.Context, node.Reporter) error { panic("nil image") })

	run := New(nil).Start(context.Background(), tasksOf(n))
	collect(run)

	var te *TaskError
	require.True(t, errors.As(run.Wait(), &te))
	assert.Equal(t, "panic: nil image", te.Message)
	assert.Contains(t, te.Traceback, "goroutine")
}

type fakeEnvs struct {
	mu     sync.Mutex
	closed []string
	onExit func()
}

func (f *fakeEnvs) Exit(_ context.Context, name string) error {
	f.mu.Lock()
	f.closed = append(f.closed, name)
	f.mu.Unlock()
	if f.onExit != nil {
		f.onExit()
	}
	return nil
}

func TestRun_CancelClosesEnvironmentOfRunningTask(t *testing.T) {
	release := make(chan struct{})
	envs := &fakeEnvs{onExit: func() { close(release) }}

	inEnv := make(chan struct{})
	remote := node.New("segment", func(ctx context.Context, _ node.Reporter) error {
		close(inEnv)
		// Blocks like a pending remote call until the environment goes away.
		<-release
		return errors.New("environment disconnected")
	}).WithEnvironment("cellpose")
	after := node.New("measure", nil).DependsOn(remote)

	run := New(envs).Start(context.Background(), tasksOf(remote, after))
	go func() {
		<-inEnv
		run.Cancel()
	}()
	collect(run)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.ErrorIs(t, run.Wait(), context.Canceled)
	assert.Equal(t, []string{"cellpose"}, envs.closed)
	assert.False(t, remote.Executed())
	assert.False(t, after.Executed())
}

func TestRun_ProgressEvents(t *testing.T) {
	n1 := node.New("rows", func(_ context.Context, r node.Reporter) error {
		r.Rows(1, 2)
		r.Steps(1, 2)
		return nil
	})
	n2 := node.New("second", nil).DependsOn(n1)

	run := New(nil).Start(context.Background(), tasksOf(n1, n2))
	var progress []float64
	for e := range run.Events() {
		if e.Kind == EventProgress {
			progress = append(progress, e.Progress.Fraction())
		}
	}
	require.NoError(t, run.Wait())
	// Two tasks: half the rows of the first is 1/4, plus half a step of
	// a half-row is 1/8.
	require.Len(t, progress, 2)
	assert.InDelta(t, 0.25, progress[0], 1e-9)
	assert.InDelta(t, 0.375, progress[1], 1e-9)
}

func TestExecute_DoesNotNeedAConsumer(t *testing.T) {
	nodes := sequence(3, func(int) node.Action {
		return func(_ context.Context, r node.Reporter) error {
			r.Log("line")
			return nil
		}
	})
	require.NoError(t, New(nil).Execute(context.Background(), tasksOf(nodes...)))
	assert.Equal(t, 3, executedCount(nodes))
}

func TestIsCanceled(t *testing.T) {
	assert.True(t, IsCanceled(context.Canceled))
	assert.True(t, IsCanceled(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsCanceled(errors.New("other")))
}

type tracedError struct{ msg, trace string }

func (e tracedError) Error() string     { return e.msg }
func (e tracedError) Traceback() string { return e.trace }
