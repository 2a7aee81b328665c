package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/node"
)

// EnvironmentCloser shuts down a named environment. The scheduler uses it to
// release a task blocked on a remote call when the run is cancelled.
type EnvironmentCloser interface {
	Exit(ctx context.Context, name string) error
}

// Scheduler starts runs over task graphs.
type Scheduler struct {
	envs EnvironmentCloser
}

// New creates a scheduler. envs may be nil when no task runs in an
// environment.
func New(envs EnvironmentCloser) *Scheduler {
	return &Scheduler{envs: envs}
}

// Run is one planning and execution pass.
type Run struct {
	ID string

	events *queue
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	mu       sync.Mutex
	progress Progress
}

// Start plans and executes tasks on a background goroutine. The caller must
// drain Events until it is closed.
func (s *Scheduler) Start(ctx context.Context, tasks []node.Task) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		ID:     uuid.NewString(),
		events: newQueue(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ctx, _ = ctxlog.With(ctx, "run_id", r.ID)

	go func() {
		defer close(r.done)
		defer r.events.close()
		defer cancel()
		r.err = s.execute(ctx, r, tasks)
	}()
	return r
}

// Execute runs tasks to completion, logging events instead of streaming
// them.
func (s *Scheduler) Execute(ctx context.Context, tasks []node.Task) error {
	r := s.Start(ctx, tasks)
	logger := ctxlog.FromContext(ctx).With("run_id", r.ID)
	for e := range r.Events() {
		if e.Kind == EventLog {
			logger.Info(e.Line, "task", e.TaskID)
		}
	}
	return r.Wait()
}

// Events streams the run's notifications. The channel is closed after the
// terminal event.
func (r *Run) Events() <-chan Event {
	return r.events.out
}

// Wait blocks until the run ends and returns nil, the context error on
// cancellation, a *CycleError, or a *TaskError.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Done is closed when the run ends.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel requests cooperative cancellation.
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) emit(e Event) {
	e.RunID = r.ID
	r.events.push(e)
}

func (s *Scheduler) execute(ctx context.Context, r *Run, tasks []node.Task) error {
	logger := ctxlog.FromContext(ctx)

	plan, err := Plan(tasks)
	if err != nil {
		logger.Error("Planning failed.", "error", err)
		r.emit(Event{Kind: EventFailed, Err: err})
		return err
	}
	ids := taskIDs(plan)
	logger.Info("Execution planned.", "tasks", len(plan))
	logger.Debug("Execution order.", "plan", ids)
	r.emit(Event{Kind: EventPlanned, Plan: ids})

	for i, t := range plan {
		if err := ctx.Err(); err != nil {
			logger.Info("Run cancelled.", "executed", i, "planned", len(plan))
			r.emit(Event{Kind: EventCanceled, Err: err})
			return err
		}
		if !upstreamExecuted(t) {
			logger.Warn("Skipping task with unexecuted upstream.", "task", t.ID())
			continue
		}

		r.setProgress(Progress{Task: i, Tasks: len(plan)})
		r.emit(Event{Kind: EventTaskStarted, TaskID: t.ID(), Progress: r.snapshot()})

		if err := s.runTask(ctx, r, t); err != nil {
			if ctx.Err() != nil {
				logger.Info("Run cancelled while a task was running.", "task", t.ID())
				r.emit(Event{Kind: EventCanceled, TaskID: t.ID(), Err: ctx.Err()})
				return ctx.Err()
			}
			te := newTaskError(t.ID(), err)
			logger.Error("Task failed.", "task", t.ID(), "error", err)
			r.emit(Event{Kind: EventFailed, TaskID: t.ID(), Err: te})
			return te
		}

		t.SetExecuted(true)
		t.SetDirty(false)
		r.setProgress(Progress{Task: i + 1, Tasks: len(plan)})
		r.emit(Event{Kind: EventTaskFinished, TaskID: t.ID(), Progress: r.snapshot()})
	}

	logger.Info("Run finished.", "executed", len(plan))
	r.emit(Event{Kind: EventDone, Progress: r.snapshot()})
	return nil
}

// runTask invokes the task's action. A panic becomes an error carrying the
// stack. Cancellation closes the task's environment, if any.
func (s *Scheduler) runTask(ctx context.Context, r *Run, t node.Task) (err error) {
	ctx, logger := ctxlog.With(ctx, "task", t.ID())
	logger.Info("▶️ Running task")

	if et, ok := t.(node.EnvironmentTask); ok && s.envs != nil && et.Environment() != "" {
		env := et.Environment()
		stop := context.AfterFunc(ctx, func() {
			logger.Info("Closing environment of cancelled task.", "env", env)
			if err := s.envs.Exit(context.WithoutCancel(ctx), env); err != nil {
				logger.Warn("Failed to close environment.", "env", env, "error", err)
			}
		})
		defer stop()
	}

	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: string(debug.Stack())}
		}
	}()

	if err := t.Run(ctx, &reporter{run: r, taskID: t.ID()}); err != nil {
		return err
	}
	logger.Info("✅ Task finished")
	return nil
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func (e *panicError) Traceback() string {
	return e.stack
}

func (r *Run) setProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}

func (r *Run) snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// reporter implements node.Reporter for one task of a run.
type reporter struct {
	run    *Run
	taskID string
}

func (rp *reporter) Rows(current, total int) {
	rp.run.mu.Lock()
	rp.run.progress.Row, rp.run.progress.Rows = current, total
	rp.run.progress.Step, rp.run.progress.Steps = 0, 0
	p := rp.run.progress
	rp.run.mu.Unlock()
	rp.run.emit(Event{Kind: EventProgress, TaskID: rp.taskID, Progress: p})
}

func (rp *reporter) Steps(current, total int) {
	rp.run.mu.Lock()
	rp.run.progress.Step, rp.run.progress.Steps = current, total
	p := rp.run.progress
	rp.run.mu.Unlock()
	rp.run.emit(Event{Kind: EventProgress, TaskID: rp.taskID, Progress: p})
}

func (rp *reporter) Log(line string) {
	rp.run.emit(Event{Kind: EventLog, TaskID: rp.taskID, Line: line})
}

// IsCanceled reports whether err ended a run through cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
