// Package sink delivers scheduler events to their consumers: the log, an
// external UI, or both.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/scheduler"
)

// Sink consumes run events. Handle is called from a single goroutine.
type Sink interface {
	Handle(ev scheduler.Event)
}

// Func adapts a function to a Sink.
type Func func(ev scheduler.Event)

func (f Func) Handle(ev scheduler.Event) { f(ev) }

// Multi fans events out to every sink, in order.
type Multi []Sink

func (m Multi) Handle(ev scheduler.Event) {
	for _, s := range m {
		s.Handle(ev)
	}
}

// Drain hands every event of run to s until the run ends, then returns the
// run's error.
func Drain(run *scheduler.Run, s Sink) error {
	for ev := range run.Events() {
		s.Handle(ev)
	}
	return run.Wait()
}

// LogSink writes events through slog. The scheduler already logs task
// transitions, so those are written at debug level; task output and
// failure tracebacks are written at info and error level.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink logs with the logger carried by ctx.
func NewLogSink(ctx context.Context) *LogSink {
	return &LogSink{Logger: ctxlog.FromContext(ctx)}
}

func (s *LogSink) Handle(ev scheduler.Event) {
	logger := s.Logger.With("run_id", ev.RunID)
	switch ev.Kind {
	case scheduler.EventPlanned:
		logger.Debug("Run planned.", "plan", ev.Plan)
	case scheduler.EventTaskStarted, scheduler.EventTaskFinished:
		logger.Debug("Task event.", "event", ev.Kind.String(), "task", ev.TaskID, "percent", ev.Progress.Percent())
	case scheduler.EventProgress:
		logger.Debug("Progress.", "task", ev.TaskID, "percent", ev.Progress.Percent())
	case scheduler.EventLog:
		logger.Info(ev.Line, "task", ev.TaskID)
	case scheduler.EventFailed:
		var taskErr *scheduler.TaskError
		if errors.As(ev.Err, &taskErr) && taskErr.Traceback != "" {
			logger.Error("❌ Task traceback.", "task", ev.TaskID, "traceback", taskErr.Traceback)
		}
	case scheduler.EventCanceled:
		logger.Debug("Run canceled.", "task", ev.TaskID)
	case scheduler.EventDone:
		logger.Debug("Run done.")
	}
}
