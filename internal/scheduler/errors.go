package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected is matched by every *CycleError.
var ErrCycleDetected = errors.New("cycle detected")

// CycleError reports tasks that could not be planned because they depend on
// each other.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among tasks: %s", strings.Join(e.Remaining, ", "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// TaskError is the failure payload of a run: the failing task, a message and
// the traceback when the error carried one.
type TaskError struct {
	TaskID    string
	Message   string
	Traceback string
	Err       error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task '%s' failed: %s", e.TaskID, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type tracebacker interface {
	Traceback() string
}

func newTaskError(taskID string, err error) *TaskError {
	te := &TaskError{TaskID: taskID, Message: err.Error(), Err: err}
	var tb tracebacker
	if errors.As(err, &tb) {
		te.Traceback = tb.Traceback()
	}
	return te
}
