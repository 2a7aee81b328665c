// Package scheduler plans and executes a graph of tasks.
//
// # How It Works
//
// A run has two phases:
//  1. Planning: the unexecuted participating tasks are scanned repeatedly. A
//     task is planned once every participating upstream task is planned or
//     already executed. A scan that plans nothing means the remaining tasks
//     form a cycle, and the run fails before any task starts.
//  2. Execution: planned tasks run one at a time in plan order. Each task is
//     re-checked before it starts, marked executed when its action succeeds,
//     and the run stops at the first failure.
//
// # Concurrency
//
// Start runs both phases on one background goroutine and reports through an
// event channel, so the caller can apply log lines and progress updates on
// its own goroutine. Cancellation is cooperative: the context is checked
// between tasks, and a task blocked inside an environment is released by
// closing that environment.
//
// # Progress
//
// Progress nests three counters (task, row, step) into one fraction:
//
//	task/tasks + (row/rows)/tasks + (step/steps)/(tasks*rows)
package scheduler
