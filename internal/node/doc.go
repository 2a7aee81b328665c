// Package node defines the Task contract consumed by the scheduler and
// Node, its standard implementation.
//
// A task carries three flags. Dirty means an upstream value changed and the
// task's own value must be re-derived. Executed records that the task's
// side-effecting action has run. Planned is owned by the scheduler and reset
// at the start of every pass.
package node
