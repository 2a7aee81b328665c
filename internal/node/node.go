package node

import (
	"context"
	"sync"
)

// Reporter receives progress and log lines from a running task. It is
// provided by the scheduler.
type Reporter interface {
	// Rows reports progress over a tabular batch: current row out of total.
	Rows(current, total int)
	// Steps reports sub-progress within the current row.
	Steps(current, total int)
	// Log forwards one line of task output.
	Log(line string)
}

// Task is the unit the scheduler plans and executes.
type Task interface {
	ID() string
	Upstream() []Task
	Run(ctx context.Context, r Reporter) error
	// Participates reports whether the task is scheduled at all. Tasks that
	// do not participate are ignored by the planner.
	Participates() bool

	Dirty() bool
	SetDirty(bool)
	Executed() bool
	SetExecuted(bool)
	Planned() bool
	SetPlanned(bool)
}

// EnvironmentTask is a Task whose action runs inside a named environment.
// On cancellation the scheduler closes that environment to unblock the call.
type EnvironmentTask interface {
	Task
	Environment() string
}

// Action is the side-effecting body of a Node.
type Action func(ctx context.Context, r Reporter) error

// Node is the standard Task implementation. The zero value is not usable;
// create nodes with New.
type Node struct {
	id          string
	action      Action
	environment string

	mu          sync.RWMutex
	upstream    []Task
	participate bool
	dirty       bool
	executed    bool
	planned     bool
}

// New creates a participating, dirty, unexecuted node.
func New(id string, action Action) *Node {
	return &Node{id: id, action: action, participate: true, dirty: true}
}

// ID returns the node's identifier.
func (n *Node) ID() string {
	return n.id
}

// DependsOn appends upstream tasks.
func (n *Node) DependsOn(tasks ...Task) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.upstream = append(n.upstream, tasks...)
	return n
}

// Upstream returns the tasks this node depends on.
func (n *Node) Upstream() []Task {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Task(nil), n.upstream...)
}

// Run invokes the node's action. A node without an action succeeds.
func (n *Node) Run(ctx context.Context, r Reporter) error {
	if n.action == nil {
		return nil
	}
	return n.action(ctx, r)
}

// WithEnvironment records the environment the action runs in.
func (n *Node) WithEnvironment(name string) *Node {
	n.environment = name
	return n
}

// Environment returns the name set by WithEnvironment.
func (n *Node) Environment() string {
	return n.environment
}

func (n *Node) Participates() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.participate
}

// SetParticipates includes or excludes the node from scheduling.
func (n *Node) SetParticipates(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.participate = v
}

func (n *Node) Dirty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dirty
}

func (n *Node) SetDirty(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dirty = v
}

func (n *Node) Executed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.executed
}

func (n *Node) SetExecuted(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executed = v
}

func (n *Node) Planned() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.planned
}

func (n *Node) SetPlanned(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.planned = v
}
