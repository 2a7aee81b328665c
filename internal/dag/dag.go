package dag

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/bioflow/internal/node"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*vertex),
	}
}

// FromTasks adds every task and an edge for each of its upstream tasks.
// Upstream tasks missing from the list are added as well.
func FromTasks(tasks []node.Task) (*Graph, error) {
	g := New()
	var add func(t node.Task) error
	add = func(t node.Task) error {
		if existing, ok := g.Task(t.ID()); ok {
			if existing != t {
				return fmt.Errorf("duplicate task id '%s'", t.ID())
			}
			return nil
		}
		if err := g.AddTask(t); err != nil {
			return err
		}
		for _, up := range t.Upstream() {
			if err := add(up); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range tasks {
		if err := add(t); err != nil {
			return nil, err
		}
	}
	for _, id := range g.order {
		t := g.nodes[id].task
		for _, up := range t.Upstream() {
			if err := g.AddEdge(up.ID(), t.ID()); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// AddTask adds a task to the graph. Adding a different task under an id that
// is already taken is an error; re-adding the same task does nothing.
func (g *Graph) AddTask(t node.Task) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	id := t.ID()
	if v, ok := g.nodes[id]; ok {
		if v.task != t {
			return fmt.Errorf("duplicate task id '%s'", id)
		}
		return nil
	}

	g.nodes[id] = &vertex{
		task:       t,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
	g.order = append(g.order, id)
	return nil
}

// AddEdge creates a directed edge from the `fromID` task to the `toID` task.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either task does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	to.deps[fromID] = from
	from.dependents[toID] = to

	return nil
}

// Task returns the task registered under id.
func (g *Graph) Task(id string) (node.Task, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return v.task, true
}

// Tasks returns all tasks in insertion order.
func (g *Graph) Tasks() []node.Task {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	tasks := make([]node.Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, g.nodes[id].task)
	}
	return tasks
}

// Dependencies returns the sorted IDs of the tasks the given task depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(n.deps), nil
}

// Dependents returns the sorted IDs of the tasks that depend on the given task.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(n.dependents), nil
}

func sortedKeys(m map[string]*vertex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Use classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("cycle detected involving node '%s'", id)
		}

		temporary[id] = true
		for _, dependent := range sortedKeys(g.nodes[id].dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true

		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate marks the task unexecuted and propagates to every downstream
// task, stopping at tasks that are already unexecuted. It returns the IDs of
// the tasks that changed, starting with id itself.
func (g *Graph) Invalidate(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}

	changed := []string{id}
	v.task.SetExecuted(false)

	var propagate func(v *vertex)
	propagate = func(v *vertex) {
		for _, depID := range sortedKeys(v.dependents) {
			d := v.dependents[depID]
			if !d.task.Executed() {
				continue
			}
			d.task.SetExecuted(false)
			changed = append(changed, depID)
			propagate(d)
		}
	}
	propagate(v)
	return changed, nil
}

// MarkDirty invalidates the task together with everything downstream and
// flags every invalidated task as dirty.
func (g *Graph) MarkDirty(id string) ([]string, error) {
	changed, err := g.Invalidate(id)
	if err != nil {
		return nil, err
	}
	for _, cid := range changed {
		if t, ok := g.Task(cid); ok {
			t.SetDirty(true)
		}
	}
	return changed, nil
}
