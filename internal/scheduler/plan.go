package scheduler

import (
	"github.com/specialistvlad/bioflow/internal/node"
)

// Plan resets the planned flag of every participating task and returns the
// unexecuted ones in an order where each task follows its participating
// upstream tasks. Upstream tasks that do not participate are ignored.
// Tasks reachable through Upstream are included even if not listed.
func Plan(tasks []node.Task) ([]node.Task, error) {
	universe := participating(tasks)

	var unplanned []node.Task
	for _, t := range universe {
		t.SetPlanned(false)
		if !t.Executed() {
			unplanned = append(unplanned, t)
		}
	}

	plan := make([]node.Task, 0, len(unplanned))
	for len(unplanned) > 0 {
		remaining := unplanned[:0:0]
		for _, t := range unplanned {
			if ready(t) {
				t.SetPlanned(true)
				plan = append(plan, t)
				continue
			}
			remaining = append(remaining, t)
		}
		if len(remaining) == len(unplanned) {
			return nil, &CycleError{Remaining: taskIDs(remaining)}
		}
		unplanned = remaining
	}
	return plan, nil
}

// ready reports whether every participating upstream task is planned or
// executed.
func ready(t node.Task) bool {
	for _, up := range t.Upstream() {
		if !up.Participates() {
			continue
		}
		if !up.Planned() && !up.Executed() {
			return false
		}
	}
	return true
}

// upstreamExecuted reports whether every participating upstream task has
// run.
func upstreamExecuted(t node.Task) bool {
	for _, up := range t.Upstream() {
		if up.Participates() && !up.Executed() {
			return false
		}
	}
	return true
}

// participating returns the participating tasks and their participating
// upstream closure, in first-seen order.
func participating(tasks []node.Task) []node.Task {
	seen := make(map[string]bool)
	var out []node.Task
	var visit func(t node.Task)
	visit = func(t node.Task) {
		if seen[t.ID()] || !t.Participates() {
			return
		}
		seen[t.ID()] = true
		out = append(out, t)
		for _, up := range t.Upstream() {
			visit(up)
		}
	}
	for _, t := range tasks {
		visit(t)
	}
	return out
}

func taskIDs(tasks []node.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID()
	}
	return ids
}
