package dag

import (
	"sync"

	"github.com/specialistvlad/bioflow/internal/node"
)

// Graph is a collection of tasks and their dependencies.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all vertices in the graph, keyed by task ID.
	nodes map[string]*vertex
	// order keeps insertion order for deterministic iteration.
	order []string
}

// vertex is a single task in the graph. It is un-exported to enforce
// interaction with the graph via the public API (using string IDs).
type vertex struct {
	task node.Task
	// deps holds the set of vertices that this one depends on (predecessors).
	deps map[string]*vertex
	// dependents holds the set of vertices that depend on this one (successors).
	dependents map[string]*vertex
}
