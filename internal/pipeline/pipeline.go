package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/bioflow/internal/dag"
	"github.com/specialistvlad/bioflow/internal/deps"
	"github.com/specialistvlad/bioflow/internal/node"
)

// Environment is a named environment declared by a pipeline.
type Environment struct {
	Name string
	Spec *deps.Spec
	// Install holds extra commands run after the dependencies, per platform.
	Install map[deps.Platform][]string
	File    string
}

// Task is one task declaration.
type Task struct {
	ID string
	// Environment is empty for tasks that run in the controller process.
	Environment string
	Module      string
	Function    string
	// Args holds the evaluated args of tasks that use no upstream result.
	Args        []any
	DependsOn   []string
	Participate bool
	File        string

	// refs are the tasks whose results the args use; argsExpr is then
	// evaluated by ResolveArgs.
	refs     []string
	argsExpr hcl.Expression
}

// Pipeline is the merged content of every loaded file.
type Pipeline struct {
	Environments map[string]*Environment
	// Tasks are kept in file order.
	Tasks []*Task
	Files []string

	byID map[string]*Task
}

func newPipeline() *Pipeline {
	return &Pipeline{
		Environments: make(map[string]*Environment),
		byID:         make(map[string]*Task),
	}
}

// Task returns the task declared under id.
func (p *Pipeline) Task(id string) (*Task, bool) {
	t, ok := p.byID[id]
	return t, ok
}

// Environment returns the environment declared under name.
func (p *Pipeline) Environment(name string) (*Environment, bool) {
	e, ok := p.Environments[name]
	return e, ok
}

// TasksInFile returns the ids of the tasks declared in file.
func (p *Pipeline) TasksInFile(file string) []string {
	var ids []string
	for _, t := range p.Tasks {
		if t.File == file {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// TasksUsingEnvironment returns the ids of the tasks running in env.
func (p *Pipeline) TasksUsingEnvironment(env string) []string {
	var ids []string
	for _, t := range p.Tasks {
		if t.Environment == env {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Shape describes the task ids and their dependencies. Two pipelines with
// the same shape produce graphs with the same edges.
func (p *Pipeline) Shape() string {
	lines := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		up := append([]string(nil), t.DependsOn...)
		sort.Strings(up)
		lines = append(lines, t.ID+"<-"+strings.Join(up, ","))
	}
	sort.Strings(lines)
	return strings.Join(lines, ";")
}

// Binder turns a task declaration into the action of its node.
type Binder func(t *Task) node.Action

// Graph builds one node per task, bound with bind, wired by depends_on.
func (p *Pipeline) Graph(bind Binder) (*dag.Graph, error) {
	nodes := make(map[string]*node.Node, len(p.Tasks))
	tasks := make([]node.Task, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		n := node.New(t.ID, bind(t)).WithEnvironment(t.Environment)
		n.SetParticipates(t.Participate)
		nodes[t.ID] = n
		tasks = append(tasks, n)
	}
	for _, t := range p.Tasks {
		for _, up := range t.DependsOn {
			upstream, ok := nodes[up]
			if !ok {
				return nil, fmt.Errorf("task '%s' depends on unknown task '%s'", t.ID, up)
			}
			nodes[t.ID].DependsOn(upstream)
		}
	}
	return dag.FromTasks(tasks)
}
