package workspace

import (
	"github.com/aretw0/canopy/pkg/domain"
)

// Include is the edge between a parent project and one of its included builds.
type Include struct {
	// Child is the path of the included project.
	Child string `json:"child"`

	// Tasks maps a parent task name to the child task it aggregates,
	// for children whose task names differ from the parent's.
	Tasks map[string]string `json:"tasks,omitempty"`

	// Aggregate reports whether the child takes part in the parent's aggregate tasks.
	// A detached include is still part of the tree and its tasks can be run directly.
	Aggregate bool `json:"aggregate"`
}

// ChildTask returns the child task aggregated by the parent task name.
func (i Include) ChildTask(parentTask string) string {
	if mapped, ok := i.Tasks[parentTask]; ok {
		return mapped
	}
	return parentTask
}

type projectNode struct {
	project  domain.Project
	parent   int
	children []int
	includes []Include // parallel to children
	tasks    []domain.TaskSpec
	byName   map[string]int
}

// Tree is an immutable arena of projects with indexed children.
//
// It is safe for concurrent read access.
type Tree struct {
	name  string
	nodes []*projectNode
	index map[string]int
	order []int // pre-order, children in declaration order
}

// Name returns the workspace name (the root project name).
func (t *Tree) Name() string { return t.name }

// Len returns the number of projects in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the root project.
func (t *Tree) Root() domain.Project { return t.nodes[0].project }

// Project returns the project at path.
func (t *Tree) Project(path string) (domain.Project, bool) {
	idx, ok := t.index[path]
	if !ok {
		return domain.Project{}, false
	}
	return t.nodes[idx].project, true
}

// Projects returns every project in pre-order.
func (t *Tree) Projects() []domain.Project {
	out := make([]domain.Project, 0, len(t.order))
	for _, idx := range t.order {
		out = append(out, t.nodes[idx].project)
	}
	return out
}

// Children returns the included projects of path, in declaration order.
func (t *Tree) Children(path string) []domain.Project {
	idx, ok := t.index[path]
	if !ok {
		return nil
	}
	out := make([]domain.Project, 0, len(t.nodes[idx].children))
	for _, c := range t.nodes[idx].children {
		out = append(out, t.nodes[c].project)
	}
	return out
}

// Includes returns the include edges of path, in declaration order.
func (t *Tree) Includes(path string) []Include {
	idx, ok := t.index[path]
	if !ok {
		return nil
	}
	out := make([]Include, len(t.nodes[idx].includes))
	for i, inc := range t.nodes[idx].includes {
		out[i] = copyInclude(inc)
	}
	return out
}

// Tasks returns the tasks declared by the project at path, in declaration order.
func (t *Tree) Tasks(path string) []domain.TaskSpec {
	idx, ok := t.index[path]
	if !ok {
		return nil
	}
	out := make([]domain.TaskSpec, len(t.nodes[idx].tasks))
	for i, spec := range t.nodes[idx].tasks {
		out[i] = copySpec(spec)
	}
	return out
}

// Task returns the spec of the task identified by id.
func (t *Tree) Task(id domain.TaskID) (domain.TaskSpec, bool) {
	idx, ok := t.index[id.Project]
	if !ok {
		return domain.TaskSpec{}, false
	}
	n := t.nodes[idx]
	ti, ok := n.byName[id.Task]
	if !ok {
		return domain.TaskSpec{}, false
	}
	return copySpec(n.tasks[ti]), true
}

// TaskIDs returns every task of the tree: projects in pre-order,
// tasks in declaration order.
func (t *Tree) TaskIDs() []domain.TaskID {
	var out []domain.TaskID
	for _, idx := range t.order {
		n := t.nodes[idx]
		for _, spec := range n.tasks {
			out = append(out, domain.TaskID{Project: n.project.Path, Task: spec.Name})
		}
	}
	return out
}

// Walk calls fn for every project in pre-order and stops at the first error.
func (t *Tree) Walk(fn func(domain.Project) error) error {
	for _, idx := range t.order {
		if err := fn(t.nodes[idx].project); err != nil {
			return err
		}
	}
	return nil
}

func copySpec(s domain.TaskSpec) domain.TaskSpec {
	s.Command = append([]string(nil), s.Command...)
	s.Exclusive = append([]string(nil), s.Exclusive...)
	return s
}

func copyInclude(i Include) Include {
	if i.Tasks != nil {
		m := make(map[string]string, len(i.Tasks))
		for k, v := range i.Tasks {
			m[k] = v
		}
		i.Tasks = m
	}
	return i
}
