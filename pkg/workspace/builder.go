package workspace

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// Builder assembles a Tree.
//
// Problems are recorded as they are found and reported together by Build,
// so a single pass surfaces every configuration error.
type Builder struct {
	tree  *Tree
	errs  []error
	built bool
}

// NewBuilder creates a builder whose root project is called name.
func NewBuilder(name string) *Builder {
	root := &projectNode{
		project: domain.Project{Path: domain.RootPath, Name: name, Dir: "."},
		parent:  -1,
		byName:  make(map[string]int),
	}
	return &Builder{
		tree: &Tree{
			name:  name,
			nodes: []*projectNode{root},
			index: map[string]int{domain.RootPath: 0},
		},
	}
}

// Root returns the builder of the root project.
func (b *Builder) Root() *ProjectBuilder {
	return &ProjectBuilder{b: b, idx: 0}
}

// Project returns the builder of an already included project.
func (b *Builder) Project(path string) (*ProjectBuilder, bool) {
	idx, ok := b.tree.index[path]
	if !ok {
		return nil, false
	}
	return &ProjectBuilder{b: b, idx: idx}, true
}

func (b *Builder) fail(project, task string, kind error, format string, args ...any) {
	b.errs = append(b.errs, &ConfigError{
		Project: project,
		Task:    task,
		Kind:    kind,
		Msg:     fmt.Sprintf(format, args...),
	})
}

// Build validates the tree and returns it.
//
// Validation rejects:
//   - aliases whose target is missing or is the alias itself
//   - include mappings for parent tasks that are not aggregates
//   - aggregate tasks whose (mapped) name is missing on an aggregated child
//
// together with every error recorded while building (duplicates, bad names,
// unresolvable includes).
func (b *Builder) Build() (*Tree, error) {
	if b.built {
		return nil, fmt.Errorf("workspace builder already used")
	}
	b.built = true

	t := b.tree
	t.order = t.preOrder()
	for _, idx := range t.order {
		b.validateProject(t.nodes[idx])
	}

	if len(b.errs) > 0 {
		return nil, &AggregateError{Errors: b.errs}
	}
	return t, nil
}

func (b *Builder) validateProject(n *projectNode) {
	p := n.project.Path

	for _, spec := range n.tasks {
		if spec.Kind != domain.KindAlias {
			continue
		}
		if spec.Target == spec.Name {
			b.fail(p, spec.Name, domain.ErrInvalidManifest, "alias points to itself")
			continue
		}
		if _, ok := n.byName[spec.Target]; !ok {
			b.fail(p, spec.Name, domain.ErrUnknownTask, "alias target %q does not exist", spec.Target)
		}
	}

	for i, inc := range n.includes {
		child := b.tree.nodes[n.children[i]]

		parentTasks := make([]string, 0, len(inc.Tasks))
		for from := range inc.Tasks {
			parentTasks = append(parentTasks, from)
		}
		sort.Strings(parentTasks)
		for _, from := range parentTasks {
			ti, ok := n.byName[from]
			if !ok || n.tasks[ti].Kind != domain.KindAggregate {
				b.fail(p, from, domain.ErrUnknownTask,
					"include %q maps %q, which is not an aggregate task of this project", child.project.Name, from)
			}
		}

		if !inc.Aggregate {
			continue
		}
		for _, spec := range n.tasks {
			if spec.Kind != domain.KindAggregate {
				continue
			}
			want := inc.ChildTask(spec.Name)
			if _, ok := child.byName[want]; !ok {
				b.fail(p, spec.Name, domain.ErrUnknownTask,
					"included build %q has no task %q", child.project.Path, want)
			}
		}
	}
}

func (t *Tree) preOrder() []int {
	order := make([]int, 0, len(t.nodes))
	var visit func(int)
	visit = func(idx int) {
		order = append(order, idx)
		for _, c := range t.nodes[idx].children {
			visit(c)
		}
	}
	visit(0)
	return order
}

// ProjectBuilder declares the tasks and includes of one project.
type ProjectBuilder struct {
	b   *Builder
	idx int
}

func (p *ProjectBuilder) node() *projectNode { return p.b.tree.nodes[p.idx] }

// Path returns the project path.
func (p *ProjectBuilder) Path() string { return p.node().project.Path }

// Dir returns the project directory relative to the workspace root.
func (p *ProjectBuilder) Dir() string { return p.node().project.Dir }

// Describe attaches documentation to the project.
func (p *ProjectBuilder) Describe(text string) *ProjectBuilder {
	p.node().project.Description = strings.TrimSpace(text)
	return p
}

// Fail records a configuration error located in this project.
func (p *ProjectBuilder) Fail(kind error, format string, args ...any) {
	p.b.fail(p.Path(), "", kind, format, args...)
}

type includeConfig struct {
	dir      string
	tasks    map[string]string
	detached bool
}

// IncludeOption configures an include edge.
type IncludeOption func(*includeConfig)

// InDir sets the child directory (relative to the workspace root).
// Defaults to the parent directory joined with the child name.
func InDir(dir string) IncludeOption {
	return func(c *includeConfig) { c.dir = dir }
}

// MapTask makes the parent aggregate task parentTask depend on childTask
// instead of the same-named task of the child.
func MapTask(parentTask, childTask string) IncludeOption {
	return func(c *includeConfig) {
		if c.tasks == nil {
			c.tasks = make(map[string]string)
		}
		c.tasks[parentTask] = childTask
	}
}

// Detached includes the child without aggregating it.
func Detached() IncludeOption {
	return func(c *includeConfig) { c.detached = true }
}

// Include adds a child build called name and returns its builder.
func (p *ProjectBuilder) Include(name string, opts ...IncludeOption) *ProjectBuilder {
	parent := p.node()
	cfg := includeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := checkName(name, "/:"); err != "" {
		p.b.fail(parent.project.Path, "", domain.ErrInvalidManifest, "include name %q %s", name, err)
	}

	childPath := domain.ChildPath(parent.project.Path, name)
	if idx, exists := p.b.tree.index[childPath]; exists {
		p.b.fail(parent.project.Path, "", domain.ErrDuplicate, "project %q is included twice", childPath)
		return &ProjectBuilder{b: p.b, idx: idx}
	}

	dir := cfg.dir
	if dir == "" {
		dir = path.Join(parent.project.Dir, name)
	}

	child := &projectNode{
		project: domain.Project{
			Path:   childPath,
			Name:   name,
			Dir:    path.Clean(dir),
			Parent: parent.project.Path,
		},
		parent: p.idx,
		byName: make(map[string]int),
	}
	idx := len(p.b.tree.nodes)
	p.b.tree.nodes = append(p.b.tree.nodes, child)
	p.b.tree.index[childPath] = idx

	parent.children = append(parent.children, idx)
	parent.includes = append(parent.includes, Include{
		Child:     childPath,
		Tasks:     cfg.tasks,
		Aggregate: !cfg.detached,
	})

	return &ProjectBuilder{b: p.b, idx: idx}
}

// TaskOption configures a task declaration.
type TaskOption func(*domain.TaskSpec)

// WithDescription documents the task.
func WithDescription(text string) TaskOption {
	return func(s *domain.TaskSpec) { s.Description = text }
}

// WithGroup sets the task group label.
func WithGroup(group string) TaskOption {
	return func(s *domain.TaskSpec) { s.Group = group }
}

// WithExclusive declares resources the task must hold while running.
func WithExclusive(resources ...string) TaskOption {
	return func(s *domain.TaskSpec) { s.Exclusive = append(s.Exclusive, resources...) }
}

// Primitive declares a task that does real work by running command.
func (p *ProjectBuilder) Primitive(name string, command []string, opts ...TaskOption) *ProjectBuilder {
	return p.add(domain.TaskSpec{
		Name:    name,
		Kind:    domain.KindPrimitive,
		Command: append([]string(nil), command...),
	}, opts)
}

// Aggregate declares a task that depends on the corresponding task of every aggregated child.
func (p *ProjectBuilder) Aggregate(name string, opts ...TaskOption) *ProjectBuilder {
	return p.add(domain.TaskSpec{Name: name, Kind: domain.KindAggregate}, opts)
}

// Alias declares name as an alternate name for target (a task of the same project).
func (p *ProjectBuilder) Alias(name, target string, opts ...TaskOption) *ProjectBuilder {
	spec := domain.TaskSpec{
		Name:        name,
		Kind:        domain.KindAlias,
		Target:      target,
		Description: fmt.Sprintf("Alias for %s", target),
	}
	return p.add(spec, opts)
}

func (p *ProjectBuilder) add(spec domain.TaskSpec, opts []TaskOption) *ProjectBuilder {
	n := p.node()
	for _, opt := range opts {
		opt(&spec)
	}

	if err := checkName(spec.Name, ""); err != "" {
		p.b.fail(n.project.Path, spec.Name, domain.ErrInvalidManifest, "task name %s", err)
		return p
	}
	if _, exists := n.byName[spec.Name]; exists {
		p.b.fail(n.project.Path, spec.Name, domain.ErrDuplicate, "task declared twice")
		return p
	}

	n.byName[spec.Name] = len(n.tasks)
	n.tasks = append(n.tasks, spec)
	return p
}

func checkName(name, forbidden string) string {
	switch {
	case name == "":
		return "is empty"
	case strings.TrimSpace(name) != name:
		return "has surrounding whitespace"
	case forbidden != "" && strings.ContainsAny(name, forbidden):
		return fmt.Sprintf("contains one of %q", forbidden)
	}
	return ""
}
