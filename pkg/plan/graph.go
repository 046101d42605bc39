package plan

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workspace"
)

// Node is a compiled task.
type Node struct {
	ID      domain.TaskID
	Spec    domain.TaskSpec
	Project domain.Project

	index int
}

// Edge is a dependency: From cannot start before To has succeeded.
type Edge struct {
	From domain.TaskID `json:"from"`
	To   domain.TaskID `json:"to"`
}

// Graph is an immutable, validated task DAG.
//
// Canonical node order is the tree's pre-order with tasks in declaration
// order. Every ordering the graph returns is derived from it, so repeated
// compilations of the same tree answer identically.
//
// It is safe for concurrent read access.
type Graph struct {
	tree  *workspace.Tree
	nodes []*Node
	byID  map[domain.TaskID]int

	deps       [][]int // by canonical index, sorted ascending
	dependents [][]int // by canonical index, sorted ascending

	order []int // topological, dependencies first
	depth []int // by canonical index
}

// Compile builds the task graph of tree.
//
// Compilation rejects:
//   - aggregate tasks whose corresponding child task does not exist
//   - aliases whose target does not exist
//   - any cycle (only alias chains can produce one), reported with a witness path
func Compile(tree *workspace.Tree) (*Graph, error) {
	if tree == nil {
		return nil, fmt.Errorf("nil workspace tree")
	}

	ids := tree.TaskIDs()
	g := &Graph{
		tree:       tree,
		nodes:      make([]*Node, 0, len(ids)),
		byID:       make(map[domain.TaskID]int, len(ids)),
		deps:       make([][]int, len(ids)),
		dependents: make([][]int, len(ids)),
	}
	for i, id := range ids {
		spec, _ := tree.Task(id)
		project, _ := tree.Project(id.Project)
		g.nodes = append(g.nodes, &Node{ID: id, Spec: spec, Project: project, index: i})
		g.byID[id] = i
	}

	for _, n := range g.nodes {
		targets, err := g.edgesOf(n)
		if err != nil {
			return nil, err
		}
		seen := make(map[int]struct{}, len(targets))
		for _, to := range targets {
			if _, dup := seen[to]; dup {
				continue
			}
			seen[to] = struct{}{}
			g.deps[n.index] = append(g.deps[n.index], to)
			g.dependents[to] = append(g.dependents[to], n.index)
		}
	}
	for i := range g.deps {
		sort.Ints(g.deps[i])
		sort.Ints(g.dependents[i])
	}

	g.order = g.topoOrderIndices()
	if len(g.order) != len(g.nodes) {
		return nil, cycleError(g.findCycle())
	}
	g.depth = g.computeDepth()
	return g, nil
}

func (g *Graph) edgesOf(n *Node) ([]int, error) {
	switch n.Spec.Kind {
	case domain.KindAggregate:
		var out []int
		for _, inc := range g.tree.Includes(n.ID.Project) {
			if !inc.Aggregate {
				continue
			}
			child := domain.TaskID{Project: inc.Child, Task: inc.ChildTask(n.ID.Task)}
			idx, ok := g.byID[child]
			if !ok {
				return nil, unknownf("%s aggregates %s, which does not exist", n.ID, child)
			}
			out = append(out, idx)
		}
		return out, nil
	case domain.KindAlias:
		target := domain.TaskID{Project: n.ID.Project, Task: n.Spec.Target}
		idx, ok := g.byID[target]
		if !ok {
			return nil, unknownf("alias %s points to %s, which does not exist", n.ID, target)
		}
		if idx == n.index {
			return nil, cycleError([]domain.TaskID{n.ID, n.ID})
		}
		return []int{idx}, nil
	default:
		return nil, nil
	}
}

// topoOrderIndices returns a deterministic topological ordering of node
// indices, dependencies first. The ready queue is a min-heap by canonical index.
func (g *Graph) topoOrderIndices() []int {
	pending := make([]int, len(g.nodes))
	ready := &intMinHeap{}
	for i := range g.nodes {
		pending[i] = len(g.deps[i])
		if pending[i] == 0 {
			*ready = append(*ready, i)
		}
	}
	heap.Init(ready)

	out := make([]int, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, d := range g.dependents[n] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return out
}

// findCycle extracts one stable cycle witness with a DFS over canonical indices.
func (g *Graph) findCycle() []domain.TaskID {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.nodes))
	var stack []int
	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.deps[u] {
			switch color[v] {
			case white:
				if dfs(v) {
					return true
				}
			case gray:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append(cycle, stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]domain.TaskID, len(cycle))
	for i, idx := range cycle {
		out[i] = g.nodes[idx].ID
	}
	return out
}

// computeDepth is the length of the longest dependency chain below each node.
// Primitive tasks have depth 0.
func (g *Graph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for _, u := range g.order {
		for _, d := range g.deps[u] {
			if depth[d]+1 > depth[u] {
				depth[u] = depth[d] + 1
			}
		}
	}
	return depth
}

// Tree returns the workspace the graph was compiled from.
func (g *Graph) Tree() *workspace.Tree { return g.tree }

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the compiled task identified by id.
func (g *Graph) Node(id domain.TaskID) (Node, bool) {
	idx, ok := g.byID[id]
	if !ok {
		return Node{}, false
	}
	return *g.nodes[idx], true
}

// Has reports whether id is a task of the graph.
func (g *Graph) Has(id domain.TaskID) bool {
	_, ok := g.byID[id]
	return ok
}

// Resolve parses a task reference and checks that it names a task.
// References without a project ("buildAll") resolve against the root.
func (g *Graph) Resolve(ref string) (domain.TaskID, error) {
	id, err := domain.ParseTaskID(ref)
	if err != nil {
		return domain.TaskID{}, err
	}
	if !g.Has(id) {
		if _, ok := g.tree.Project(id.Project); !ok {
			return domain.TaskID{}, fmt.Errorf("%w: %q in %s", domain.ErrUnknownProject, id.Project, id)
		}
		return domain.TaskID{}, fmt.Errorf("%w: %s", domain.ErrUnknownTask, id)
	}
	return id, nil
}

// IDs returns every task in canonical order.
func (g *Graph) IDs() []domain.TaskID {
	out := make([]domain.TaskID, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.ID
	}
	return out
}

// TopologicalOrder returns every task, dependencies first.
func (g *Graph) TopologicalOrder() []domain.TaskID {
	return g.ids(g.order)
}

// Depth returns the length of the longest dependency chain below id.
func (g *Graph) Depth(id domain.TaskID) (int, bool) {
	idx, ok := g.byID[id]
	if !ok {
		return 0, false
	}
	return g.depth[idx], true
}

// Dependencies returns the direct dependencies of id in canonical order.
func (g *Graph) Dependencies(id domain.TaskID) []domain.TaskID {
	idx, ok := g.byID[id]
	if !ok {
		return nil
	}
	return g.ids(g.deps[idx])
}

// Dependents returns the tasks that directly depend on id, in canonical order.
func (g *Graph) Dependents(id domain.TaskID) []domain.TaskID {
	idx, ok := g.byID[id]
	if !ok {
		return nil
	}
	return g.ids(g.dependents[idx])
}

// Edges returns every dependency edge, ordered by (From, To) canonical index.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, deps := range g.deps {
		for _, to := range deps {
			out = append(out, Edge{From: g.nodes[from].ID, To: g.nodes[to].ID})
		}
	}
	return out
}

// Leaves returns the primitive tasks reachable from id, in topological order.
// Invoking id runs exactly these.
func (g *Graph) Leaves(id domain.TaskID) ([]domain.TaskID, error) {
	sel, err := g.Select(id)
	if err != nil {
		return nil, err
	}
	return sel.Leaves(), nil
}

// Infos returns the introspection view of every task in canonical order.
func (g *Graph) Infos() []domain.TaskInfo {
	out := make([]domain.TaskInfo, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, g.info(n))
	}
	return out
}

func (g *Graph) info(n *Node) domain.TaskInfo {
	return domain.TaskInfo{
		ID:           n.ID,
		Kind:         n.Spec.Kind,
		Description:  n.Spec.Description,
		Group:        n.Spec.Group,
		Dependencies: g.ids(g.deps[n.index]),
	}
}

func (g *Graph) ids(indices []int) []domain.TaskID {
	if len(indices) == 0 {
		return nil
	}
	out := make([]domain.TaskID, len(indices))
	for i, idx := range indices {
		out[i] = g.nodes[idx].ID
	}
	return out
}
