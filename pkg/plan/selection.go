package plan

import (
	"errors"
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
)

// Selection is the transitive closure of a set of invoked targets.
//
// Every dependency of a selected task is itself selected, and each task
// appears once no matter how many targets reach it.
type Selection struct {
	graph   *Graph
	targets []domain.TaskID
	member  []bool // by canonical index
	order   []int  // topological, dependencies first
}

// Select computes the closure of targets. Duplicate targets are ignored.
// Unknown targets are all reported, wrapped around domain.ErrUnknownTask.
func (g *Graph) Select(targets ...domain.TaskID) (*Selection, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no target given", domain.ErrUnknownTask)
	}

	s := &Selection{graph: g, member: make([]bool, len(g.nodes))}
	var errs []error
	var queue []int
	seen := make(map[domain.TaskID]struct{}, len(targets))
	for _, id := range targets {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		idx, ok := g.byID[id]
		if !ok {
			errs = append(errs, unknownf("%s", id))
			continue
		}
		s.targets = append(s.targets, id)
		if !s.member[idx] {
			s.member[idx] = true
			queue = append(queue, idx)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, d := range g.deps[u] {
			if !s.member[d] {
				s.member[d] = true
				queue = append(queue, d)
			}
		}
	}

	for _, idx := range g.order {
		if s.member[idx] {
			s.order = append(s.order, idx)
		}
	}
	return s, nil
}

// Graph returns the graph the selection was made from.
func (s *Selection) Graph() *Graph { return s.graph }

// Targets returns the invoked tasks, de-duplicated, in invocation order.
func (s *Selection) Targets() []domain.TaskID {
	return append([]domain.TaskID(nil), s.targets...)
}

// Len returns the number of selected tasks.
func (s *Selection) Len() int { return len(s.order) }

// Contains reports whether id is part of the selection.
func (s *Selection) Contains(id domain.TaskID) bool {
	idx, ok := s.graph.byID[id]
	return ok && s.member[idx]
}

// Tasks returns the selected tasks, dependencies first.
func (s *Selection) Tasks() []domain.TaskID {
	return s.graph.ids(s.order)
}

// Infos returns the introspection view of the selected tasks, dependencies first.
func (s *Selection) Infos() []domain.TaskInfo {
	out := make([]domain.TaskInfo, 0, len(s.order))
	for _, idx := range s.order {
		out = append(out, s.graph.info(s.graph.nodes[idx]))
	}
	return out
}

// Leaves returns the selected primitive tasks, dependencies first.
func (s *Selection) Leaves() []domain.TaskID {
	var out []domain.TaskID
	for _, idx := range s.order {
		if n := s.graph.nodes[idx]; n.Spec.Kind == domain.KindPrimitive {
			out = append(out, n.ID)
		}
	}
	return out
}
