package runtime

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
)

// ExecutionState maps each task of a run to its current state.
type ExecutionState map[domain.TaskID]domain.TaskState

// Clone returns an independent copy.
func (s ExecutionState) Clone() ExecutionState {
	cp := make(ExecutionState, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// Transition performs a validated transition for a single task.
//
// The caller supplies the expected prior state (from) to make races observable.
// The state map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, id domain.TaskID, from, to domain.TaskState) error {
	cur, ok := state[id]
	if !ok {
		return fmt.Errorf("unknown task in state: %s", id)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %s: expected %s, got %s", id, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %s: %s -> %s", id, from, to)
	}
	state[id] = to
	return nil
}

func isAllowedTransition(from, to domain.TaskState) bool {
	switch from {
	case domain.TaskNotScheduled:
		return to == domain.TaskScheduled || to == domain.TaskSkipped
	case domain.TaskScheduled:
		return to == domain.TaskRunning || to == domain.TaskSkipped
	case domain.TaskRunning:
		return to == domain.TaskSucceeded || to == domain.TaskFailed
	default:
		return false
	}
}

// SkipDependents marks every transitive dependent of failed (within the
// selection) as skipped and records failed as one of its causes.
//
// It returns the tasks that changed state, in breadth-first canonical order.
// Dependents that are already skipped keep their state but still gain the cause.
// A running or finished dependent is an invariant violation: nothing may start
// before its dependencies succeeded.
func SkipDependents(sel *plan.Selection, state ExecutionState, causes map[domain.TaskID][]domain.TaskID, failed domain.TaskID) ([]domain.TaskID, error) {
	g := sel.Graph()
	visited := map[domain.TaskID]bool{failed: true}
	queue := g.Dependents(failed)
	var skipped []domain.TaskID

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] || !sel.Contains(id) {
			continue
		}
		visited[id] = true

		switch st := state[id]; st {
		case domain.TaskNotScheduled, domain.TaskScheduled:
			if err := Transition(state, id, st, domain.TaskSkipped); err != nil {
				return skipped, err
			}
			skipped = append(skipped, id)
		case domain.TaskSkipped:
		default:
			return skipped, fmt.Errorf("invariant violation: dependent %s of failed task %s is %s", id, failed, st)
		}
		causes[id] = appendUnique(causes[id], failed)

		queue = append(queue, g.Dependents(id)...)
	}
	return skipped, nil
}

func appendUnique(list []domain.TaskID, id domain.TaskID) []domain.TaskID {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}
