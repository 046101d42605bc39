package runtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Targets []domain.TaskID

	// States holds the final state of every selected task.
	States ExecutionState

	// Order lists tasks in the order they started, aggregates included.
	Order []domain.TaskID

	// Failures lists failed primitive tasks in the order they failed.
	Failures []domain.TaskID

	// Causes maps each task skipped by failure propagation to the failed
	// tasks it was transitively waiting on.
	Causes map[domain.TaskID][]domain.TaskID

	// Skipped lists the keys of Causes in the order the tasks were skipped.
	Skipped []domain.TaskID

	// Abandoned lists tasks skipped with no failed dependency
	// (stopped by fail-fast or cancellation before they could start).
	Abandoned []domain.TaskID

	Errors  map[domain.TaskID]string
	Outputs map[domain.TaskID]ports.Outcome

	Cancelled bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether every invoked target succeeded.
func (r *Result) Succeeded() bool {
	if r.Cancelled || len(r.Failures) > 0 {
		return false
	}
	for _, t := range r.Targets {
		if r.States[t] != domain.TaskSucceeded {
			return false
		}
	}
	return true
}

// Failed reports whether id failed, either itself or through a failed dependency.
// A skipped aggregate whose subtree contains a failure is reported as failed.
func (r *Result) Failed(id domain.TaskID) bool {
	return r.States[id] == domain.TaskFailed || len(r.Causes[id]) > 0
}

// Cause returns the failed primitive tasks that prevented id from running.
// For a failed task it returns the task itself.
func (r *Result) Cause(id domain.TaskID) []domain.TaskID {
	if r.States[id] == domain.TaskFailed {
		return []domain.TaskID{id}
	}
	return append([]domain.TaskID(nil), r.Causes[id]...)
}

// FirstFailure returns the first task that failed during the run.
func (r *Result) FirstFailure() (domain.TaskID, bool) {
	if len(r.Failures) == 0 {
		return domain.TaskID{}, false
	}
	return r.Failures[0], true
}

// Status summarizes the run.
func (r *Result) Status() domain.RunStatus {
	switch {
	case r.Cancelled:
		return domain.RunCancelled
	case r.Succeeded():
		return domain.RunSucceeded
	default:
		return domain.RunFailed
	}
}

// Err returns nil for a successful run, a *FailureError otherwise.
func (r *Result) Err() error {
	if r.Succeeded() {
		return nil
	}
	fe := &FailureError{
		Failures:  append([]domain.TaskID(nil), r.Failures...),
		Cancelled: r.Cancelled,
	}
	if first, ok := r.FirstFailure(); ok {
		fe.Task = first
		fe.Message = r.Errors[first]
	}
	targets := make(map[domain.TaskID]bool, len(r.Targets))
	for _, t := range r.Targets {
		targets[t] = true
		if r.States[t] != domain.TaskSucceeded {
			fe.Incomplete = append(fe.Incomplete, t)
		}
	}
	for _, id := range r.Skipped {
		if !targets[id] {
			fe.Skipped = append(fe.Skipped, id)
		}
	}
	return fe
}

// Record converts the result into a persistable run record.
func (r *Result) Record(workspace string, opts domain.RunOptions) *domain.RunRecord {
	rec := &domain.RunRecord{
		ID:         r.RunID,
		Workspace:  workspace,
		Targets:    r.Targets,
		Options:    opts,
		Status:     r.Status(),
		States:     r.States.Clone(),
		Order:      r.Order,
		Failures:   r.Failures,
		Abandoned:  r.Abandoned,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if len(r.Causes) > 0 {
		rec.Causes = r.Causes
	}
	if len(r.Errors) > 0 {
		rec.Errors = r.Errors
	}
	return rec.Clone()
}

// FailureError reports a run that did not complete all its targets.
type FailureError struct {
	// Task is the first task that failed (zero when the run was only cancelled).
	Task    domain.TaskID
	Message string

	// Failures lists every failed task.
	Failures []domain.TaskID

	// Skipped lists the tasks abandoned because of a failure, invoked
	// targets excluded.
	Skipped []domain.TaskID

	// Incomplete lists the invoked targets that did not succeed.
	Incomplete []domain.TaskID

	Cancelled bool
}

func (e *FailureError) Error() string {
	var sb strings.Builder
	if len(e.Failures) > 0 {
		fmt.Fprintf(&sb, "task %s failed", e.Task)
		if e.Message != "" {
			sb.WriteString(": ")
			sb.WriteString(e.Message)
		}
		if n := len(e.Failures) - 1; n > 0 {
			fmt.Fprintf(&sb, " (and %d more)", n)
		}
	}
	if e.Cancelled {
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString("run cancelled")
	}
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&sb, "; skipped: %s", joinIDs(e.Skipped))
	}
	if len(e.Incomplete) > 0 {
		fmt.Fprintf(&sb, "; not completed: %s", joinIDs(e.Incomplete))
	}
	return sb.String()
}

func joinIDs(ids []domain.TaskID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return strings.Join(names, ", ")
}
