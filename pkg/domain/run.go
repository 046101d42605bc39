package domain

import "time"

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunOptions tune how a selection is executed.
type RunOptions struct {
	// ContinueOnFailure keeps independent work running after a failure.
	// Dependents of the failed task are still skipped.
	ContinueOnFailure bool `json:"continue_on_failure,omitempty"`

	// Parallelism bounds the number of primitive tasks running at once.
	// Zero means "number of CPUs".
	Parallelism int `json:"parallelism,omitempty"`

	// TerminateRunning cancels in-flight tasks on cancellation or fail-fast
	// instead of letting them finish.
	TerminateRunning bool `json:"terminate_running,omitempty"`
}

// RunRecord is the persisted summary of a finished run.
type RunRecord struct {
	ID        string     `json:"id"`
	Workspace string     `json:"workspace,omitempty"`
	Targets   []TaskID   `json:"targets"`
	Options   RunOptions `json:"options"`
	Status    RunStatus  `json:"status"`

	// States holds the final state of every selected task.
	States map[TaskID]TaskState `json:"states"`

	// Order lists tasks in the order they started running.
	Order []TaskID `json:"order,omitempty"`

	// Failures lists failed tasks in the order they failed.
	Failures []TaskID `json:"failures,omitempty"`

	// Causes maps each task skipped because of a failure to the failed tasks
	// it was (transitively) waiting on.
	Causes map[TaskID][]TaskID `json:"causes,omitempty"`

	// Abandoned lists tasks skipped without a failed dependency: work left
	// behind by fail-fast or cancellation.
	Abandoned []TaskID `json:"abandoned,omitempty"`

	// Errors holds the failure message of each failed task.
	Errors map[TaskID]string `json:"errors,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Sealed holds the encrypted record when the store encrypts at rest.
	// Only ID, Status and the timestamps are set alongside it.
	Sealed []byte `json:"sealed,omitempty"`
}

// Duration returns the wall-clock time of the run.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clone returns a deep copy of the record.
func (r *RunRecord) Clone() *RunRecord {
	cp := *r
	cp.Targets = append([]TaskID(nil), r.Targets...)
	cp.Order = append([]TaskID(nil), r.Order...)
	cp.Failures = append([]TaskID(nil), r.Failures...)
	cp.Abandoned = append([]TaskID(nil), r.Abandoned...)
	cp.Sealed = append([]byte(nil), r.Sealed...)
	if r.States != nil {
		cp.States = make(map[TaskID]TaskState, len(r.States))
		for k, v := range r.States {
			cp.States[k] = v
		}
	}
	if r.Causes != nil {
		cp.Causes = make(map[TaskID][]TaskID, len(r.Causes))
		for k, v := range r.Causes {
			cp.Causes[k] = append([]TaskID(nil), v...)
		}
	}
	if r.Errors != nil {
		cp.Errors = make(map[TaskID]string, len(r.Errors))
		for k, v := range r.Errors {
			cp.Errors[k] = v
		}
	}
	return &cp
}
