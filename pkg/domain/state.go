package domain

// TaskState is the runtime state of a task within one run.
type TaskState string

const (
	TaskNotScheduled TaskState = "not_scheduled"
	TaskScheduled    TaskState = "scheduled"
	TaskRunning      TaskState = "running"
	TaskSucceeded    TaskState = "succeeded"
	TaskFailed       TaskState = "failed"
	TaskSkipped      TaskState = "skipped"
)

// IsTerminal reports whether the state is final for a run.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}
