package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// Invocation is everything a TaskRunner needs to execute one primitive task.
type Invocation struct {
	RunID   string
	Task    domain.TaskID
	Spec    domain.TaskSpec
	Project domain.Project
}

// Outcome is the result of a primitive task that could be started.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// TaskRunner executes primitive tasks.
//
// A non-zero ExitCode is a task failure. A non-nil error means the task could
// not be executed at all (missing binary, cancelled context); the executor
// treats both as a failed task.
type TaskRunner interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// TaskRunnerFunc adapts a function to TaskRunner.
type TaskRunnerFunc func(ctx context.Context, inv Invocation) (Outcome, error)

// Run implements TaskRunner.
func (f TaskRunnerFunc) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	return f(ctx, inv)
}
