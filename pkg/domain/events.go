package domain

import (
	"context"
	"time"
)

// TaskEvent describes a task state change during a run.
type TaskEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Task      TaskID        `json:"task"`
	Kind      TaskKind      `json:"kind"`
	State     TaskState     `json:"state"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// LifecycleHooks defines callbacks for run observability.
// Hooks are invoked from the run coordinator, never concurrently for the same run.
type LifecycleHooks struct {
	OnTaskStart  func(context.Context, *TaskEvent)
	OnTaskFinish func(context.Context, *TaskEvent)
	OnTaskSkip   func(context.Context, *TaskEvent)
}

// ChainHooks merges several hook sets into one that calls each in order.
func ChainHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTaskStart: func(ctx context.Context, e *TaskEvent) {
			for _, s := range sets {
				if s.OnTaskStart != nil {
					s.OnTaskStart(ctx, e)
				}
			}
		},
		OnTaskFinish: func(ctx context.Context, e *TaskEvent) {
			for _, s := range sets {
				if s.OnTaskFinish != nil {
					s.OnTaskFinish(ctx, e)
				}
			}
		},
		OnTaskSkip: func(ctx context.Context, e *TaskEvent) {
			for _, s := range sets {
				if s.OnTaskSkip != nil {
					s.OnTaskSkip(ctx, e)
				}
			}
		},
	}
}
