package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/canopy/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that log every task event to logger.
// Primitive tasks log at Info, aggregates and aliases at Debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	log := func(msg string) func(context.Context, *domain.TaskEvent) {
		return func(ctx context.Context, e *domain.TaskEvent) {
			level := slog.LevelDebug
			switch {
			case e.State == domain.TaskFailed:
				level = slog.LevelError
			case e.Kind == domain.KindPrimitive:
				level = slog.LevelInfo
			}
			attrs := []slog.Attr{
				slog.String("run_id", e.RunID),
				slog.String("task", e.Task.String()),
				slog.String("kind", string(e.Kind)),
				slog.String("state", string(e.State)),
			}
			if e.Duration > 0 {
				attrs = append(attrs, slog.Duration("duration", e.Duration))
			}
			if e.Error != "" {
				attrs = append(attrs, slog.String("error", e.Error))
			}
			logger.LogAttrs(ctx, level, msg, attrs...)
		}
	}
	return domain.LifecycleHooks{
		OnTaskStart:  log("task_start"),
		OnTaskFinish: log("task_finish"),
		OnTaskSkip:   log("task_skip"),
	}
}
