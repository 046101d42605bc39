package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(kind domain.TaskKind, state domain.TaskState) *domain.TaskEvent {
	return &domain.TaskEvent{
		RunID: "r1",
		Task:  domain.TaskID{Project: "openxr/hello_world", Task: "assembleDebug"},
		Kind:  kind,
		State: state,
	}
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnTaskStart(ctx, event(domain.KindPrimitive, domain.TaskRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running))

	done := event(domain.KindPrimitive, domain.TaskFailed)
	done.Duration = 2 * time.Second
	hooks.OnTaskFinish(ctx, done)
	hooks.OnTaskSkip(ctx, event(domain.KindAggregate, domain.TaskSkipped))
	hooks.OnTaskStart(ctx, event(domain.KindAlias, domain.TaskRunning))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.Running))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("primitive", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("aggregate", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("alias", "running")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestNewMetrics_Unregistered(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnTaskSkip(context.Background(), event(domain.KindPrimitive, domain.TaskSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("primitive", "skipped")))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, slog.LevelDebug, "json")
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	failed := event(domain.KindPrimitive, domain.TaskFailed)
	failed.Error = "exit status 1"
	failed.Duration = time.Second
	hooks.OnTaskFinish(ctx, failed)
	hooks.OnTaskSkip(ctx, event(domain.KindAggregate, domain.TaskSkipped))

	out := buf.String()
	assert.Contains(t, out, `"msg":"task_finish"`)
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"task":"openxr/hello_world:assembleDebug"`)
	assert.Contains(t, out, `"err":"exit status 1"`)
	assert.Contains(t, out, `"msg":"task_skip"`)
}

func TestChainHooks(t *testing.T) {
	m := observability.NewMetrics(nil)
	var calls int
	hooks := domain.ChainHooks(m.Hooks(), domain.LifecycleHooks{
		OnTaskStart: func(context.Context, *domain.TaskEvent) { calls++ },
	})

	hooks.OnTaskStart(context.Background(), event(domain.KindPrimitive, domain.TaskRunning))
	hooks.OnTaskSkip(context.Background(), event(domain.KindPrimitive, domain.TaskSkipped))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running))
}
