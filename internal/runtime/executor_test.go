package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rootDebug = tid("", "assembleAllDebug")
	aDebug    = tid("A", "assembleAllDebug")
	bDebug    = tid("B", "assembleAllDebug")
	a1Debug   = tid("A/A1", "assembleAllDebug")
	a2Debug   = tid("A/A2", "assembleAllDebug")
	b1Debug   = tid("B/B1", "assembleAllDebug")
)

func run(t *testing.T, g *plan.Graph, runner ports.TaskRunner, targets []domain.TaskID, opts ...runtime.Option) *runtime.Result {
	t.Helper()
	sel, err := g.Select(targets...)
	require.NoError(t, err)
	exec, err := runtime.NewExecutor(g, runner, opts...)
	require.NoError(t, err)
	res, err := exec.Run(context.Background(), "test-run", sel)
	require.NoError(t, err)
	return res
}

func TestExecutor_Scenario(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner()

	res := run(t, g, runner, []domain.TaskID{rootDebug}, runtime.WithParallelism(4))

	assert.ElementsMatch(t, []domain.TaskID{a1Debug, a2Debug, b1Debug}, runner.Calls())
	assert.True(t, res.Succeeded())
	assert.NoError(t, res.Err())
	assert.Equal(t, domain.RunSucceeded, res.Status())
	for id, st := range res.States {
		assert.Equal(t, domain.TaskSucceeded, st, id.String())
	}

	// A completes after A1 and A2; the root after A and B.
	order := res.Order
	assert.Greater(t, indexOf(order, aDebug), indexOf(order, a1Debug))
	assert.Greater(t, indexOf(order, aDebug), indexOf(order, a2Debug))
	assert.Greater(t, indexOf(order, bDebug), indexOf(order, b1Debug))
	assert.Greater(t, indexOf(order, rootDebug), indexOf(order, aDebug))
	assert.Greater(t, indexOf(order, rootDebug), indexOf(order, bDebug))
}

func TestExecutor_FailFast(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner(a2Debug)

	res := run(t, g, runner, []domain.TaskID{rootDebug}, runtime.WithParallelism(1))

	assert.Equal(t, []domain.TaskID{a1Debug, a2Debug}, runner.Calls())
	assert.Equal(t, domain.TaskSucceeded, res.States[a1Debug])
	assert.Equal(t, domain.TaskFailed, res.States[a2Debug])
	assert.Equal(t, domain.TaskSkipped, res.States[aDebug])
	assert.Equal(t, domain.TaskSkipped, res.States[rootDebug])

	// Independent work never started.
	assert.Equal(t, domain.TaskSkipped, res.States[b1Debug])
	assert.Equal(t, domain.TaskSkipped, res.States[bDebug])
	assert.ElementsMatch(t, []domain.TaskID{b1Debug, bDebug}, res.Abandoned)
	assert.False(t, res.Failed(b1Debug))

	assert.True(t, res.Failed(rootDebug))
	assert.Equal(t, []domain.TaskID{a2Debug}, res.Cause(rootDebug))
	assert.Equal(t, []domain.TaskID{a2Debug}, res.Cause(aDebug))
	assert.Equal(t, domain.RunFailed, res.Status())

	var fe *runtime.FailureError
	require.ErrorAs(t, res.Err(), &fe)
	assert.Equal(t, a2Debug, fe.Task)
	assert.Equal(t, "exit status 1", fe.Message)
	assert.Equal(t, []domain.TaskID{rootDebug}, fe.Incomplete)
	assert.Equal(t, []domain.TaskID{aDebug}, fe.Skipped)
	assert.Equal(t,
		"task A/A2:assembleAllDebug failed: exit status 1; skipped: A:assembleAllDebug; not completed: :assembleAllDebug",
		fe.Error())
	assert.Equal(t, "A/A2:assembleAllDebug broke\n", string(res.Outputs[a2Debug].Stderr))
}

func TestExecutor_ContinueOnFailure(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner(a2Debug)

	res := run(t, g, runner, []domain.TaskID{rootDebug},
		runtime.WithParallelism(1), runtime.WithContinueOnFailure(true))

	assert.ElementsMatch(t, []domain.TaskID{a1Debug, a2Debug, b1Debug}, runner.Calls())
	assert.Equal(t, domain.TaskSucceeded, res.States[b1Debug])
	assert.Equal(t, domain.TaskSucceeded, res.States[bDebug])
	assert.Equal(t, domain.TaskSkipped, res.States[aDebug])
	assert.Equal(t, domain.TaskSkipped, res.States[rootDebug])
	assert.Empty(t, res.Abandoned)

	assert.True(t, res.Failed(rootDebug))
	assert.False(t, res.Failed(bDebug))
	assert.Equal(t, []domain.TaskID{a2Debug}, res.Cause(rootDebug))
	assert.Error(t, res.Err())
}

func TestExecutor_NoDependentEverSucceedsAfterFailure(t *testing.T) {
	g := scenarioGraph(t)
	for _, failing := range []domain.TaskID{a1Debug, a2Debug, b1Debug} {
		for _, cont := range []bool{false, true} {
			res := run(t, g, newFakeRunner(failing), []domain.TaskID{tid("", "buildAll")},
				runtime.WithParallelism(3), runtime.WithContinueOnFailure(cont))

			assert.False(t, res.Succeeded())
			assert.True(t, res.Failed(tid("", "buildAll")))
			for _, id := range g.Dependents(failing) {
				assert.Equal(t, domain.TaskSkipped, res.States[id], "%s with %s failing", id, failing)
			}
		}
	}
}

func TestExecutor_AliasEquivalence(t *testing.T) {
	g := scenarioGraph(t)

	direct := newFakeRunner(b1Debug)
	viaTarget := run(t, g, direct, []domain.TaskID{rootDebug}, runtime.WithContinueOnFailure(true))

	aliased := newFakeRunner(b1Debug)
	viaAlias := run(t, g, aliased, []domain.TaskID{tid("", "buildAll")}, runtime.WithContinueOnFailure(true))

	assert.ElementsMatch(t, direct.Calls(), aliased.Calls())
	assert.Equal(t, viaTarget.Status(), viaAlias.Status())
	assert.Equal(t, viaTarget.Cause(rootDebug), viaAlias.Cause(tid("", "buildAll")))
}

func TestExecutor_CleanIsIdempotent(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner()

	first := run(t, g, runner, []domain.TaskID{tid("", "cleanAll")})
	second := run(t, g, runner, []domain.TaskID{tid("", "cleanAll")})

	assert.True(t, first.Succeeded())
	assert.True(t, second.Succeeded())
	assert.Equal(t, first.States, second.States)
	assert.Len(t, runner.Calls(), 6)
}

func TestExecutor_EachLeafRunsOnce(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner()

	res := run(t, g, runner, []domain.TaskID{rootDebug, aDebug, tid("", "buildAll"), a1Debug},
		runtime.WithParallelism(8))

	assert.True(t, res.Succeeded())
	assert.ElementsMatch(t, []domain.TaskID{a1Debug, a2Debug, b1Debug}, runner.Calls())
}

func TestExecutor_ParallelismBound(t *testing.T) {
	b := workspace.NewBuilder("wide")
	root := b.Root().Aggregate("build")
	for _, name := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"} {
		root.Include(name).Primitive("build", []string{"true"})
	}
	tree, err := b.Build()
	require.NoError(t, err)
	g, err := plan.Compile(tree)
	require.NoError(t, err)

	runner := newFakeRunner()
	runner.hook = func(ctx context.Context, inv ports.Invocation) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	res := run(t, g, runner, []domain.TaskID{tid("", "build")}, runtime.WithParallelism(3))
	assert.True(t, res.Succeeded())
	assert.Len(t, runner.Calls(), 8)
	assert.LessOrEqual(t, runner.Peak(), 3)
	assert.Greater(t, runner.Peak(), 1)
}

func TestExecutor_ExclusiveResources(t *testing.T) {
	g := scenarioGraph(t, workspace.WithExclusive("adb-device"))

	var mu sync.Mutex
	holding, overlap := 0, false
	runner := newFakeRunner()
	runner.hook = func(ctx context.Context, inv ports.Invocation) error {
		if len(inv.Spec.Exclusive) == 0 {
			return nil
		}
		mu.Lock()
		holding++
		if holding > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		holding--
		mu.Unlock()
		return nil
	}

	res := run(t, g, runner, []domain.TaskID{rootDebug}, runtime.WithParallelism(4))
	assert.True(t, res.Succeeded())
	assert.False(t, overlap, "tasks sharing an exclusive resource overlapped")
}

func TestExecutor_RunnerErrorFailsTask(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner()
	runner.hook = func(ctx context.Context, inv ports.Invocation) error {
		if inv.Task == b1Debug {
			return errors.New("executable not found")
		}
		return nil
	}

	res := run(t, g, runner, []domain.TaskID{bDebug})
	assert.Equal(t, domain.TaskFailed, res.States[b1Debug])
	assert.Equal(t, "executable not found", res.Errors[b1Debug])
	assert.Equal(t, []domain.TaskID{b1Debug}, res.Cause(bDebug))
}

func TestExecutor_Cancellation(t *testing.T) {
	g := scenarioGraph(t)

	started := make(chan struct{})
	release := make(chan struct{})
	runner := newFakeRunner()
	runner.hook = func(ctx context.Context, inv ports.Invocation) error {
		close(started)
		<-release
		return nil
	}

	sel, err := g.Select(rootDebug)
	require.NoError(t, err)
	exec, err := runtime.NewExecutor(g, runner, runtime.WithParallelism(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	resCh := make(chan *runtime.Result, 1)
	go func() {
		res, err := exec.Run(ctx, "cancel-run", sel)
		assert.NoError(t, err)
		resCh <- res
	}()

	<-started
	cancel()
	close(release)

	var res *runtime.Result
	select {
	case res = <-resCh:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	// The running task was allowed to finish; nothing else started.
	assert.Equal(t, []domain.TaskID{a1Debug}, runner.Calls())
	assert.Equal(t, domain.TaskSucceeded, res.States[a1Debug])
	for _, id := range []domain.TaskID{a2Debug, b1Debug, aDebug, bDebug, rootDebug} {
		assert.Equal(t, domain.TaskSkipped, res.States[id], id.String())
	}
	assert.True(t, res.Cancelled)
	assert.Equal(t, domain.RunCancelled, res.Status())

	var fe *runtime.FailureError
	require.ErrorAs(t, res.Err(), &fe)
	assert.True(t, fe.Cancelled)
}

func TestExecutor_TerminateRunning(t *testing.T) {
	g := scenarioGraph(t)

	started := make(chan struct{})
	runner := newFakeRunner()
	runner.hook = func(ctx context.Context, inv ports.Invocation) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	sel, err := g.Select(aDebug)
	require.NoError(t, err)
	exec, err := runtime.NewExecutor(g, runner,
		runtime.WithParallelism(1), runtime.WithTerminateRunning(true))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res, err := exec.Run(ctx, "terminate-run", sel)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskFailed, res.States[a1Debug])
	assert.Equal(t, context.Canceled.Error(), res.Errors[a1Debug])
	assert.Equal(t, domain.TaskSkipped, res.States[a2Debug])
	assert.Equal(t, domain.RunCancelled, res.Status())
}

func TestExecutor_AlreadyCancelled(t *testing.T) {
	g := scenarioGraph(t)
	runner := newFakeRunner()
	sel, err := g.Select(rootDebug)
	require.NoError(t, err)
	exec, err := runtime.NewExecutor(g, runner)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := exec.Run(ctx, "r", sel)
	require.NoError(t, err)

	assert.Empty(t, runner.Calls())
	assert.Len(t, res.Abandoned, sel.Len())
	assert.True(t, res.Cancelled)
}

func TestExecutor_Hooks(t *testing.T) {
	g := scenarioGraph(t)
	var starts, finishes, skips int
	var failedEvent *domain.TaskEvent
	hooks := domain.LifecycleHooks{
		OnTaskStart: func(ctx context.Context, e *domain.TaskEvent) { starts++ },
		OnTaskFinish: func(ctx context.Context, e *domain.TaskEvent) {
			finishes++
			if e.State == domain.TaskFailed {
				failedEvent = e
			}
		},
		OnTaskSkip: func(ctx context.Context, e *domain.TaskEvent) { skips++ },
	}

	res := run(t, g, newFakeRunner(a2Debug), []domain.TaskID{rootDebug},
		runtime.WithParallelism(1), runtime.WithHooks(hooks), runtime.WithContinueOnFailure(true))

	// A1, A2, B1 and B start; A and the root are skipped.
	assert.Equal(t, 4, starts)
	assert.Equal(t, 4, finishes)
	assert.Equal(t, 2, skips)
	require.NotNil(t, failedEvent)
	assert.Equal(t, a2Debug, failedEvent.Task)
	assert.Equal(t, "test-run", failedEvent.RunID)
	assert.Equal(t, "exit status 1", failedEvent.Error)

	rec := res.Record("root", domain.RunOptions{ContinueOnFailure: true})
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, []domain.TaskID{a2Debug}, rec.Causes[rootDebug])
	assert.Equal(t, "root", rec.Workspace)
}

func TestNewExecutor_RejectsForeignSelection(t *testing.T) {
	g1 := scenarioGraph(t)
	g2 := scenarioGraph(t)
	sel, err := g2.Select(rootDebug)
	require.NoError(t, err)

	exec, err := runtime.NewExecutor(g1, newFakeRunner())
	require.NoError(t, err)
	_, err = exec.Run(context.Background(), "r", sel)
	assert.Error(t, err)

	_, err = runtime.NewExecutor(nil, newFakeRunner())
	assert.Error(t, err)
	_, err = runtime.NewExecutor(g1, nil)
	assert.Error(t, err)
}
