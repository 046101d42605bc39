package runtime

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"sort"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/aretw0/canopy/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultLockTTL bounds how long an exclusive resource stays held if its holder dies.
const DefaultLockTTL = 30 * time.Minute

// Executor runs selections of one task graph.
type Executor struct {
	graph  *plan.Graph
	runner ports.TaskRunner

	parallelism       int
	continueOnFailure bool
	terminateRunning  bool

	locker  ports.Locker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithParallelism bounds the number of primitive tasks running at once.
// Values below 1 mean runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(e *Executor) { e.parallelism = n }
}

// WithContinueOnFailure keeps independent work running after a failure.
func WithContinueOnFailure(enabled bool) Option {
	return func(e *Executor) { e.continueOnFailure = enabled }
}

// WithTerminateRunning cancels in-flight tasks when the run stops early
// (fail-fast or cancellation) instead of letting them finish.
func WithTerminateRunning(enabled bool) Option {
	return func(e *Executor) { e.terminateRunning = enabled }
}

// WithRunOptions applies the run options of a request.
func WithRunOptions(o domain.RunOptions) Option {
	return func(e *Executor) {
		e.parallelism = o.Parallelism
		e.continueOnFailure = o.ContinueOnFailure
		e.terminateRunning = o.TerminateRunning
	}
}

// WithLocker sets the locker guarding exclusive resources.
func WithLocker(locker ports.Locker, ttl time.Duration) Option {
	return func(e *Executor) {
		e.locker = locker
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) { e.hooks = hooks }
}

// WithLogger configures a logger for run events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor for graph.
func NewExecutor(graph *plan.Graph, runner ports.TaskRunner, opts ...Option) (*Executor, error) {
	if graph == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}
	e := &Executor{
		graph:   graph,
		runner:  runner,
		locker:  memory.NewLocker(),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallelism < 1 {
		e.parallelism = goruntime.NumCPU()
	}
	return e, nil
}

type workItem struct {
	id  domain.TaskID
	inv ports.Invocation
}

type workResult struct {
	id       domain.TaskID
	outcome  ports.Outcome
	err      error
	duration time.Duration
}

// run is the coordinator-owned state of one execution.
type run struct {
	e     *Executor
	ctx   context.Context
	sel   *plan.Selection
	id    string
	res   *Result
	ready *readyQueue

	pos       map[domain.TaskID]int
	remaining map[domain.TaskID]int

	stopping bool
}

// Run executes sel under runID and blocks until every selected task reached
// a terminal state.
//
// Task failures and cancellation are reported through the Result; the
// returned error is reserved for invariant violations.
func (e *Executor) Run(ctx context.Context, runID string, sel *plan.Selection) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if sel == nil || sel.Graph() != e.graph {
		return nil, fmt.Errorf("selection does not belong to the executor graph")
	}

	r := &run{
		e:   e,
		ctx: ctx,
		sel: sel,
		id:  runID,
		res: &Result{
			RunID:     runID,
			Targets:   sel.Targets(),
			States:    make(ExecutionState, sel.Len()),
			Causes:    make(map[domain.TaskID][]domain.TaskID),
			Errors:    make(map[domain.TaskID]string),
			Outputs:   make(map[domain.TaskID]ports.Outcome),
			StartedAt: e.now(),
		},
		ready:     &readyQueue{},
		pos:       make(map[domain.TaskID]int, sel.Len()),
		remaining: make(map[domain.TaskID]int, sel.Len()),
	}

	tasks := sel.Tasks()
	for i, id := range tasks {
		r.pos[id] = i
		r.res.States[id] = domain.TaskNotScheduled
	}
	for _, id := range tasks {
		if err := Transition(r.res.States, id, domain.TaskNotScheduled, domain.TaskScheduled); err != nil {
			return nil, err
		}
		deps := e.graph.Dependencies(id)
		r.remaining[id] = len(deps)
		if len(deps) == 0 {
			heap.Push(r.ready, r.pos[id])
		}
	}

	e.logger.InfoContext(ctx, "run started",
		"run_id", runID, "targets", len(r.res.Targets), "tasks", len(tasks), "parallelism", e.parallelism)

	err := r.loop(tasks)
	r.res.FinishedAt = e.now()
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "run finished",
		"run_id", runID, "status", r.res.Status(), "failures", len(r.res.Failures),
		"duration", r.res.FinishedAt.Sub(r.res.StartedAt))
	return r.res, nil
}

func (r *run) loop(tasks []domain.TaskID) error {
	e := r.e

	// In-flight tasks keep running after cancellation unless asked to terminate.
	var workCtx context.Context
	var cancelWork context.CancelFunc
	if e.terminateRunning {
		workCtx, cancelWork = context.WithCancel(r.ctx)
	} else {
		workCtx, cancelWork = context.WithCancel(context.WithoutCancel(r.ctx))
	}
	defer cancelWork()

	workCh := make(chan workItem, e.parallelism)
	doneCh := make(chan workResult, e.parallelism)

	var workers errgroup.Group
	for i := 0; i < e.parallelism; i++ {
		workers.Go(func() error {
			for w := range workCh {
				doneCh <- r.execute(workCtx, w)
			}
			return nil
		})
	}
	stopWorkers := func() {
		close(workCh)
		_ = workers.Wait()
	}

	done := r.ctx.Done()
	inFlight := 0
	for {
		if done != nil && r.ctx.Err() != nil {
			r.cancel(cancelWork)
			done = nil
		}

		for !r.stopping && r.ready.Len() > 0 {
			id := tasks[(*r.ready)[0]]
			node, _ := e.graph.Node(id)

			if node.Spec.Kind != domain.KindPrimitive {
				heap.Pop(r.ready)
				if err := r.completeInline(id, node); err != nil {
					stopWorkers()
					return err
				}
				continue
			}
			if inFlight >= e.parallelism {
				break
			}

			heap.Pop(r.ready)
			if err := Transition(r.res.States, id, domain.TaskScheduled, domain.TaskRunning); err != nil {
				stopWorkers()
				return err
			}
			r.res.Order = append(r.res.Order, id)
			r.emitStart(id, node.Spec.Kind)
			inFlight++
			workCh <- workItem{id: id, inv: ports.Invocation{
				RunID:   r.id,
				Task:    id,
				Spec:    node.Spec,
				Project: node.Project,
			}}
		}

		if inFlight == 0 {
			break
		}

		select {
		case <-done:
			r.cancel(cancelWork)
			done = nil
		case res := <-doneCh:
			inFlight--
			if err := r.finish(res, cancelWork); err != nil {
				stopWorkers()
				return err
			}
		}
	}
	stopWorkers()

	// Whatever is still scheduled was left behind by fail-fast or cancellation.
	for _, id := range tasks {
		if r.res.States[id] == domain.TaskScheduled {
			r.abandon(id)
		}
	}
	return nil
}

// execute runs on a worker goroutine.
func (r *run) execute(ctx context.Context, w workItem) workResult {
	start := r.e.now()
	unlock, err := r.lockResources(ctx, w.inv.Spec.Exclusive)
	if err != nil {
		return workResult{id: w.id, err: err, duration: r.e.now().Sub(start)}
	}
	defer unlock()

	out, err := r.e.runner.Run(ctx, w.inv)
	return workResult{id: w.id, outcome: out, err: err, duration: r.e.now().Sub(start)}
}

// lockResources acquires every exclusive resource in sorted order, so two
// tasks sharing several resources cannot deadlock.
func (r *run) lockResources(ctx context.Context, resources []string) (func(), error) {
	if len(resources) == 0 {
		return func() {}, nil
	}
	keys := append([]string(nil), resources...)
	sort.Strings(keys)

	var unlocks []ports.UnlockFunc
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			if err := unlocks[i](context.WithoutCancel(ctx)); err != nil {
				r.e.logger.Warn("failed to release resource", "run_id", r.id, "err", err)
			}
		}
	}
	for i, key := range keys {
		if i > 0 && key == keys[i-1] {
			continue
		}
		unlock, err := r.e.locker.Lock(ctx, key, r.e.lockTTL)
		if err != nil {
			release()
			return nil, fmt.Errorf("acquire resource %q: %w", key, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func (r *run) completeInline(id domain.TaskID, node plan.Node) error {
	if err := Transition(r.res.States, id, domain.TaskScheduled, domain.TaskRunning); err != nil {
		return err
	}
	r.res.Order = append(r.res.Order, id)
	r.emitStart(id, node.Spec.Kind)
	if err := Transition(r.res.States, id, domain.TaskRunning, domain.TaskSucceeded); err != nil {
		return err
	}
	r.emit(r.e.hooks.OnTaskFinish, id, node.Spec.Kind, domain.TaskSucceeded, 0, "")
	r.release(id)
	return nil
}

func (r *run) finish(res workResult, cancelWork context.CancelFunc) error {
	e := r.e
	node, _ := e.graph.Node(res.id)
	r.res.Outputs[res.id] = res.outcome

	msg := ""
	switch {
	case res.err != nil:
		msg = res.err.Error()
	case res.outcome.ExitCode != 0:
		msg = fmt.Sprintf("exit status %d", res.outcome.ExitCode)
	}

	if msg == "" {
		if err := Transition(r.res.States, res.id, domain.TaskRunning, domain.TaskSucceeded); err != nil {
			return err
		}
		e.logger.DebugContext(r.ctx, "task succeeded", "run_id", r.id, "task", res.id.String(), "duration", res.duration)
		r.emit(e.hooks.OnTaskFinish, res.id, node.Spec.Kind, domain.TaskSucceeded, res.duration, "")
		if !r.stopping {
			r.release(res.id)
		}
		return nil
	}

	if err := Transition(r.res.States, res.id, domain.TaskRunning, domain.TaskFailed); err != nil {
		return err
	}
	r.res.Failures = append(r.res.Failures, res.id)
	r.res.Errors[res.id] = msg
	e.logger.WarnContext(r.ctx, "task failed", "run_id", r.id, "task", res.id.String(), "err", msg)
	r.emit(e.hooks.OnTaskFinish, res.id, node.Spec.Kind, domain.TaskFailed, res.duration, msg)

	skipped, err := SkipDependents(r.sel, r.res.States, r.res.Causes, res.id)
	r.res.Skipped = append(r.res.Skipped, skipped...)
	for _, id := range skipped {
		n, _ := e.graph.Node(id)
		r.emit(e.hooks.OnTaskSkip, id, n.Spec.Kind, domain.TaskSkipped, 0, "")
	}
	if err != nil {
		return err
	}

	if !e.continueOnFailure && !r.stopping {
		r.stop(cancelWork)
	}
	return nil
}

// release decrements the pending count of the dependents of a succeeded task.
func (r *run) release(id domain.TaskID) {
	for _, d := range r.e.graph.Dependents(id) {
		if !r.sel.Contains(d) {
			continue
		}
		r.remaining[d]--
		if r.remaining[d] == 0 && r.res.States[d] == domain.TaskScheduled {
			heap.Push(r.ready, r.pos[d])
		}
	}
}

// stop prevents any further task from starting.
func (r *run) stop(cancelWork context.CancelFunc) {
	r.stopping = true
	*r.ready = (*r.ready)[:0]
	if r.e.terminateRunning {
		cancelWork()
	}
}

func (r *run) cancel(cancelWork context.CancelFunc) {
	r.res.Cancelled = true
	r.e.logger.WarnContext(context.WithoutCancel(r.ctx), "run cancelled", "run_id", r.id, "err", r.ctx.Err())
	r.stop(cancelWork)
}

func (r *run) abandon(id domain.TaskID) {
	_ = Transition(r.res.States, id, domain.TaskScheduled, domain.TaskSkipped)
	r.res.Abandoned = append(r.res.Abandoned, id)
	n, _ := r.e.graph.Node(id)
	r.emit(r.e.hooks.OnTaskSkip, id, n.Spec.Kind, domain.TaskSkipped, 0, "")
}

func (r *run) emitStart(id domain.TaskID, kind domain.TaskKind) {
	r.e.logger.DebugContext(r.ctx, "task started", "run_id", r.id, "task", id.String(), "kind", kind)
	r.emit(r.e.hooks.OnTaskStart, id, kind, domain.TaskRunning, 0, "")
}

func (r *run) emit(hook func(context.Context, *domain.TaskEvent), id domain.TaskID, kind domain.TaskKind, state domain.TaskState, d time.Duration, msg string) {
	if hook == nil {
		return
	}
	hook(context.WithoutCancel(r.ctx), &domain.TaskEvent{
		Timestamp: r.e.now(),
		RunID:     r.id,
		Task:      id,
		Kind:      kind,
		State:     state,
		Duration:  d,
		Error:     msg,
	})
}

// readyQueue orders runnable tasks by their topological position in the selection.
type readyQueue []int

func (h readyQueue) Len() int           { return len(h) }
func (h readyQueue) Less(i, j int) bool { return h[i] < h[j] }
func (h readyQueue) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *readyQueue) Push(x any)        { *h = append(*h, x.(int)) }
func (h *readyQueue) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
