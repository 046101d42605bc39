package canopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/adapters/process"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the Canopy library.
// It loads a workspace once, compiles its task graph and runs selections of it.
type Engine struct {
	Name string

	dir     string
	loader  ports.WorkspaceLoader
	tree    *workspace.Tree
	graph   *plan.Graph
	runner  ports.TaskRunner
	store   ports.RunStore
	locker  ports.Locker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	mu     sync.Mutex
	active string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLoader injects a custom WorkspaceLoader, bypassing the canopy.yaml files.
func WithLoader(l ports.WorkspaceLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithTree uses an already assembled workspace.
func WithTree(tree *workspace.Tree) Option {
	return func(e *Engine) {
		e.tree = tree
	}
}

// WithRunner sets how primitive tasks are executed (default: local processes).
func WithRunner(r ports.TaskRunner) Option {
	return func(e *Engine) {
		e.runner = r
	}
}

// WithStore sets where run records are kept (default: in memory).
func WithStore(s ports.RunStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker sets the locker guarding exclusive resources (default: in process).
// A zero ttl keeps runtime.DefaultLockTTL.
func WithLocker(l ports.Locker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a new Canopy Engine.
// By default, it assembles the workspace from the canopy.yaml files under dir
// and runs primitive tasks as processes relative to dir.
// If WithLoader or WithTree is provided, dir may be empty.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{dir: dir}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.tree == nil {
		if eng.loader == nil {
			if dir == "" {
				return nil, fmt.Errorf("dir is required when no custom loader is provided")
			}
			eng.loader = ports.WorkspaceLoaderFunc(func(context.Context) (*workspace.Tree, error) {
				return workspace.Load(dir)
			})
		}
		tree, err := eng.loader.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load workspace: %w", err)
		}
		eng.tree = tree
	}

	graph, err := plan.Compile(eng.tree)
	if err != nil {
		return nil, err
	}
	eng.graph = graph
	eng.Name = eng.tree.Name()

	if eng.runner == nil {
		base := dir
		if base == "" {
			base = "."
		}
		absPath, err := filepath.Abs(base)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		cfg, err := process.LoadConfig(filepath.Join(absPath, process.DefaultConfigPath))
		if err != nil {
			return nil, err
		}
		eng.runner = process.NewRunner(process.WithBaseDir(absPath), process.WithConfig(cfg))
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.locker == nil {
		eng.locker = memory.NewLocker()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.logger = eng.logger.With("workspace", eng.Name)

	return eng, nil
}

// Tree returns the loaded workspace.
func (e *Engine) Tree() *workspace.Tree { return e.tree }

// Graph returns the compiled task graph.
func (e *Engine) Graph() *plan.Graph { return e.graph }

// Store returns the run store.
func (e *Engine) Store() ports.RunStore { return e.store }

// Tasks returns the introspection view of every task.
func (e *Engine) Tasks() []domain.TaskInfo { return e.graph.Infos() }

// Resolve turns task references ("path:task", ":task" or a bare root task
// name) into task IDs. Every unknown reference is reported.
func (e *Engine) Resolve(refs ...string) ([]domain.TaskID, error) {
	ids := make([]domain.TaskID, 0, len(refs))
	var errs []error
	for _, ref := range refs {
		id, err := e.graph.Resolve(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ids, nil
}

// Plan resolves refs and returns the tasks an invocation would execute.
func (e *Engine) Plan(refs ...string) (*plan.Selection, error) {
	ids, err := e.Resolve(refs...)
	if err != nil {
		return nil, err
	}
	return e.graph.Select(ids...)
}

// Run executes the tasks named by refs and persists the run record.
//
// Only one run may be active per engine; a concurrent call fails with
// domain.ErrRunInProgress. The Result is non-nil whenever execution started;
// the error is then the run failure (a *runtime.FailureError) or a
// persistence error.
func (e *Engine) Run(ctx context.Context, refs []string, opts domain.RunOptions) (*runtime.Result, error) {
	sel, err := e.Plan(refs...)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if err := e.begin(runID); err != nil {
		return nil, err
	}
	defer e.end()

	exec, err := runtime.NewExecutor(e.graph, e.runner,
		runtime.WithRunOptions(opts),
		runtime.WithLocker(e.locker, e.lockTTL),
		runtime.WithHooks(e.hooks),
		runtime.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}

	res, err := exec.Run(ctx, runID, sel)
	if err != nil {
		return nil, err
	}

	rec := res.Record(e.Name, opts)
	if err := e.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.ErrorContext(ctx, "failed to save run", "run_id", runID, "error", err)
		return res, errors.Join(res.Err(), fmt.Errorf("failed to save run %s: %w", runID, err))
	}
	return res, res.Err()
}

// Active returns the ID of the run in progress, if any.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active != ""
}

func (e *Engine) begin(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != "" {
		return fmt.Errorf("%w: %s", domain.ErrRunInProgress, e.active)
	}
	e.active = runID
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.active = ""
	e.mu.Unlock()
}

// LoadRun returns a persisted run record.
func (e *Engine) LoadRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return e.store.Load(ctx, runID)
}

// ListRuns returns persisted run IDs, most recent first.
func (e *Engine) ListRuns(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// DeleteRun removes a persisted run record.
func (e *Engine) DeleteRun(ctx context.Context, runID string) error {
	return e.store.Delete(ctx, runID)
}
