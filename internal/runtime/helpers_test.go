package runtime_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/stretchr/testify/require"
)

func tid(project, task string) domain.TaskID {
	return domain.TaskID{Project: project, Task: task}
}

// scenarioGraph builds root -> {A, B}, A -> {A1, A2}, B -> {B1}.
func scenarioGraph(t *testing.T, leafOpts ...workspace.TaskOption) *plan.Graph {
	t.Helper()
	b := workspace.NewBuilder("root")
	root := b.Root().
		Aggregate("assembleAllDebug").
		Aggregate("cleanAll").
		Alias("buildAll", "assembleAllDebug")

	leaf := func(pb *workspace.ProjectBuilder) {
		pb.Primitive("assembleAllDebug", []string{"gradle", "assembleDebug"}, leafOpts...).
			Primitive("cleanAll", []string{"gradle", "clean"})
	}
	a := root.Include("A").Aggregate("assembleAllDebug").Aggregate("cleanAll")
	leaf(a.Include("A1"))
	leaf(a.Include("A2"))
	leaf(root.Include("B").Aggregate("assembleAllDebug").Aggregate("cleanAll").Include("B1"))

	tree, err := b.Build()
	require.NoError(t, err)
	g, err := plan.Compile(tree)
	require.NoError(t, err)
	return g
}

// fakeRunner records invocations and fails the configured tasks.
type fakeRunner struct {
	mu      sync.Mutex
	fail    map[domain.TaskID]bool
	calls   []domain.TaskID
	running int
	peak    int
	hook    func(ctx context.Context, inv ports.Invocation) error
}

func newFakeRunner(failing ...domain.TaskID) *fakeRunner {
	f := &fakeRunner{fail: make(map[domain.TaskID]bool)}
	for _, id := range failing {
		f.fail[id] = true
	}
	return f
}

func (f *fakeRunner) Run(ctx context.Context, inv ports.Invocation) (ports.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv.Task)
	f.running++
	if f.running > f.peak {
		f.peak = f.running
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if f.hook != nil {
		if err := f.hook(ctx, inv); err != nil {
			return ports.Outcome{}, err
		}
	}
	if f.fail[inv.Task] {
		return ports.Outcome{ExitCode: 1, Stderr: []byte(fmt.Sprintf("%s broke\n", inv.Task))}, nil
	}
	return ports.Outcome{Stdout: []byte("ok\n")}, nil
}

func (f *fakeRunner) Calls() []domain.TaskID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TaskID(nil), f.calls...)
}

func (f *fakeRunner) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func indexOf(list []domain.TaskID, id domain.TaskID) int {
	for i, x := range list {
		if x == id {
			return i
		}
	}
	return -1
}
