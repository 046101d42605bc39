package plan_test

import (
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/plan"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(project, task string) domain.TaskID {
	return domain.TaskID{Project: project, Task: task}
}

// scenario builds root -> {A, B}, A -> {A1, A2}, B -> {B1}.
func scenario(t *testing.T) *plan.Graph {
	t.Helper()
	b := workspace.NewBuilder("root")
	root := b.Root().
		Aggregate("assembleAllDebug").
		Aggregate("cleanAll").
		Alias("buildAll", "assembleAllDebug")

	a := root.Include("A").Aggregate("assembleAllDebug").Aggregate("cleanAll")
	for _, leaf := range []string{"A1", "A2"} {
		a.Include(leaf).
			Primitive("assembleAllDebug", []string{"true"}).
			Primitive("cleanAll", []string{"true"})
	}
	root.Include("B").Aggregate("assembleAllDebug").Aggregate("cleanAll").
		Include("B1").
		Primitive("assembleAllDebug", []string{"true"}).
		Primitive("cleanAll", []string{"true"})

	tree, err := b.Build()
	require.NoError(t, err)
	g, err := plan.Compile(tree)
	require.NoError(t, err)
	return g
}

func TestCompile_AggregateEdges(t *testing.T) {
	g := scenario(t)

	assert.Equal(t,
		[]domain.TaskID{id("A", "assembleAllDebug"), id("B", "assembleAllDebug")},
		g.Dependencies(id("", "assembleAllDebug")))
	assert.Equal(t,
		[]domain.TaskID{id("A/A1", "assembleAllDebug"), id("A/A2", "assembleAllDebug")},
		g.Dependencies(id("A", "assembleAllDebug")))
	assert.Equal(t,
		[]domain.TaskID{id("", "assembleAllDebug")},
		g.Dependencies(id("", "buildAll")))
	assert.Empty(t, g.Dependencies(id("A/A1", "assembleAllDebug")))

	assert.Equal(t,
		[]domain.TaskID{id("", "buildAll")},
		g.Dependents(id("", "assembleAllDebug")))
	assert.Equal(t,
		[]domain.TaskID{id("A", "assembleAllDebug")},
		g.Dependents(id("A/A2", "assembleAllDebug")))
}

func TestCompile_Depth(t *testing.T) {
	g := scenario(t)

	for _, tt := range []struct {
		id    domain.TaskID
		depth int
	}{
		{id("A/A1", "assembleAllDebug"), 0},
		{id("B/B1", "assembleAllDebug"), 0},
		{id("A", "assembleAllDebug"), 1},
		{id("", "assembleAllDebug"), 2},
		{id("", "buildAll"), 3},
	} {
		d, ok := g.Depth(tt.id)
		require.True(t, ok)
		assert.Equal(t, tt.depth, d, tt.id.String())
	}

	_, ok := g.Depth(id("", "missing"))
	assert.False(t, ok)
}

func TestCompile_TopologicalOrder(t *testing.T) {
	g := scenario(t)
	order := g.TopologicalOrder()
	require.Len(t, order, g.Len())

	pos := make(map[domain.TaskID]int, len(order))
	for i, tid := range order {
		pos[tid] = i
	}
	for _, e := range g.Edges() {
		assert.Less(t, pos[e.To], pos[e.From], "%s must come before %s", e.To, e.From)
	}

	again := scenario(t).TopologicalOrder()
	assert.Equal(t, order, again)
}

func TestCompile_AliasCycle(t *testing.T) {
	b := workspace.NewBuilder("root")
	b.Root().Alias("a", "b").Alias("b", "a")
	tree, err := b.Build()
	require.NoError(t, err)

	_, err = plan.Compile(tree)
	require.ErrorIs(t, err, domain.ErrCycle)

	var gerr *plan.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, ":a -> :b -> :a", gerr.Msg)
}

func TestGraph_Resolve(t *testing.T) {
	g := scenario(t)

	got, err := g.Resolve("buildAll")
	require.NoError(t, err)
	assert.Equal(t, id("", "buildAll"), got)

	got, err = g.Resolve("A/A2:cleanAll")
	require.NoError(t, err)
	assert.Equal(t, id("A/A2", "cleanAll"), got)

	_, err = g.Resolve("A:nope")
	assert.ErrorIs(t, err, domain.ErrUnknownTask)

	_, err = g.Resolve("C:cleanAll")
	assert.ErrorIs(t, err, domain.ErrUnknownProject)
}

func TestGraph_Infos(t *testing.T) {
	g := scenario(t)
	infos := g.Infos()
	require.Len(t, infos, g.Len())

	assert.Equal(t, id("", "assembleAllDebug"), infos[0].ID)
	assert.Equal(t, domain.KindAggregate, infos[0].Kind)
	assert.Len(t, infos[0].Dependencies, 2)

	assert.Equal(t, id("", "buildAll"), infos[2].ID)
	assert.Equal(t, "Alias for assembleAllDebug", infos[2].Description)
}
