package tui_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tid(project, task string) domain.TaskID {
	return domain.TaskID{Project: project, Task: task}
}

func TestTasksMarkdown(t *testing.T) {
	md := tui.TasksMarkdown("quest", []domain.TaskInfo{
		{ID: tid("", "buildAll"), Kind: domain.KindAlias, Description: "Alias for assembleAllDebug"},
		{ID: tid("openxr", "clean"), Kind: domain.KindAggregate, Group: "build", Description: "a | b"},
	})

	assert.Contains(t, md, "# quest")
	assert.Contains(t, md, "## (root)")
	assert.Contains(t, md, "| `:buildAll` | alias |  | Alias for assembleAllDebug |")
	assert.Contains(t, md, "## openxr")
	assert.Contains(t, md, `a \| b`)
}

func TestRunReportMarkdown(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	leaf := tid("openxr/hello_world", "assembleDebug")
	top := tid("", "assembleAllDebug")
	md := tui.RunReportMarkdown(&domain.RunRecord{
		ID:         "r1",
		Targets:    []domain.TaskID{top},
		Status:     domain.RunFailed,
		States:     map[domain.TaskID]domain.TaskState{leaf: domain.TaskFailed, top: domain.TaskSkipped},
		Failures:   []domain.TaskID{leaf},
		Causes:     map[domain.TaskID][]domain.TaskID{top: {leaf}},
		Errors:     map[domain.TaskID]string{leaf: "exit status 1"},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	})

	assert.Contains(t, md, "# Run r1")
	assert.Contains(t, md, "**Status**: failed")
	assert.Contains(t, md, "**Duration**: 1.5s")
	assert.Contains(t, md, "| failed | 1 |")
	assert.Contains(t, md, "- `openxr/hello_world:assembleDebug`: exit status 1")
	assert.Contains(t, md, "- `:assembleAllDebug` (caused by `openxr/hello_world:assembleDebug`)")
	assert.NotContains(t, md, "Not started")
}

func TestRunsMarkdown(t *testing.T) {
	assert.Equal(t, "No runs recorded.\n", tui.RunsMarkdown(nil))

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	md := tui.RunsMarkdown([]*domain.RunRecord{{
		ID:         "r1",
		Status:     domain.RunSucceeded,
		Targets:    []domain.TaskID{tid("", "buildAll")},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}})
	assert.Contains(t, md, "| `r1` | succeeded | 2024-05-01T10:00:00Z | 1.5s | `:buildAll` |")
}

func TestStateLabel(t *testing.T) {
	assert.Equal(t, "failed", tui.StateLabel(termenv.Ascii, domain.TaskFailed))
	colored := tui.StateLabel(termenv.TrueColor, domain.TaskSucceeded)
	assert.Contains(t, colored, "succeeded")
	assert.NotEqual(t, "succeeded", colored)
}

func TestRenderer(t *testing.T) {
	render := tui.NewRenderer(80)
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "0.1.0\n")
	assert.Contains(t, buf.String(), "|_|")
	assert.Contains(t, buf.String(), "v0.1.0")
}
