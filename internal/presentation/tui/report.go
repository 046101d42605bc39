package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
)

var stateColors = map[domain.TaskState]string{
	domain.TaskSucceeded: "#22c55e",
	domain.TaskFailed:    "#ef4444",
	domain.TaskSkipped:   "#a1a1aa",
	domain.TaskRunning:   "#eab308",
	domain.TaskScheduled: "#60a5fa",
}

// StateLabel returns the state name coloured for the terminal profile p.
func StateLabel(p termenv.Profile, state domain.TaskState) string {
	s := p.String(string(state))
	if c, ok := stateColors[state]; ok {
		s = s.Foreground(p.Color(c))
	}
	if state == domain.TaskFailed {
		s = s.Bold()
	}
	return s.String()
}

// TasksMarkdown lists tasks as a markdown table grouped by project.
func TasksMarkdown(workspace string, tasks []domain.TaskInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", escape(workspace))

	byProject := make(map[string][]domain.TaskInfo)
	var projects []string
	for _, t := range tasks {
		if _, ok := byProject[t.ID.Project]; !ok {
			projects = append(projects, t.ID.Project)
		}
		byProject[t.ID.Project] = append(byProject[t.ID.Project], t)
	}
	sort.Strings(projects)

	for _, p := range projects {
		title := p
		if title == domain.RootPath {
			title = "(root)"
		}
		fmt.Fprintf(&sb, "## %s\n\n", escape(title))
		sb.WriteString("| Task | Kind | Group | Description |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, t := range byProject[p] {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", t.ID, t.Kind, escape(t.Group), escape(t.Description))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RunReportMarkdown summarizes a finished run.
func RunReportMarkdown(rec *domain.RunRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", rec.ID)
	fmt.Fprintf(&sb, "- **Status**: %s\n", rec.Status)
	fmt.Fprintf(&sb, "- **Targets**: %s\n", joinIDs(rec.Targets))
	fmt.Fprintf(&sb, "- **Started**: %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration**: %s\n\n", rec.Duration().Round(time.Millisecond))

	counts := make(map[domain.TaskState]int)
	for _, s := range rec.States {
		counts[s]++
	}
	sb.WriteString("| State | Tasks |\n|---|---|\n")
	for _, s := range []domain.TaskState{domain.TaskSucceeded, domain.TaskFailed, domain.TaskSkipped, domain.TaskScheduled} {
		if counts[s] > 0 {
			fmt.Fprintf(&sb, "| %s | %d |\n", s, counts[s])
		}
	}
	sb.WriteString("\n")

	if len(rec.Failures) > 0 {
		sb.WriteString("## Failures\n\n")
		for _, id := range rec.Failures {
			fmt.Fprintf(&sb, "- `%s`", id)
			if msg := rec.Errors[id]; msg != "" {
				fmt.Fprintf(&sb, ": %s", escape(msg))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(rec.Causes) > 0 {
		sb.WriteString("## Skipped\n\n")
		skipped := make([]domain.TaskID, 0, len(rec.Causes))
		for id := range rec.Causes {
			skipped = append(skipped, id)
		}
		sort.Slice(skipped, func(i, j int) bool { return skipped[i].String() < skipped[j].String() })
		for _, id := range skipped {
			fmt.Fprintf(&sb, "- `%s` (caused by %s)\n", id, joinIDs(rec.Causes[id]))
		}
		sb.WriteString("\n")
	}

	if len(rec.Abandoned) > 0 {
		fmt.Fprintf(&sb, "## Not started\n\n%s\n", joinIDs(rec.Abandoned))
	}
	return sb.String()
}

// RunsMarkdown lists run records, one row per run.
func RunsMarkdown(recs []*domain.RunRecord) string {
	if len(recs) == 0 {
		return "No runs recorded.\n"
	}
	var sb strings.Builder
	sb.WriteString("| Run | Status | Started | Duration | Targets |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, rec := range recs {
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s |\n",
			rec.ID, rec.Status, rec.StartedAt.Format(time.RFC3339),
			rec.Duration().Round(time.Millisecond), joinIDs(rec.Targets))
	}
	return sb.String()
}

func joinIDs(ids []domain.TaskID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "`" + id.String() + "`"
	}
	return strings.Join(parts, ", ")
}

func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
