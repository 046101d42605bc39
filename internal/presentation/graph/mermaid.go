package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// GraphOverlay contains run state to visualize on the graph.
type GraphOverlay struct {
	States map[domain.TaskID]domain.TaskState
}

// GenerateMermaid produces a Mermaid flowchart from a list of tasks.
// Tasks are grouped in one subgraph per project and shaped by kind:
// - Primitive: [Rectangle]
// - Aggregate: {{Hexagon}}
// - Alias: ([Stadium])
// Edges point from a task to the tasks it depends on; alias edges are dotted.
// It also applies state styles if an overlay is provided.
func GenerateMermaid(tasks []domain.TaskInfo, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

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
		label := p
		if label == domain.RootPath {
			label = "(root)"
		}
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("p:"+p), label)
		for _, t := range byProject[p] {
			opener, closer := "[", "]"
			switch t.Kind {
			case domain.KindAggregate:
				opener, closer = "{{", "}}"
			case domain.KindAlias:
				opener, closer = "([", "])"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", sanitizeMermaidID(t.ID.String()), opener, t.ID.Task, closer)
		}
		sb.WriteString("    end\n")
	}

	for _, t := range tasks {
		arrow := "-->"
		if t.Kind == domain.KindAlias {
			arrow = "-.->"
		}
		for _, dep := range t.Dependencies {
			fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(t.ID.String()), arrow, sanitizeMermaidID(dep.String()))
		}
	}

	if overlay != nil && len(overlay.States) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high contrast regardless of theme.
		sb.WriteString("    classDef succeeded fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, t := range tasks {
			state, ok := overlay.States[t.ID]
			if !ok {
				continue
			}
			switch state {
			case domain.TaskSucceeded, domain.TaskFailed, domain.TaskSkipped, domain.TaskRunning:
				fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(t.ID.String()), state)
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(
		".", "_",
		"-", "_",
		"/", "_",
		"\\", "_",
		":", "__",
	).Replace(id)
}
