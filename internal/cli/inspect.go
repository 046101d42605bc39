package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workspace"
)

// TasksOptions configures the 'tasks' command.
type TasksOptions struct {
	Config  Config
	Project string
	// All includes tasks without a group.
	All  bool
	JSON bool
}

// ListTasks prints the tasks of the workspace.
func ListTasks(w io.Writer, opts TasksOptions) error {
	engine, backend, err := CreateEngine(opts.Config, logging.NewNop())
	if err != nil {
		return err
	}
	defer backend.Close()

	var tasks []domain.TaskInfo
	for _, t := range engine.Tasks() {
		if opts.Project != "" && t.ID.Project != opts.Project {
			continue
		}
		if !opts.All && t.Group == "" {
			continue
		}
		tasks = append(tasks, t)
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	if len(tasks) == 0 {
		printSystemMessage(w, "No tasks found. Use --all to include ungrouped tasks.")
		return nil
	}
	return renderMarkdown(w, tui.TasksMarkdown(engine.Name, tasks))
}

// GraphOptions configures the 'graph' command.
type GraphOptions struct {
	Config  Config
	Targets []string
	// RunID colours the graph with the final states of a recorded run.
	RunID string
}

// PrintGraph writes the task graph, or the part selected by Targets, as Mermaid.
func PrintGraph(ctx context.Context, w io.Writer, opts GraphOptions) error {
	engine, backend, err := CreateEngine(opts.Config, logging.NewNop())
	if err != nil {
		return err
	}
	defer backend.Close()

	tasks := engine.Tasks()
	if len(opts.Targets) > 0 {
		sel, err := engine.Plan(opts.Targets...)
		if err != nil {
			return err
		}
		tasks = sel.Infos()
	}

	var overlay *graph.GraphOverlay
	if opts.RunID != "" {
		rec, err := engine.LoadRun(ctx, opts.RunID)
		if err != nil {
			return fmt.Errorf("error loading run: %w", err)
		}
		overlay = &graph.GraphOverlay{States: rec.States}
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(tasks, overlay))
	return err
}

// Validate loads and compiles the workspace, reporting every configuration error.
func Validate(w io.Writer, cfg Config) error {
	engine, backend, err := CreateEngine(cfg, logging.NewNop())
	if err != nil {
		var aggr *workspace.AggregateError
		if errors.As(err, &aggr) && len(aggr.Errors) > 1 {
			for _, e := range aggr.Errors {
				fmt.Fprintf(w, "  - %v\n", e)
			}
			return fmt.Errorf("%d configuration errors", len(aggr.Errors))
		}
		return err
	}
	defer backend.Close()

	fmt.Fprintf(w, "Workspace '%s' is valid: %d projects, %d tasks ✅\n",
		engine.Name, engine.Tree().Len(), engine.Graph().Len())
	return nil
}
