package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	Config  Config
	Targets []string
	Run     domain.RunOptions

	JSON  bool
	Quiet bool
	Watch bool

	// Stdout receives progress and the final report (default os.Stdout).
	Stdout io.Writer

	// EngineOptions are appended to the options built from Config.
	EngineOptions []canopy.Option
}

// Execute handles the 'run' command logic, dispatching to a single run or Watch mode.
func Execute(ctx context.Context, opts RunOptions) error {
	if len(opts.Targets) == 0 {
		return fmt.Errorf("no task given; try 'canopy tasks' to list them")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	logger, err := CreateLogger(opts.Config)
	if err != nil {
		return err
	}

	if opts.Watch {
		if opts.JSON {
			return fmt.Errorf("--watch and --json cannot be used together")
		}
		return RunWatch(ctx, opts, logger)
	}
	return runOnce(ctx, opts, logger)
}

func runOnce(ctx context.Context, opts RunOptions, logger *slog.Logger) error {
	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger)}
	if !opts.JSON && !opts.Quiet {
		hooks = append(hooks, progressHooks(opts.Stdout, profileFor(opts.Stdout)))
	}
	engineOpts := append([]canopy.Option{
		canopy.WithLifecycleHooks(domain.ChainHooks(hooks...)),
	}, opts.EngineOptions...)

	engine, backend, err := CreateEngine(opts.Config, logger, engineOpts...)
	if err != nil {
		return err
	}
	defer backend.Close()

	res, runErr := engine.Run(ctx, opts.Targets, opts.Run)
	if res == nil {
		return runErr
	}

	rec, err := engine.LoadRun(context.WithoutCancel(ctx), res.RunID)
	if err != nil {
		rec = res.Record(engine.Name, opts.Run)
	}

	if opts.JSON {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}

	if !opts.Quiet {
		if sc, ok := ctx.(*SignalContext); ok && sc.Signal() != nil {
			printSystemMessage(opts.Stdout, "Interrupted (%s).", sc.Signal())
		}
		fmt.Fprintln(opts.Stdout)
		if err := renderMarkdown(opts.Stdout, tui.RunReportMarkdown(rec)); err != nil {
			logger.Warn("failed to render report", "err", err)
		}
	}
	return runErr
}
