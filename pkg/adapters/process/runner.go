package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/canopy/pkg/ports"
)

// waitDelay bounds how long output is drained after the process was killed.
const waitDelay = 5 * time.Second

// Runner implements ports.TaskRunner by executing the task command as a
// local process in the project directory.
type Runner struct {
	baseDir string
	config  Config
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the workspace root; project directories are resolved against it.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithConfig applies environment and timeout settings.
func WithConfig(cfg Config) RunnerOption {
	return func(r *Runner) {
		r.config = cfg
	}
}

// WithEnv adds environment variables to every task.
func WithEnv(env map[string]string) RunnerOption {
	return func(r *Runner) {
		if r.config.Env == nil {
			r.config.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			r.config.Env[k] = v
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the task command and captures its output.
//
// A command that exits non-zero yields its exit code and a nil error.
// An error is returned when the process could not be started or was
// stopped by ctx (cancellation or the configured timeout).
func (r *Runner) Run(ctx context.Context, inv ports.Invocation) (ports.Outcome, error) {
	argv := inv.Spec.Command
	if len(argv) == 0 {
		return ports.Outcome{}, fmt.Errorf("task %s has no command", inv.Task)
	}

	env, timeout := r.config.settings(inv.Project.Path)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Join(r.baseDir, filepath.FromSlash(inv.Project.Dir))
	cmd.WaitDelay = waitDelay

	// Task identity is passed as environment variables, never as arguments.
	vars := []string{
		"CANOPY_RUN_ID=" + inv.RunID,
		"CANOPY_PROJECT=" + inv.Task.Project,
		"CANOPY_PROJECT_DIR=" + inv.Project.Dir,
		"CANOPY_TASK=" + inv.Task.Task,
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, fmt.Sprintf("%s=%s", strings.ToUpper(k), env[k]))
	}
	cmd.Env = append(cmd.Environ(), vars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := ports.Outcome{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, fmt.Errorf("%s: %w", inv.Task, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, fmt.Errorf("failed to start %q: %w", argv[0], err)
}
