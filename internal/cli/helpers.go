package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// CreateLogger configures the application logger from cfg.
// Logs go to Stderr so stdout stays free for task output and JSON reports.
func CreateLogger(cfg Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWriter(os.Stderr, level, cfg.LogFormat), nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// profileFor returns the colour profile to use when writing to w.
func profileFor(w io.Writer) termenv.Profile {
	if !isTerminal(w) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// renderMarkdown writes markdown to w, rendered through glamour on a terminal.
func renderMarkdown(w io.Writer, markdown string) error {
	if !isTerminal(w) {
		_, err := io.WriteString(w, markdown)
		return err
	}
	width := 0
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	out, err := tui.NewRenderer(width)(markdown)
	if err != nil {
		out = markdown
	}
	_, err = io.WriteString(w, out)
	return err
}

// progressHooks prints one line per primitive task start and finish, and one
// per skipped task. Hooks are called from a single goroutine per run.
func progressHooks(w io.Writer, p termenv.Profile) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, e *domain.TaskEvent) {
			if e.Kind != domain.KindPrimitive {
				return
			}
			fmt.Fprintf(w, "%-9s %s\n", tui.StateLabel(p, domain.TaskRunning), e.Task)
		},
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			if e.Kind != domain.KindPrimitive {
				return
			}
			line := fmt.Sprintf("%-9s %s (%s)", tui.StateLabel(p, e.State), e.Task, e.Duration.Round(time.Millisecond))
			if e.Error != "" {
				line += ": " + e.Error
			}
			fmt.Fprintln(w, line)
		},
		OnTaskSkip: func(_ context.Context, e *domain.TaskEvent) {
			fmt.Fprintf(w, "%-9s %s\n", tui.StateLabel(p, domain.TaskSkipped), e.Task)
		},
	}
}
