package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/canopy/pkg/adapters/process"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/fsnotify/fsnotify"
)

// settleDelay lets editors finish writing before the workspace is reloaded.
const settleDelay = 100 * time.Millisecond

// RunWatch runs the targets, then reloads the workspace and runs them again
// every time a manifest changes, until ctx is cancelled.
func RunWatch(ctx context.Context, opts RunOptions, logger *slog.Logger) error {
	printSystemMessage(opts.Stdout, "Watching '%s' for changes.", opts.Config.Dir)

	for {
		if err := runOnce(ctx, opts, logger); err != nil {
			logger.Error("Run failed", "err", err)
			printSystemMessage(opts.Stdout, "%v", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		printSystemMessage(opts.Stdout, "Waiting for changes...")
		changed, err := waitForChange(ctx, opts.Config, watchDirs(opts.Config), logger)
		if err != nil {
			return err
		}
		if changed == "" {
			return nil
		}
		printSystemMessage(opts.Stdout, "Change detected in '%s'.", changed)
		logger.Info("Watcher restarting", "file", changed)
	}
}

// watchDirs returns the directories holding workspace manifests. When the
// workspace does not load, or lives in loam documents, only the root is watched.
func watchDirs(cfg Config) []string {
	if cfg.Loader == "loam" {
		return []string{cfg.Dir}
	}
	tree, err := workspace.Load(cfg.Dir)
	if err != nil {
		return []string{cfg.Dir}
	}
	dirs := []string{filepath.Join(cfg.Dir, filepath.Dir(process.DefaultConfigPath))}
	for _, p := range tree.Projects() {
		dirs = append(dirs, filepath.Join(cfg.Dir, filepath.FromSlash(p.Dir)))
	}
	return dirs
}

// isManifest reports whether name is a file whose change requires a reload.
func isManifest(cfg Config, name string) bool {
	base := filepath.Base(name)
	if base == workspace.ManifestFile || base == filepath.Base(process.DefaultConfigPath) {
		return true
	}
	return cfg.Loader == "loam" && filepath.Ext(base) == ".md"
}

// waitForChange blocks until a manifest under dirs changes and returns its
// name. It returns "" when ctx is cancelled first.
func waitForChange(ctx context.Context, cfg Config, dirs []string, logger *slog.Logger) (string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			logger.Debug("Skipping directory", "dir", dir, "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return "", nil
		case err, ok := <-w.Errors:
			if !ok {
				return "", nil
			}
			logger.Warn("Watcher error", "err", err)
		case ev, ok := <-w.Events:
			if !ok {
				return "", nil
			}
			if !isManifest(cfg, ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			select {
			case <-ctx.Done():
				return "", nil
			case <-time.After(settleDelay):
			}
			return ev.Name, nil
		}
	}
}
