package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
)

// ListRuns prints the recorded runs, most recent first.
func ListRuns(ctx context.Context, w io.Writer, cfg Config, jsonMode bool) error {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ids, err := backend.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	recs := make([]*domain.RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := backend.Store.Load(ctx, id)
		if errors.Is(err, domain.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", id, err)
		}
		recs = append(recs, rec)
	}

	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	return renderMarkdown(w, tui.RunsMarkdown(recs))
}

// InspectRun prints the report of one recorded run.
func InspectRun(ctx context.Context, w io.Writer, cfg Config, runID string, jsonMode bool) error {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	rec, err := backend.Store.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	return renderMarkdown(w, tui.RunReportMarkdown(rec))
}

// DeleteRuns removes recorded runs. Deleting an unknown run is not an error.
func DeleteRuns(ctx context.Context, w io.Writer, cfg Config, runIDs ...string) error {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	for _, id := range runIDs {
		if err := backend.Store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete run %s: %w", id, err)
		}
		printSystemMessage(w, "Run '%s' deleted.", id)
	}
	return nil
}
