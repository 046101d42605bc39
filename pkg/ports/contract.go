package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractRecord(id string, started time.Time) *domain.RunRecord {
	leaf := domain.TaskID{Project: "openxr/hello_world", Task: "assembleDebug"}
	top := domain.TaskID{Task: "assembleAllDebug"}
	return &domain.RunRecord{
		ID:        id,
		Workspace: "contract",
		Targets:   []domain.TaskID{top},
		Status:    domain.RunFailed,
		States: map[domain.TaskID]domain.TaskState{
			leaf: domain.TaskFailed,
			top:  domain.TaskSkipped,
		},
		Order:      []domain.TaskID{leaf},
		Failures:   []domain.TaskID{leaf},
		Causes:     map[domain.TaskID][]domain.TaskID{top: {leaf}},
		Errors:     map[domain.TaskID]string{leaf: "exit status 1"},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		rec := contractRecord(runID, base)
		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, rec.Status, loaded.Status)
		assert.Equal(t, rec.Targets, loaded.Targets)
		assert.Equal(t, rec.States, loaded.States)
		assert.Equal(t, rec.Causes, loaded.Causes)
		assert.Equal(t, rec.Errors, loaded.Errors)
		assert.True(t, rec.StartedAt.Equal(loaded.StartedAt))
		assert.Equal(t, time.Second, loaded.Duration())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractRecord(runID, base)))

		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")

		assert.NoError(t, store.Delete(ctx, runID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		older := runID + "-1"
		newer := runID + "-2"
		require.NoError(t, store.Save(ctx, contractRecord(older, base)))
		require.NoError(t, store.Save(ctx, contractRecord(newer, base.Add(time.Hour))))

		defer func() {
			_ = store.Delete(ctx, older)
			_ = store.Delete(ctx, newer)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)

		pos := map[string]int{}
		for i, id := range runs {
			pos[id] = i
		}
		require.Contains(t, pos, older)
		require.Contains(t, pos, newer)
		assert.Less(t, pos[newer], pos[older], "List should return the most recent run first")
	})
}
