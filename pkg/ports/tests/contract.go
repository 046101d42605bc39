package tests

import (
	"context"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// WorkspaceLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.WorkspaceLoader.
// wantProjects lists every project path the loaded tree must contain ("" for the root);
// wantTasks lists task references that must resolve.
func WorkspaceLoaderContractTest(t *testing.T, loader ports.WorkspaceLoader, wantProjects []string, wantTasks []string) {
	t.Helper()

	tree, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error loading workspace: %v", err)
	}

	t.Run("Projects", func(t *testing.T) {
		if tree.Len() != len(wantProjects) {
			t.Errorf("expected %d projects, got %d", len(wantProjects), tree.Len())
		}
		for _, p := range wantProjects {
			if _, ok := tree.Project(p); !ok {
				t.Errorf("project %q missing from tree", p)
			}
		}
	})

	t.Run("Tasks", func(t *testing.T) {
		for _, ref := range wantTasks {
			id, err := domain.ParseTaskID(ref)
			if err != nil {
				t.Fatalf("bad reference %q: %v", ref, err)
			}
			if _, ok := tree.Task(id); !ok {
				t.Errorf("task %s missing from tree", id)
			}
		}
	})

	t.Run("Parents", func(t *testing.T) {
		for _, p := range tree.Projects() {
			if p.IsRoot() {
				continue
			}
			if _, ok := tree.Project(p.Parent); !ok {
				t.Errorf("project %q has unknown parent %q", p.Path, p.Parent)
			}
		}
	})
}
