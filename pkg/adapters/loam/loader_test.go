package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/canopy/internal/testutils"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/ports/tests"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.WorkspaceLoader = (*Loader)(nil)

const rootDoc = `---
name: quest
tasks:
  - name: assembleAllDebug
    aggregate: true
  - name: buildAll
    alias: assembleAllDebug
includes:
  - path: openxr
---
Quest samples workspace.`

const openxrDoc = `---
path: openxr
description: OpenXR samples
tasks:
  - name: assembleAllDebug
    aggregate: true
includes:
  - path: hello_world
    project:
      tasks:
        - name: assembleAllDebug
          run: ./gradlew assembleDebug
  - path: tutorial
    pattern: "Chapter{1..2}"
    project:
      tasks:
        - name: assembleAllDebug
          run: [./gradlew, ":app:assembleDebug"]
---
Ignored body: the front matter already documents this build.`

func seed(t *testing.T, docs ...core.Document) *Loader {
	t.Helper()
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()
	for _, doc := range docs {
		require.NoError(t, repo.Save(ctx, doc))
	}
	return New(loam.NewTypedRepository[Metadata](repo))
}

func TestLoader_Contract(t *testing.T) {
	loader := seed(t,
		core.Document{ID: "canopy.md", Content: rootDoc},
		core.Document{ID: "docs/openxr.md", Content: openxrDoc},
	)

	tests.WorkspaceLoaderContractTest(t, loader,
		[]string{"", "openxr", "openxr/hello_world", "openxr/Chapter1", "openxr/Chapter2"},
		[]string{":buildAll", "openxr:assembleAllDebug", "openxr/Chapter2:assembleAllDebug"},
	)
}

func TestLoader_Descriptions(t *testing.T) {
	loader := seed(t,
		core.Document{ID: "canopy.md", Content: rootDoc},
		core.Document{ID: "docs/openxr.md", Content: openxrDoc},
	)

	tree, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "quest", tree.Name())
	assert.Equal(t, "Quest samples workspace.", tree.Root().Description)

	p, ok := tree.Project("openxr")
	require.True(t, ok)
	assert.Equal(t, "OpenXR samples", p.Description)

	spec, ok := tree.Task(domain.TaskID{Project: "openxr/Chapter1", Task: "assembleAllDebug"})
	require.True(t, ok)
	assert.Equal(t, []string{"./gradlew", ":app:assembleDebug"}, spec.Command)
}

func TestLoader_DuplicateDirectory(t *testing.T) {
	loader := seed(t,
		core.Document{ID: "canopy.md", Content: rootDoc},
		core.Document{ID: "a.md", Content: "---\npath: openxr\n---\n"},
		core.Document{ID: "b.md", Content: "---\npath: openxr\n---\n"},
	)

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestLoader_InvalidFrontMatter(t *testing.T) {
	loader := seed(t,
		core.Document{ID: "canopy.md", Content: "---\nname: x\nbogus: true\n---\n"},
		core.Document{ID: "escape.md", Content: "---\npath: ../outside\n---\n"},
	)

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidManifest)
	assert.Len(t, workspace.ConfigErrors(err), 2)
}

func TestOpen_ReadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "canopy.md"), []byte(rootDoc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openxr.md"), []byte(openxrDoc), 0644))

	loader, err := Open(dir)
	require.NoError(t, err)

	tree, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, tree.Len())
}

func TestSource_Manifest(t *testing.T) {
	src := Source{".": &workspace.Manifest{Name: "root"}}

	m, ok, err := src.Manifest("./")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "root", m.Name)

	_, ok, err = src.Manifest("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
