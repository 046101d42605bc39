package workspace

import (
	"testing"
	"testing/fstest"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

func TestAssemble_ResolutionOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"canopy.yaml": file(`
name: demo
templates:
  app:
    - name: build
      run: make build
tasks:
  - name: build
    aggregate: true
includes:
  - path: inline
    project:
      tasks:
        - name: build
          run: [go, build, ./...]
  - path: ondisk
  - path: templated
    template: app
`),
		"ondisk/canopy.yaml": file(`
tasks:
  - name: build
    run: ./build.sh
`),
	}

	tree, err := Assemble(FSSource{FS: fsys})
	require.NoError(t, err)
	assert.Equal(t, "demo", tree.Name())

	spec, ok := tree.Task(domain.TaskID{Project: "inline", Task: "build"})
	require.True(t, ok)
	assert.Equal(t, []string{"go", "build", "./..."}, spec.Command)

	spec, ok = tree.Task(domain.TaskID{Project: "ondisk", Task: "build"})
	require.True(t, ok)
	assert.Equal(t, []string{"./build.sh"}, spec.Command)

	spec, ok = tree.Task(domain.TaskID{Project: "templated", Task: "build"})
	require.True(t, ok)
	assert.Equal(t, []string{"make", "build"}, spec.Command)
}

func TestAssemble_InlineWinsOverDisk(t *testing.T) {
	fsys := fstest.MapFS{
		"canopy.yaml": file(`
includes:
  - path: child
    project:
      tasks:
        - name: build
          run: inline
`),
		"child/canopy.yaml": file(`
tasks:
  - name: build
    run: disk
`),
	}

	tree, err := Assemble(FSSource{FS: fsys})
	require.NoError(t, err)
	spec, _ := tree.Task(domain.TaskID{Project: "child", Task: "build"})
	assert.Equal(t, []string{"inline"}, spec.Command)
	assert.Equal(t, "root", tree.Name())
}

func TestAssemble_Unresolvable(t *testing.T) {
	fsys := fstest.MapFS{
		"canopy.yaml": file(`
includes:
  - path: ghost
  - path: other
    template: missing
`),
	}

	_, err := Assemble(FSSource{FS: fsys})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnresolvedProject)
	assert.Len(t, ConfigErrors(err), 2)
}

func TestAssemble_NoRootManifest(t *testing.T) {
	_, err := Assemble(FSSource{FS: fstest.MapFS{}})
	assert.ErrorIs(t, err, domain.ErrUnresolvedProject)
}

func TestAssemble_InvalidManifest(t *testing.T) {
	tests := map[string]string{
		"unknown key":       "tasks:\n  - name: a\n    command: x\n",
		"alias and run":     "tasks:\n  - name: a\n    alias: b\n    run: x\n",
		"aggregate and run": "tasks:\n  - name: a\n    aggregate: true\n    run: x\n",
		"include no path":   "includes:\n  - tasks: {}\n",
		"bad pattern":       "includes:\n  - pattern: \"c{1..\"\n",
		"huge range":        "includes:\n  - pattern: \"c{0..9223372036854775807}\"\n",
		"wrapping range":    "includes:\n  - pattern: \"c{-9223372036854775808..9223372036854775807}\"\n",
		"not yaml":          "tasks: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Assemble(FSSource{FS: fstest.MapFS{"canopy.yaml": file(doc)}})
			assert.ErrorIs(t, err, domain.ErrInvalidManifest)
		})
	}
}

func TestLoad_XRSamples(t *testing.T) {
	tree, err := Load("../../examples/xr-samples")
	require.NoError(t, err)

	assert.Equal(t, "openxr-quest-tutorial", tree.Name())

	var paths []string
	for _, p := range tree.Children("openxr/tutorial") {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{
		"openxr/tutorial/Chapter1",
		"openxr/tutorial/Chapter2",
		"openxr/tutorial/Chapter3",
		"openxr/tutorial/Chapter4",
		"openxr/tutorial/Chapter5",
		"openxr/tutorial/Chapter6",
	}, paths)

	ch3, ok := tree.Project("openxr/tutorial/Chapter3")
	require.True(t, ok)
	assert.Equal(t, "openxr/tutorial/Chapter3", ch3.Dir)

	spec, ok := tree.Task(domain.TaskID{Project: "openxr/tutorial/Chapter3", Task: "app:assembleDebug"})
	require.True(t, ok)
	assert.Equal(t, []string{"./gradlew", ":app:assembleDebug"}, spec.Command)

	sample, ok := tree.Project("Samples/XrHandsFB")
	require.True(t, ok)
	assert.Equal(t, "meta/Samples/XrSamples/XrHandsFB", sample.Dir)

	// camera2_tutorial is part of the tree with the shared template tasks.
	_, ok = tree.Task(domain.TaskID{Project: "openxr/camera2_tutorial", Task: "installDebug"})
	assert.True(t, ok)

	for _, inc := range tree.Includes("openxr") {
		switch inc.Child {
		case "openxr/camera2_tutorial":
			assert.False(t, inc.Aggregate)
		case "openxr/hello_xr":
			assert.Equal(t, "assembleVulkanRelease", inc.ChildTask("assembleRelease"))
			assert.Equal(t, "clean", inc.ChildTask("clean"))
		default:
			assert.True(t, inc.Aggregate)
		}
	}
}
