package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/aretw0/canopy/pkg/domain"
)

// Source resolves the manifest of the build located at dir.
// dir is slash-separated and relative to the workspace root ("." for the root).
// ok is false when no manifest exists there.
type Source interface {
	Manifest(dir string) (m *Manifest, ok bool, err error)
}

// FSSource reads canopy.yaml files from a file system.
type FSSource struct {
	FS fs.FS
}

// Manifest implements Source.
func (s FSSource) Manifest(dir string) (*Manifest, bool, error) {
	p := path.Join(dir, ManifestFile)
	data, err := fs.ReadFile(s.FS, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", p, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", p, err)
	}
	return m, true, nil
}

// Load assembles the workspace rooted at dir from its canopy.yaml files.
func Load(dir string) (*Tree, error) {
	return Assemble(FSSource{FS: os.DirFS(dir)})
}

// Assemble builds a Tree starting from the root manifest of src and
// following includes recursively, the way composite builds include each other.
//
// An include is resolved, in order, from its inline project, from the
// manifest found in its directory, or from a named template. When none
// applies the include is reported as unresolvable.
func Assemble(src Source) (*Tree, error) {
	root, ok, err := src.Manifest(".")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no %s at workspace root", domain.ErrUnresolvedProject, ManifestFile)
	}

	name := root.Name
	if name == "" {
		name = "root"
	}
	a := &assembler{src: src, b: NewBuilder(name)}
	a.apply(a.b.Root(), root, nil)
	return a.b.Build()
}

type assembler struct {
	src Source
	b   *Builder
}

func (a *assembler) apply(pb *ProjectBuilder, m *Manifest, inherited map[string][]TaskManifest) {
	templates := mergeTemplates(inherited, m.Templates)

	if m.Description != "" {
		pb.Describe(m.Description)
	}
	for _, tm := range m.Tasks {
		applyTask(pb, tm)
	}
	for _, inc := range m.Includes {
		a.include(pb, inc, templates)
	}
}

func (a *assembler) include(pb *ProjectBuilder, inc IncludeManifest, templates map[string][]TaskManifest) {
	type target struct{ name, dir string }
	var targets []target

	switch {
	case inc.Pattern != "":
		names, err := Expand(inc.Pattern)
		if err != nil {
			pb.Fail(domain.ErrInvalidManifest, "%v", err)
			return
		}
		for _, n := range names {
			targets = append(targets, target{name: n, dir: path.Join(pb.Dir(), inc.Path, n)})
		}
	case inc.Path != "":
		name := inc.Name
		if name == "" {
			name = path.Base(inc.Path)
		}
		targets = append(targets, target{name: name, dir: path.Join(pb.Dir(), inc.Path)})
	default:
		pb.Fail(domain.ErrInvalidManifest, "include needs a path or a pattern")
		return
	}

	opts := make([]IncludeOption, 0, len(inc.Tasks)+1)
	mapped := make([]string, 0, len(inc.Tasks))
	for from := range inc.Tasks {
		mapped = append(mapped, from)
	}
	sort.Strings(mapped)
	for _, from := range mapped {
		opts = append(opts, MapTask(from, inc.Tasks[from]))
	}
	if inc.Aggregate != nil && !*inc.Aggregate {
		opts = append(opts, Detached())
	}

	for _, t := range targets {
		child := pb.Include(t.name, append(opts, InDir(t.dir))...)
		a.resolve(child, inc, templates)
	}
}

func (a *assembler) resolve(child *ProjectBuilder, inc IncludeManifest, templates map[string][]TaskManifest) {
	if inc.Project != nil {
		a.apply(child, inc.Project, templates)
		return
	}

	m, ok, err := a.src.Manifest(child.Dir())
	if err != nil {
		child.Fail(domain.ErrInvalidManifest, "%v", err)
		return
	}
	if ok {
		a.apply(child, m, templates)
		return
	}

	if inc.Template != "" {
		tasks, found := templates[inc.Template]
		if !found {
			child.Fail(domain.ErrUnresolvedProject, "template %q is not defined", inc.Template)
			return
		}
		for _, tm := range tasks {
			applyTask(child, tm)
		}
		return
	}

	child.Fail(domain.ErrUnresolvedProject, "no inline project, no %s in %q and no template", ManifestFile, child.Dir())
}

func applyTask(pb *ProjectBuilder, tm TaskManifest) {
	opts := []TaskOption{WithGroup(tm.Group)}
	if tm.Description != "" {
		opts = append(opts, WithDescription(tm.Description))
	}
	if len(tm.Exclusive) > 0 {
		opts = append(opts, WithExclusive(tm.Exclusive...))
	}

	switch {
	case tm.Alias != "" && (tm.Aggregate || len(tm.Run) > 0):
		pb.b.fail(pb.Path(), tm.Name, domain.ErrInvalidManifest, "an alias cannot also aggregate or run a command")
	case tm.Aggregate && len(tm.Run) > 0:
		pb.b.fail(pb.Path(), tm.Name, domain.ErrInvalidManifest, "an aggregate task cannot run a command")
	case tm.Alias != "":
		pb.Alias(tm.Name, tm.Alias, opts...)
	case tm.Aggregate:
		pb.Aggregate(tm.Name, opts...)
	default:
		pb.Primitive(tm.Name, tm.Run, opts...)
	}
}

func mergeTemplates(parent, own map[string][]TaskManifest) map[string][]TaskManifest {
	if len(own) == 0 {
		return parent
	}
	out := make(map[string][]TaskManifest, len(parent)+len(own))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range own {
		out[k] = v
	}
	return out
}
