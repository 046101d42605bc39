package loam

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workspace"
	"github.com/aretw0/loam"
)

// Metadata is the front matter of a project document: the fields of a
// canopy.yaml manifest plus "path", the project directory relative to the
// workspace root. Without "path" the directory of the document is used.
type Metadata = map[string]any

// PathKey is the front matter key locating a document's project.
const PathKey = "path"

// Loader adapts a Loam repository to ports.WorkspaceLoader.
// Each document describes one build; its body, when present, becomes the
// build description.
type Loader struct {
	Repo *loam.TypedRepository[Metadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[Metadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open loam repository: %w", err)
	}
	return New(loam.NewTypedRepository[Metadata](repo)), nil
}

// Load reads every document and assembles the workspace from them.
func (l *Loader) Load(ctx context.Context) (*workspace.Tree, error) {
	src, err := l.Manifests(ctx)
	if err != nil {
		return nil, err
	}
	return workspace.Assemble(src)
}

// Manifests decodes every document into a manifest keyed by project directory.
func (l *Loader) Manifests(ctx context.Context) (Source, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	src := make(Source, len(docs))
	seen := make(map[string]string, len(docs))
	var errs []error
	for _, doc := range docs {
		dir, m, err := decode(doc.ID, doc.Data, doc.Content)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if other, ok := seen[dir]; ok {
			errs = append(errs, fmt.Errorf("%w: directory %q is defined in both %q and %q",
				domain.ErrDuplicate, dir, other, doc.ID))
			continue
		}
		seen[dir] = doc.ID
		src[dir] = m
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return nil, &workspace.AggregateError{Errors: errs}
	}
	return src, nil
}

func decode(id string, data Metadata, content string) (string, *workspace.Manifest, error) {
	raw := make(map[string]any, len(data))
	for k, v := range data {
		raw[k] = v
	}

	dir := path.Dir(filepath.ToSlash(trimExtension(id)))
	if v, ok := raw[PathKey]; ok {
		s, isString := v.(string)
		if !isString {
			return "", nil, fmt.Errorf("%w: %s: %q must be a string", domain.ErrInvalidManifest, id, PathKey)
		}
		dir = path.Clean(s)
		delete(raw, PathKey)
	}
	if dir == "" || strings.HasPrefix(dir, "../") || dir == ".." || path.IsAbs(dir) {
		return "", nil, fmt.Errorf("%w: %s: path %q escapes the workspace", domain.ErrInvalidManifest, id, dir)
	}

	m, err := workspace.DecodeManifest(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", id, err)
	}
	if body := strings.TrimSpace(content); m.Description == "" && body != "" {
		m.Description = body
	}
	return dir, m, nil
}

func trimExtension(id string) string {
	return strings.TrimSuffix(id, filepath.Ext(id))
}

// Source serves decoded manifests to workspace.Assemble.
type Source map[string]*workspace.Manifest

// Manifest implements workspace.Source.
func (s Source) Manifest(dir string) (*workspace.Manifest, bool, error) {
	m, ok := s[path.Clean(dir)]
	return m, ok, nil
}
