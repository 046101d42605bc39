package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/workspace"
)

// WorkspaceLoader defines how the engine retrieves the project tree.
// This allows the definition format (canopy.yaml files, Loam documents,
// in-memory builders) to be decoupled.
type WorkspaceLoader interface {
	Load(ctx context.Context) (*workspace.Tree, error)
}

// WorkspaceLoaderFunc adapts a function to WorkspaceLoader.
type WorkspaceLoaderFunc func(ctx context.Context) (*workspace.Tree, error)

// Load implements WorkspaceLoader.
func (f WorkspaceLoaderFunc) Load(ctx context.Context) (*workspace.Tree, error) {
	return f(ctx)
}
