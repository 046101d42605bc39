package domain

import "errors"

// ErrUnknownTask is returned when a task reference does not resolve to a declared task.
var ErrUnknownTask = errors.New("unknown task")

// ErrUnknownProject is returned when a project path is not part of the tree.
var ErrUnknownProject = errors.New("unknown project")

// ErrUnresolvedProject is returned when an included build has no definition
// (no inline project, no manifest on disk and no template).
var ErrUnresolvedProject = errors.New("unresolvable project")

// ErrDuplicate is returned when a project or task is declared twice.
var ErrDuplicate = errors.New("duplicate declaration")

// ErrCycle is returned when task dependencies form a cycle.
var ErrCycle = errors.New("dependency cycle")

// ErrInvalidManifest is returned for malformed workspace definitions.
var ErrInvalidManifest = errors.New("invalid manifest")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrInvalidRunID is returned when a run ID is empty or not usable as a storage key.
var ErrInvalidRunID = errors.New("invalid run ID")

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("run already in progress")
