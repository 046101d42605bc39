package domain

import (
	"fmt"
	"strings"
)

// RootPath is the path of the root project.
const RootPath = ""

// Project is a node of the composite build tree.
type Project struct {
	// Path is the unique identity of the project ("" for the root,
	// "openxr/tutorial/Chapter1" for a nested build).
	Path string `json:"path"`

	// Name is the last segment of Path (or the workspace name for the root).
	Name string `json:"name"`

	// Dir is the project directory, relative to the workspace root.
	Dir string `json:"dir"`

	// Parent is the path of the parent project. Empty for the root.
	Parent string `json:"parent,omitempty"`

	// Description is free-form documentation attached to the project.
	Description string `json:"description,omitempty"`
}

// IsRoot reports whether p is the root of the tree.
func (p Project) IsRoot() bool { return p.Path == RootPath }

// ChildPath joins a parent path and a child name.
func ChildPath(parent, name string) string {
	if parent == RootPath {
		return name
	}
	return parent + "/" + name
}

// TaskID identifies a task inside the tree.
type TaskID struct {
	Project string `json:"project"`
	Task    string `json:"task"`
}

// String renders the ID Gradle-style: "openxr:assembleDebug", ":buildAll" for the root.
func (id TaskID) String() string {
	return id.Project + ":" + id.Task
}

// MarshalText allows TaskID to be used as a JSON map key.
func (id TaskID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the textual form produced by MarshalText.
func (id *TaskID) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseTaskID parses a task reference.
//
// The project path ends at the first colon, so task names may themselves
// contain colons ("openxr/tutorial/Chapter1:app:assembleDebug").
// A reference without any colon names a task of the root project.
func ParseTaskID(s string) (TaskID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TaskID{}, fmt.Errorf("%w: empty reference", ErrUnknownTask)
	}
	project, task, found := strings.Cut(s, ":")
	if !found {
		return TaskID{Project: RootPath, Task: s}, nil
	}
	if task == "" {
		return TaskID{}, fmt.Errorf("%w: %q has no task name", ErrUnknownTask, s)
	}
	return TaskID{Project: project, Task: task}, nil
}

// TaskKind distinguishes real work from aggregation.
type TaskKind string

const (
	// KindPrimitive tasks do work through a TaskRunner.
	KindPrimitive TaskKind = "primitive"
	// KindAggregate tasks only depend on the matching task of every aggregated child.
	KindAggregate TaskKind = "aggregate"
	// KindAlias tasks depend on exactly one task of the same project.
	KindAlias TaskKind = "alias"
)

// TaskSpec is the static definition of a task.
type TaskSpec struct {
	Name        string   `json:"name"`
	Kind        TaskKind `json:"kind"`
	Description string   `json:"description,omitempty"`
	Group       string   `json:"group,omitempty"`

	// Command is the argv executed for primitive tasks.
	Command []string `json:"command,omitempty"`

	// Target is the aliased task name (same project) for alias tasks.
	Target string `json:"target,omitempty"`

	// Exclusive lists resources the task must hold while running
	// (e.g. a single attached device).
	Exclusive []string `json:"exclusive,omitempty"`
}

// TaskInfo is the introspection view of a compiled task.
type TaskInfo struct {
	ID           TaskID   `json:"id"`
	Kind         TaskKind `json:"kind"`
	Description  string   `json:"description,omitempty"`
	Group        string   `json:"group,omitempty"`
	Dependencies []TaskID `json:"dependencies,omitempty"`
}
