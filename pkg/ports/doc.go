/*
Package ports defines the driven ports (interfaces) for the canopy engine.

These interfaces decouple the orchestration core from external implementations,
allowing runs to execute tasks, persist history and coordinate exclusive
resources through various backends.

# Key Interfaces

  - TaskRunner: Executes one primitive task (e.g., as a local process).
  - RunStore: Persists and loads run records.
  - Locker: Guards exclusive resources shared by tasks (in-process or Redis).
  - WorkspaceLoader: Produces the project tree (from canopy.yaml files or Loam documents).
*/
package ports
