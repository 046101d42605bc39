/*
Package domain contains the core domain models for the Canopy orchestrator.

It defines the entities of a composite build: projects arranged in a strict
tree, the tasks they expose, and the runtime vocabulary used when a selection
of those tasks is executed. This package is kept pure and free of I/O.

# Key Entities

  - Project: A separately buildable unit identified by its path in the tree.
  - TaskSpec: A task owned by a project (primitive, aggregate or alias).
  - TaskID: The (project path, task name) pair, printed as "path:task".
  - TaskState: The lifecycle state of a task during a run.
  - RunRecord: The persisted summary of a finished run.
*/
package domain
