// Package plan compiles a workspace tree into an immutable task graph.
//
// Edges point from a task to the tasks it depends on: an aggregate task
// depends on the corresponding task of every aggregated child, an alias
// depends on its target. The graph is validated once (unknown tasks,
// cycles) and then only queried: selecting the transitive closure of the
// invoked targets, ordering it topologically and computing depths.
package plan
