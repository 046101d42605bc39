/*
Package canopy is a composite task orchestrator: it runs named tasks across a
tree of nested builds, the way a composite build forwards an aggregate task to
every included build.

A workspace is described by canopy.yaml files. Each build declares primitive
tasks (commands), aggregate tasks (which depend on the matching task of every
aggregated child) and aliases. Children are included by path, by pattern
("Chapter{1..6}") or from a template, and an include may map a parent task to
a differently named child task.

# Concept

The workspace is loaded once into an immutable tree, compiled into a task
graph, and every invocation selects the subgraph reachable from its targets.
Each primitive task in the selection runs exactly once, dependencies first,
with bounded parallelism. A failure marks the task failed and every transitive
dependent skipped; by default the run then stops scheduling new work.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/canopy"
		"github.com/aretw0/canopy/pkg/domain"
	)

	func main() {
		eng, err := canopy.New("./examples/xr-samples")
		if err != nil {
			log.Fatal(err)
		}

		res, err := eng.Run(context.Background(), []string{"assembleAllDebug"}, domain.RunOptions{Parallelism: 4})
		if err != nil {
			log.Fatalf("run %s: %v", res.RunID, err)
		}
		log.Printf("built %d tasks", len(res.Order))
	}
*/
package canopy
