// Package runtime executes a selection of the task graph.
//
// A coordinator goroutine owns all task state: it dispatches primitive tasks
// to a bounded pool of workers, completes aggregate and alias tasks inline
// once their dependencies succeeded, and propagates failures to dependents.
// Hooks and logs are emitted from the coordinator, so observers never see
// concurrent callbacks for the same run.
package runtime
