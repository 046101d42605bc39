/*
Package observability provides tools for monitoring runs of the Canopy engine.

It offers lifecycle hooks that record Prometheus metrics for task events and
hooks that write task events to a structured logger. Both are plain
domain.LifecycleHooks values and can be combined with domain.ChainHooks.
*/
package observability
