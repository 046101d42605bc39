/*
Package workspace models a composite build as an immutable tree of projects.

A Tree is assembled once, either programmatically through a Builder or from
canopy.yaml manifests (see Load and Assemble), and never changes afterwards.
Every problem found while assembling it (unknown child tasks, unresolvable
includes, duplicate names, dangling aliases) is reported before anything runs.

# Aggregation

An aggregate task of a project depends on the task with the same name in every
aggregated child. When a child exposes the work under another name, the
include edge carries an explicit mapping:

	b := workspace.NewBuilder("samples")
	openxr := b.Root().Include("openxr")
	openxr.Aggregate("assembleDebug")
	openxr.Include("hello_xr", workspace.MapTask("assembleDebug", "assembleVulkanDebug")).
		Primitive("assembleVulkanDebug", []string{"./gradlew", "assembleVulkanDebug"})

# Generated children

Include patterns such as "Chapter{1..6}" are expanded by Expand, a pure
function evaluated once while the tree is assembled.
*/
package workspace
