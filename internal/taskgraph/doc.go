// Package taskgraph holds named build tasks in an immutable acyclic graph and
// executes them with barrier semantics. A task starts only after every task it
// depends on has completed. The first failure stops anything that has not
// started yet.
//
// Graphs are usually produced by Compile from a Series/Parallel composition:
//
//	g, err := taskgraph.Compile(taskgraph.Series(
//		taskgraph.Run("clean", clean),
//		taskgraph.Parallel(taskgraph.Run("build:image", images), taskgraph.Run("webpack:build", scripts)),
//		taskgraph.Run("build:js", precompile),
//	))
package taskgraph
