package taskgraph

// Node is a composable piece of a pipeline: a single task, a sequence or a
// concurrent group.
type Node[C any] interface {
	// expand appends the node's tasks, each depending on after, and returns the
	// names a following node must wait for.
	expand(after []string, out *[]Task[C]) []string
}

type leaf[C any] struct {
	name   string
	action Action[C]
}

type series[C any] []Node[C]

type parallel[C any] []Node[C]

// Run wraps a single named task.
func Run[C any](name string, action Action[C]) Node[C] {
	return leaf[C]{name: name, action: action}
}

// Series runs nodes one after another. Each node starts only after everything in
// the previous node has completed.
func Series[C any](nodes ...Node[C]) Node[C] { return series[C](nodes) }

// Parallel runs nodes concurrently. A node following the group waits for all of
// them (barrier join).
func Parallel[C any](nodes ...Node[C]) Node[C] { return parallel[C](nodes) }

func (l leaf[C]) expand(after []string, out *[]Task[C]) []string {
	*out = append(*out, Task[C]{Name: l.name, Deps: after, Action: l.action})
	return []string{l.name}
}

func (s series[C]) expand(after []string, out *[]Task[C]) []string {
	for _, n := range s {
		after = n.expand(after, out)
	}
	return after
}

func (p parallel[C]) expand(after []string, out *[]Task[C]) []string {
	if len(p) == 0 {
		return after
	}
	var tails []string
	for _, n := range p {
		tails = append(tails, n.expand(after, out)...)
	}
	return tails
}

// Compile turns a composition into a validated graph. Every ordering constraint of
// the composition becomes an explicit edge.
func Compile[C any](root Node[C]) (*Graph[C], error) {
	var tasks []Task[C]
	root.expand(nil, &tasks)
	return New(tasks...)
}
