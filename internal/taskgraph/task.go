package taskgraph

import (
	"context"
	"log/slog"

	"github.com/sugarshin/frrr-boilerplate/internal/foundation"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

// Done is the completion value of a task.
type Done = struct{}

// Action is a task body. It receives the run configuration explicitly and reports
// completion through the returned future, which must resolve exactly once.
type Action[C any] func(ctx context.Context, cfg C) *foundation.Future[Done]

// Task is one named node of a graph.
type Task[C any] struct {
	Name   string
	Deps   []string
	Action Action[C]
}

// Func adapts a synchronous body.
func Func[C any](fn func(ctx context.Context, cfg C) error) Action[C] {
	return func(ctx context.Context, cfg C) *foundation.Future[Done] {
		return foundation.Go(func() (Done, error) {
			return Done{}, fn(ctx, cfg)
		})
	}
}

// Callback adapts a body that reports through a done callback. Only the first
// call to done counts; later calls are logged and dropped.
func Callback[C any](fn func(ctx context.Context, cfg C, done func(error))) Action[C] {
	return func(ctx context.Context, cfg C) *foundation.Future[Done] {
		f := foundation.NewFuture[Done]()
		done := func(err error) {
			if !f.Resolve(foundation.FromTuple(Done{}, err)) {
				slog.Debug("Task completion signalled more than once", logfields.Error(err))
			}
		}
		go func() {
			defer func() {
				if p := recover(); p != nil {
					done(&foundation.PanicError{Value: p})
				}
			}()
			fn(ctx, cfg, done)
		}()
		return f
	}
}
