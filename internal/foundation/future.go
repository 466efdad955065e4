package foundation

import (
	"context"
	"fmt"
	"sync"
)

// Future is a Result that becomes available later. It is resolved exactly once;
// further Resolve calls are reported as ignored and have no effect.
type Future[T any] struct {
	once   sync.Once
	done   chan struct{}
	result Result[T]
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and resolves the Future with its return values.
// A panic inside fn resolves the Future with an error instead of crashing the process.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				f.Resolve(Err[T](&PanicError{Value: p}))
			}
		}()
		f.Resolve(FromTuple(fn()))
	}()
	return f
}

// Resolve completes the Future. It reports whether this call was the one that resolved it.
func (f *Future[T]) Resolve(r Result[T]) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done is closed once the Future has been resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the Future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) Result[T] {
	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return Err[T](ctx.Err())
	}
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
