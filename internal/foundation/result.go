// Package foundation provides the generic completion types shared by build tasks.
package foundation

import "fmt"

// Result is the outcome of a completed operation: a value or an error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Ok creates a successful Result holding value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err creates a failed Result. A nil err is replaced so that Err never produces an Ok value.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("foundation: Err called with nil error")
	}
	return Result[T]{err: err}
}

// FromTuple converts the usual (value, error) pair into a Result.
func FromTuple[T any](value T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(value)
}

func (r Result[T]) IsOk() bool  { return r.err == nil }
func (r Result[T]) IsErr() bool { return r.err != nil }

// Error returns the failure, or nil for an Ok result.
func (r Result[T]) Error() error { return r.err }

// Unwrap returns the value and panics on a failed Result.
func (r Result[T]) Unwrap() T {
	if r.err != nil {
		panic(fmt.Sprintf("called Unwrap on Err result: %v", r.err))
	}
	return r.value
}

// UnwrapOr returns the value if Ok, otherwise fallback.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// ToTuple converts the Result back into a (value, error) pair.
func (r Result[T]) ToTuple() (T, error) {
	return r.value, r.err
}
