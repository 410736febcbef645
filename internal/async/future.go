// Package async holds the single-outcome future used for background config
// writes and reloads.
package async

import (
	"context"
	"fmt"
)

// Future is the outcome of one background task. It completes exactly once.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Run starts fn on a new goroutine and returns its future. A panic in fn is
// delivered as the future's error.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("panic: %v", r)
			}
		}()
		f.val, f.err = fn()
	}()
	return f
}

// Failed returns an already completed future carrying err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then calls onSuccess or onFailure from a separate goroutine once the task
// finishes. Either callback may be nil.
func (f *Future[T]) Then(onSuccess func(T), onFailure func(error)) {
	go func() {
		<-f.done
		if f.err != nil {
			if onFailure != nil {
				onFailure(f.err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(f.val)
		}
	}()
}
