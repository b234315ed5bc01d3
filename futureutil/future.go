// Package futureutil is the generic Go analogue of the original
// FutureUtils helper: a small set of pre-resolved and cached futures, on
// top of a Future[T] that behaves like a CompletableFuture restricted to
// "complete exactly once" — Go has no obtrudeValue/obtrudeException to
// guard against, so that guarantee is simply built into Resolve.
package futureutil

import (
	"context"
	"sync"
)

// Future is a value of type T that becomes available at most once, at
// some point in the future. The zero Future is not usable; construct
// one with New.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New creates an unresolved Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a Future already resolved to v.
func Completed[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v, nil)
	return f
}

// CompletedErr returns a Future already resolved to err.
func CompletedErr[T any](err error) *Future[T] {
	f := New[T]()
	var zero T
	f.Resolve(zero, err)
	return f
}

// Resolve completes f with (v, err). Only the first call has any
// effect; later calls are silent no-ops, the equivalent of the original
// UnobtrudableFuture refusing obtrudeValue/obtrudeException.
func (f *Future[T]) Resolve(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Get blocks until f is resolved or ctx is done, whichever comes first.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether f has already been resolved, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await waits for every Future in fs to resolve, returning their values
// in order. It returns the first error encountered (not necessarily
// from the first Future to resolve) and stops waiting on the rest once
// ctx is done.
func Await[T any](ctx context.Context, fs ...*Future[T]) ([]T, error) {
	values := make([]T, len(fs))
	for i, f := range fs {
		v, err := f.Get(ctx)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
