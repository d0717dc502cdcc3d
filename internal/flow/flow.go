package flow

import (
	"context"
	"errors"
)

// ErrEmpty is returned by First when the flow completed without emitting.
var ErrEmpty = errors.New("flow completed without emitting a value")

// errStop ends a collection early from inside a collector callback.
var errStop = errors.New("flow: collection stopped")

// Flow is a lazy sequence of values.
//
// Collect calls fn for each value in order and blocks until the upstream completes,
// fn returns an error, or ctx is done. The error returned by fn is returned unchanged.
type Flow[T any] interface {
	Collect(ctx context.Context, fn func(T) error) error
}

// FlowFunc adapts a producer function to the Flow interface.
type FlowFunc[T any] func(ctx context.Context, emit func(T) error) error

func (f FlowFunc[T]) Collect(ctx context.Context, fn func(T) error) error {
	return f(ctx, fn)
}

// Map projects every upstream value through fn. It adds no buffering: fn runs on the
// collector's goroutine once per upstream emission.
func Map[T, R any](src Flow[T], fn func(T) R) Flow[R] {
	return FlowFunc[R](func(ctx context.Context, emit func(R) error) error {
		return src.Collect(ctx, func(v T) error {
			return emit(fn(v))
		})
	})
}

// Of returns a flow that emits the given values and completes.
func Of[T any](values ...T) Flow[T] {
	return FlowFunc[T](func(ctx context.Context, emit func(T) error) error {
		for _, v := range values {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Error returns a flow that emits nothing and fails with err when collected.
func Error[T any](err error) Flow[T] {
	return FlowFunc[T](func(context.Context, func(T) error) error {
		return err
	})
}

// First collects a single value from f and stops the collection.
func First[T any](ctx context.Context, f Flow[T]) (T, error) {
	var (
		result T
		found  bool
	)

	err := f.Collect(ctx, func(v T) error {
		result = v
		found = true
		return errStop
	})
	if found {
		return result, nil
	}

	var zero T
	if err == nil || errors.Is(err, errStop) {
		return zero, ErrEmpty
	}
	return zero, err
}
