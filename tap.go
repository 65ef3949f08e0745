package quest

import (
	"context"
	"time"
)

// protect runs fn and converts a panic into a *PanicError.
func protect(fn func() error) (pe *PanicError, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe = &PanicError{Value: r}
		}
	}()
	return nil, fn()
}

// Tap runs action against the payload and returns q itself.
//
// If action fails, q becomes Failed, its error handler runs, and the same
// error is returned. A panicking action is reported to the error handler as a
// *PanicError and then re-panics.
//
// On an asynchronous quest Tap returns ErrMisusedMode without running action.
func Tap[T any](q *Quest[T], action func(T) error) (*Quest[T], error) {
	if q == nil {
		return nil, newArgumentError("quest")
	}
	if action == nil {
		return nil, newArgumentError("action")
	}
	if q.IsAsync() {
		return nil, ErrMisusedMode
	}

	start := time.Now()
	pe, err := protect(func() error { return action(q.payload) })
	q.observer().OnStage(context.Background(), q.id, "tap", firstErr(pe, err), time.Since(start))
	if pe != nil {
		_ = q.reject(pe)
		panic(pe.Value)
	}
	if err != nil {
		return nil, q.reject(err)
	}
	return q, nil
}

// TapAsync is the context-aware form of Tap. ctx is passed to action; a
// cancellation surfaced by action is handled like any other error.
func TapAsync[T any](ctx context.Context, q *Quest[T], action func(context.Context, T) error) (*Quest[T], error) {
	if q == nil {
		return nil, newArgumentError("quest")
	}
	if action == nil {
		return nil, newArgumentError("action")
	}

	start := time.Now()
	pe, err := protect(func() error { return action(ctx, q.payload) })
	q.observer().OnStage(ctx, q.id, "tap", firstErr(pe, err), time.Since(start))
	if pe != nil {
		_ = q.rejectAsync(ctx, pe)
		panic(pe.Value)
	}
	if err != nil {
		return nil, q.rejectAsync(ctx, err)
	}
	return q, nil
}

func firstErr(pe *PanicError, err error) error {
	if pe != nil {
		return pe
	}
	return err
}
