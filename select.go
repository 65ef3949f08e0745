package quest

import (
	"context"
	"time"
)

// Select projects the payload through selector and returns a new Pending
// quest that carries the result and the handlers of q. q itself is left
// untouched on success, even if it had already been finalized.
//
// If selector fails, q becomes Failed, its error handler runs, and the same
// error is returned with a nil quest. On an asynchronous quest Select returns
// ErrMisusedMode without running selector.
func Select[T, U any](q *Quest[T], selector func(T) (U, error)) (*Quest[U], error) {
	if q == nil {
		return nil, newArgumentError("quest")
	}
	if selector == nil {
		return nil, newArgumentError("selector")
	}
	if q.IsAsync() {
		return nil, ErrMisusedMode
	}

	var next U
	start := time.Now()
	pe, err := protect(func() error {
		var err error
		next, err = selector(q.payload)
		return err
	})
	q.observer().OnStage(context.Background(), q.id, "select", firstErr(pe, err), time.Since(start))
	if pe != nil {
		_ = q.reject(pe)
		panic(pe.Value)
	}
	if err != nil {
		return nil, q.reject(err)
	}
	return derive(q, next), nil
}

// SelectAsync is the context-aware form of Select.
func SelectAsync[T, U any](ctx context.Context, q *Quest[T], selector func(context.Context, T) (U, error)) (*Quest[U], error) {
	if q == nil {
		return nil, newArgumentError("quest")
	}
	if selector == nil {
		return nil, newArgumentError("selector")
	}

	var next U
	start := time.Now()
	pe, err := protect(func() error {
		var err error
		next, err = selector(ctx, q.payload)
		return err
	})
	q.observer().OnStage(ctx, q.id, "select", firstErr(pe, err), time.Since(start))
	if pe != nil {
		_ = q.rejectAsync(ctx, pe)
		panic(pe.Value)
	}
	if err != nil {
		return nil, q.rejectAsync(ctx, err)
	}
	return derive(q, next), nil
}
