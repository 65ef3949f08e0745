package quest

import (
	"context"
	"time"
)

// Complete finalizes q. When final is non-nil it runs first with the payload;
// only if it succeeds is q marked Completed and its completion handler run.
//
// If final fails, the completion handler is skipped, q becomes Failed, its
// error handler runs, and the same error is returned. On an asynchronous quest
// Complete returns ErrMisusedMode before final runs and leaves q Pending.
func Complete[T any](q *Quest[T], final func(T) error) error {
	if q == nil {
		return newArgumentError("quest")
	}
	if q.IsAsync() {
		return ErrMisusedMode
	}
	if final != nil {
		start := time.Now()
		pe, err := protect(func() error { return final(q.payload) })
		q.observer().OnStage(context.Background(), q.id, "complete", firstErr(pe, err), time.Since(start))
		if pe != nil {
			_ = q.reject(pe)
			panic(pe.Value)
		}
		if err != nil {
			return q.reject(err)
		}
	}
	return q.Complete()
}

// CompleteAsync is the context-aware form of Complete. A quest with
// synchronous handlers has them run as a fallback.
func CompleteAsync[T any](ctx context.Context, q *Quest[T], final func(context.Context, T) error) error {
	if q == nil {
		return newArgumentError("quest")
	}
	if final != nil {
		start := time.Now()
		pe, err := protect(func() error { return final(ctx, q.payload) })
		q.observer().OnStage(ctx, q.id, "complete", firstErr(pe, err), time.Since(start))
		if pe != nil {
			_ = q.rejectAsync(ctx, pe)
			panic(pe.Value)
		}
		if err != nil {
			return q.rejectAsync(ctx, err)
		}
	}
	return q.CompleteAsync(ctx)
}
