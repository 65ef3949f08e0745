package quest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Quest binds a payload to the completion and error handlers supplied by
// whoever produced it.
//
// The payload is fixed at construction; Select derives a new Quest instead of
// replacing it. State starts Pending and is changed only by the quest's own
// finalization and failure paths.
//
// A Quest is not safe for concurrent use. Pipeline stages are expected to hand
// it from one to the next.
type Quest[T any] struct {
	payload T
	state   State
	id      string
	h       handlers
	obs     Observer
}

// New returns a Pending quest with synchronous handlers.
// It returns an *ArgumentError when either handler is nil.
func New[T any](payload T, onComplete Action, onError ErrorAction) (*Quest[T], error) {
	if onComplete == nil {
		return nil, newArgumentError("onComplete")
	}
	if onError == nil {
		return nil, newArgumentError("onError")
	}
	return newQuest(payload, syncHandlers{onComplete: onComplete, onError: onError}, "", nil), nil
}

// NewAsync returns a Pending quest with asynchronous handlers.
// It returns an *ArgumentError when either handler is nil.
func NewAsync[T any](payload T, onComplete AsyncAction, onError AsyncErrorAction) (*Quest[T], error) {
	if onComplete == nil {
		return nil, newArgumentError("onComplete")
	}
	if onError == nil {
		return nil, newArgumentError("onError")
	}
	return newQuest(payload, asyncHandlers{onComplete: onComplete, onError: onError}, "", nil), nil
}

func newQuest[T any](payload T, h handlers, id string, obs Observer) *Quest[T] {
	if id == "" {
		id = uuid.NewString()
	}
	if obs == nil {
		obs = NoopObserver{}
	}
	return &Quest[T]{
		payload: payload,
		state:   StatePending,
		id:      id,
		h:       h,
		obs:     obs,
	}
}

// derive returns a Pending quest carrying payload and q's handlers, ID and
// observer.
func derive[T, U any](q *Quest[T], payload U) *Quest[U] {
	return &Quest[U]{
		payload: payload,
		state:   StatePending,
		id:      q.id,
		h:       q.h,
		obs:     q.obs,
	}
}

// Payload returns the value carried by the quest.
func (q *Quest[T]) Payload() T { return q.payload }

// State returns the current state.
func (q *Quest[T]) State() State { return q.state }

// ID identifies the quest in logs. Quests derived by Select keep the ID of
// their source.
func (q *Quest[T]) ID() string { return q.id }

// IsAsync reports whether the quest was built with asynchronous handlers.
func (q *Quest[T]) IsAsync() bool { return q.h != nil && q.h.async() }

// Complete marks the quest Completed and runs the completion handler.
//
// There is no guard against repeated calls: calling Complete twice runs the
// handler twice. On an asynchronous quest it returns ErrMisusedMode and
// leaves the state untouched.
func (q *Quest[T]) Complete() error {
	if q.h == nil {
		return errNilHandlers
	}
	if q.h.async() {
		return ErrMisusedMode
	}
	q.state = StateCompleted
	if err := q.h.complete(); err != nil {
		return err
	}
	q.observer().OnCompleted(context.Background(), q.id)
	return nil
}

// Fail marks the quest Failed and runs the error handler with err.
// On an asynchronous quest it returns ErrMisusedMode and leaves the state
// untouched.
func (q *Quest[T]) Fail(err error) error {
	if q.h == nil {
		return errNilHandlers
	}
	if q.h.async() {
		return ErrMisusedMode
	}
	q.state = StateFailed
	herr := q.h.fail(err)
	q.observer().OnFailed(context.Background(), q.id, err)
	return herr
}

// CompleteAsync marks the quest Completed and awaits the completion handler.
// A quest built with synchronous handlers falls back to them.
func (q *Quest[T]) CompleteAsync(ctx context.Context) error {
	if q.h == nil {
		return errNilHandlers
	}
	q.state = StateCompleted
	if err := q.h.completeAsync(ctx); err != nil {
		return err
	}
	q.observer().OnCompleted(ctx, q.id)
	return nil
}

// FailAsync marks the quest Failed and awaits the error handler with err.
// A quest built with synchronous handlers falls back to them.
func (q *Quest[T]) FailAsync(ctx context.Context, err error) error {
	if q.h == nil {
		return errNilHandlers
	}
	q.state = StateFailed
	herr := q.h.failAsync(ctx, err)
	q.observer().OnFailed(ctx, q.id, err)
	return herr
}

// reject is the failure path shared by the synchronous operations, which
// only reach it on quests with synchronous handlers. A handler error is joined
// so errors.Is(result, err) still holds.
func (q *Quest[T]) reject(err error) error {
	if herr := q.Fail(err); herr != nil {
		return errors.Join(err, herr)
	}
	return err
}

// rejectAsync is the asynchronous counterpart of reject. The handler gets a
// context that is not cancelled with ctx, so a cancelled pipeline can still
// release its message.
func (q *Quest[T]) rejectAsync(ctx context.Context, err error) error {
	if herr := q.FailAsync(context.WithoutCancel(ctx), err); herr != nil {
		return errors.Join(err, herr)
	}
	return err
}

func (q *Quest[T]) observer() Observer {
	if q.obs == nil {
		return NoopObserver{}
	}
	return q.obs
}
